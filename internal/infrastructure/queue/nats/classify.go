package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docverify/internal/infrastructure/resilience"
)

// Connection-state errors that clear once the client reconnects.
var transientErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrNoResponders,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	for _, transient := range transientErrors {
		if errors.Is(err, transient) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ClassifyDomainError(err)
}
