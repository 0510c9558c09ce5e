package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docverify/internal/core/domain"
	"github.com/kirillkom/docverify/internal/infrastructure/resilience"
)

const (
	queueGroup     = "workers"
	connectionName = "docverify"
)

type Queue struct {
	conn        *nats.Conn
	subject     string
	concurrency int
	executor    *resilience.Executor
	logger      *slog.Logger
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	// Nil keeps retrying the initial connect in the background.
	RetryOnFailedConnect *bool
	// Concurrency caps handlers running at once in this process.
	Concurrency        int
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.RetryOnFailedConnect == nil {
		retry := true
		o.RetryOnFailedConnect = &retry
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) connectOptions() []nats.Option {
	logger := o.Logger
	return []nats.Option{
		nats.Name(connectionName),
		nats.Timeout(o.ConnectTimeout),
		nats.ReconnectWait(o.ReconnectWait),
		nats.MaxReconnects(o.MaxReconnects),
		nats.RetryOnFailedConnect(*o.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

// New connects to the broker. Requests are published to and consumed from
// a single subject.
func New(url, subject string, options Options) (*Queue, error) {
	options = options.withDefaults()
	conn, err := nats.Connect(url, options.connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:        conn,
		subject:     subject,
		concurrency: options.Concurrency,
		executor:    options.ResilienceExecutor,
		logger:      options.Logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishAnalysisRequested(ctx context.Context, req domain.AnalysisRequest) error {
	payload, err := encodeRequest(req)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return resilience.WrapTemporary("nats publish", err, classifyNATSError)
	}
	return nil
}

// SubscribeAnalysisRequested blocks until ctx ends, then drains in-flight
// messages. Up to the configured concurrency of handlers run at once.
// Undecodable messages are logged and dropped.
func (q *Queue) SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, domain.AnalysisRequest) error) error {
	pool := newHandlerPool(q.concurrency)
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		req, err := decodeRequest(msg.Data)
		if err != nil {
			q.logger.Error("analysis_request_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		pool.Go(ctx, func() { q.handle(ctx, req, handler) })
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	waitDrained(sub, 5*time.Second)
	pool.Wait()
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handle(ctx context.Context, req domain.AnalysisRequest, handler func(context.Context, domain.AnalysisRequest) error) {
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, req); err != nil {
		q.logger.Error("analysis_request_failed",
			"document_id", req.DocumentID,
			"user_id", req.UserID,
			"error_kind", domain.KindOf(err),
			"error", err,
		)
	}
}

// waitDrained polls until the subscription closes after Drain.
func waitDrained(sub *nats.Subscription, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

func encodeRequest(req domain.AnalysisRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}
	return payload, nil
}

func decodeRequest(data []byte) (domain.AnalysisRequest, error) {
	var req domain.AnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.AnalysisRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode analysis request", err)
	}
	if req.DocumentID == "" || req.UserID == "" || req.StorageKey == "" {
		return domain.AnalysisRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode analysis request", errors.New("missing document, user or storage key"))
	}
	return req, nil
}
