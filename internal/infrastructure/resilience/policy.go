package resilience

import (
	"math"
	"time"
)

// Policy bundles the retry schedule and breaker thresholds for one kind of
// outbound call.
type Policy struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

type BreakerPolicy struct {
	Enabled      bool
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
	// Calls admitted while half-open.
	ProbeCalls uint32
}

// QueuePublishPolicy covers short broker outages during upload.
func QueuePublishPolicy() Policy {
	return Policy{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			Enabled:      true,
			MinRequests:  10,
			FailureRatio: 0.5,
			OpenTimeout:  30 * time.Second,
			ProbeCalls:   2,
		},
	}
}

// ProcessingPolicy retries a whole analysis run when object storage is
// briefly unavailable. Runs are keyed per document, so no breaker.
func ProcessingPolicy() Policy {
	return Policy{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     3,
		},
	}
}

// ScorerPolicy allows one relaunch of a crashed scoring process and stops
// launching once most recent runs have failed.
func ScorerPolicy() Policy {
	return Policy{
		Retry: RetryPolicy{
			MaxAttempts:    2,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Second,
			Multiplier:     1,
		},
		Breaker: BreakerPolicy{
			Enabled:      true,
			MinRequests:  5,
			FailureRatio: 0.6,
			OpenTimeout:  time.Minute,
			ProbeCalls:   1,
		},
	}
}

func (p Policy) withDefaults() Policy {
	r := &p.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 1
	}
	if r.InitialBackoff < 0 {
		r.InitialBackoff = 0
	}
	if r.MaxBackoff < r.InitialBackoff {
		r.MaxBackoff = r.InitialBackoff
	}
	if r.Multiplier < 1 {
		r.Multiplier = 1
	}

	b := &p.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = 1
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = 0.5
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = 30 * time.Second
	}
	if b.ProbeCalls == 0 {
		b.ProbeCalls = 1
	}
	return p
}

// backoff returns the wait after the given failed attempt (1-based).
func (r RetryPolicy) backoff(attempt int) time.Duration {
	wait := float64(r.InitialBackoff) * math.Pow(r.Multiplier, float64(attempt-1))
	if wait > float64(r.MaxBackoff) {
		return r.MaxBackoff
	}
	return time.Duration(wait)
}
