package resilience

import (
	"slices"
	"strings"
	"time"
)

// Operations that upload data upstream. A replayed upload may be processed twice,
// so these never get more than one attempt whatever the retry policy says.
const OperationDocumentUpload = "docapi.process"

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// Config controls retries and circuit breaking for upstream calls.
type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
	// SingleAttempt lists operations that are never retried.
	SingleAttempt []string
}

// DefaultConfig makes one attempt per call and trips the breaker when most
// recent calls to the document API fail.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    1,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      5,
			FailureRatio:     0.6,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
		SingleAttempt: []string{OperationDocumentUpload},
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	out.Retry = out.Retry.normalize(def.Retry)
	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if out.Breaker.OpenTimeout <= 0 {
		out.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if out.Breaker.HalfOpenMaxCalls == 0 {
		out.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	out.SingleAttempt = slices.Clone(out.SingleAttempt)
	if !slices.Contains(out.SingleAttempt, OperationDocumentUpload) {
		out.SingleAttempt = append(out.SingleAttempt, OperationDocumentUpload)
	}
	return out
}

func (p RetryPolicy) normalize(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// retryFor returns the retry policy that applies to operation.
func (c Config) retryFor(operation string) RetryPolicy {
	policy := c.Retry
	if slices.ContainsFunc(c.SingleAttempt, func(name string) bool {
		return strings.EqualFold(strings.TrimSpace(name), operation)
	}) {
		policy.MaxAttempts = 1
	}
	return policy
}

// backoff is the wait before the attempt following attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * p.Multiplier)
		if wait >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(wait, p.MaxBackoff)
}
