package worker

import (
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/ecodeclub/ekit/retry"
)

// Backoff turns a failure count into the wait before the next attempt.
type Backoff struct {
	initial     time.Duration
	max         time.Duration
	maxAttempts int
}

func NewBackoff(cfg config.RetryConfig) Backoff {
	b := Backoff{initial: cfg.InitialBackoff, max: cfg.MaxBackoff, maxAttempts: cfg.MaxAttempts}
	if b.initial <= 0 {
		b.initial = time.Minute
	}
	if b.max < b.initial {
		b.max = b.initial
	}
	if b.maxAttempts < 1 {
		b.maxAttempts = 1
	}
	return b
}

// MaxAttempts is the total number of delivery attempts allowed.
func (b Backoff) MaxAttempts() int { return b.maxAttempts }

// Delay returns the wait after the n-th failed attempt (n >= 1) and false once
// n reaches MaxAttempts.
func (b Backoff) Delay(n int) (time.Duration, bool) {
	if n < 1 {
		n = 1
	}
	if n >= b.maxAttempts {
		return 0, false
	}
	s, err := retry.NewExponentialBackoffRetryStrategy(b.initial, b.max, int32(b.maxAttempts-1))
	if err != nil {
		return b.initial, true
	}
	var (
		d  time.Duration
		ok bool
	)
	for i := 0; i < n; i++ {
		if d, ok = s.Next(); !ok {
			return 0, false
		}
	}
	return d, true
}
