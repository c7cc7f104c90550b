package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrStopTimeout = errors.New("worker did not stop in time")

// Loop runs fn once immediately and then every interval until its context is
// cancelled. Wake runs the next cycle early. A panicking cycle is logged and
// the loop carries on.
type Loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	log      *zap.Logger

	wake chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(name string, interval time.Duration, fn func(ctx context.Context), log *zap.Logger) *Loop {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the loop in the background. Calling it twice is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.log.Warn("already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		l.Run(ctx)
	}(l.done)
}

// Stop cancels the loop and waits up to timeout for the current cycle to end.
func (l *Loop) Stop(timeout time.Duration) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		l.log.Info("stopped")
		return nil
	case <-t.C:
		return fmt.Errorf("%s: %w", l.name, ErrStopTimeout)
	}
}

// Wake asks for an immediate cycle. It never blocks.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info("running", zap.Duration("interval", l.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-l.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		l.runCycle(ctx)
		timer.Reset(l.interval)
	}
}

func (l *Loop) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	l.fn(ctx)
}

// sleepCtx waits d or until ctx is done, reporting whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
