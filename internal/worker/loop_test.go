package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsImmediatelyAndOnWake(t *testing.T) {
	var n atomic.Int32
	l := NewLoop("test", time.Hour, func(context.Context) { n.Add(1) }, nil)

	l.Start(context.Background())
	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)

	l.Wake()
	assert.Eventually(t, func() bool { return n.Load() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Stop(time.Second))
	require.NoError(t, l.Stop(time.Second), "second stop is a no-op")
}

func TestLoopSurvivesPanics(t *testing.T) {
	var n atomic.Int32
	l := NewLoop("test", time.Hour, func(context.Context) {
		if n.Add(1) == 1 {
			panic("boom")
		}
	}, nil)

	l.Start(context.Background())
	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	l.Wake()
	assert.Eventually(t, func() bool { return n.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Stop(time.Second))
}

func TestLoopStopTimeout(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	l := NewLoop("slow", time.Hour, func(context.Context) {
		close(started)
		<-release
	}, nil)

	l.Start(context.Background())
	<-started
	assert.ErrorIs(t, l.Stop(20*time.Millisecond), ErrStopTimeout)
	close(release)
}

func TestBackoffDelay(t *testing.T) {
	b := NewBackoff(config.RetryConfig{MaxAttempts: 5, InitialBackoff: time.Minute, MaxBackoff: 5 * time.Minute})

	cases := []struct {
		n    int
		want time.Duration
		ok   bool
	}{
		{1, time.Minute, true},
		{2, 2 * time.Minute, true},
		{3, 4 * time.Minute, true},
		{4, 5 * time.Minute, true},
		{5, 0, false},
	}
	for _, tc := range cases {
		d, ok := b.Delay(tc.n)
		assert.Equal(t, tc.ok, ok, "n=%d", tc.n)
		assert.Equal(t, tc.want, d, "n=%d", tc.n)
	}
}

func TestBackoffSingleAttemptNeverRetries(t *testing.T) {
	b := NewBackoff(config.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Minute, MaxBackoff: time.Hour})
	_, ok := b.Delay(1)
	assert.False(t, ok)
}
