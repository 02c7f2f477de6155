package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// AttemptLimiter counts failed logins per key in process memory. A key is
// blocked after max failures until window has passed since the last failure.
type AttemptLimiter struct {
	max    int
	window time.Duration
	clock  clockwork.Clock

	mu       sync.Mutex
	attempts map[string]attempt
}

type attempt struct {
	count int
	last  time.Time
}

func NewAttemptLimiter(max int, window time.Duration, clock clockwork.Clock) *AttemptLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AttemptLimiter{max: max, window: window, clock: clock, attempts: make(map[string]attempt)}
}

func (l *AttemptLimiter) Blocked(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.attempts[key]
	if !ok {
		return false, 0, nil
	}
	elapsed := l.clock.Since(a.last)
	if elapsed > l.window {
		delete(l.attempts, key)
		return false, 0, nil
	}
	if a.count >= l.max {
		return true, l.window - elapsed, nil
	}
	return false, 0, nil
}

func (l *AttemptLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.attempts[key]
	if !a.last.IsZero() && l.clock.Since(a.last) > l.window {
		a.count = 0
	}
	a.count++
	a.last = l.clock.Now()
	l.attempts[key] = a
	return nil
}

func (l *AttemptLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}
