package limiter

// #region imports
import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// #endregion

// #region limiter

// Limiter bounds how many outbound calls of one kind run at once. Callers over
// the bound queue; they are never rejected. One Limiter is shared by every
// request in the process.
type Limiter struct {
	name string
	size int64
	sem  *semaphore.Weighted

	inFlight atomic.Int64
	calls    atomic.Int64
	queued   atomic.Int64
	waitNS   atomic.Int64
}

// New creates a limiter allowing n concurrent holders. n below 1 is treated as 1.
func New(name string, n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{
		name: name,
		size: int64(n),
		sem:  semaphore.NewWeighted(int64(n)),
	}
}

// Name returns the limiter's label, used in logs.
func (l *Limiter) Name() string { return l.name }

// Size returns the configured bound.
func (l *Limiter) Size() int { return int(l.size) }

// #endregion

// #region do

// Do acquires a slot, runs fn and releases the slot. If ctx ends while waiting,
// fn is not called and the context error is returned.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	start := time.Now()
	if !l.sem.TryAcquire(1) {
		l.queued.Add(1)
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%s limiter: %w", l.name, err)
		}
	}
	l.waitNS.Add(int64(time.Since(start)))
	l.calls.Add(1)
	l.inFlight.Add(1)
	defer func() {
		l.inFlight.Add(-1)
		l.sem.Release(1)
	}()
	return fn(ctx)
}

// #endregion

// #region stats

// Stats is a point-in-time snapshot of limiter usage.
type Stats struct {
	Name     string
	Size     int
	InFlight int64
	Calls    int64
	Queued   int64
	Waited   time.Duration
}

// Stats reports usage counters since construction.
func (l *Limiter) Stats() Stats {
	return Stats{
		Name:     l.name,
		Size:     int(l.size),
		InFlight: l.inFlight.Load(),
		Calls:    l.calls.Load(),
		Queued:   l.queued.Load(),
		Waited:   time.Duration(l.waitNS.Load()),
	}
}

// #endregion
