package testhelpers

import (
	"context"
	"sync"
	"time"
)

// Gate holds blocked fake calls until Open is called.
// Safe to open multiple times (only first call takes effect).
type Gate struct {
	done chan struct{}
	once sync.Once
}

// NewGate creates a closed gate
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Open releases every waiter
func (g *Gate) Open() {
	g.once.Do(func() {
		close(g.done)
	})
}

// Done returns the channel closed by Open
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// CountdownLatch allows waiting for N operations to complete.
type CountdownLatch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// NewCountdownLatch creates a latch that waits for count operations.
func NewCountdownLatch(count int) *CountdownLatch {
	l := &CountdownLatch{count: count, done: make(chan struct{})}
	if count <= 0 {
		close(l.done)
	}
	return l
}

// CountDown decrements the latch count
func (l *CountdownLatch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count > 0 {
		l.count--
		if l.count == 0 {
			close(l.done)
		}
	}
}

// Wait waits for the count to reach zero or timeout.
// Returns true if completed, false if timeout.
func (l *CountdownLatch) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.done:
		return true
	case <-timer.C:
		return false
	}
}

// WaitCtx waits for the count to reach zero or context cancellation.
func (l *CountdownLatch) WaitCtx(ctx context.Context) bool {
	select {
	case <-l.done:
		return true
	case <-ctx.Done():
		return false
	}
}
