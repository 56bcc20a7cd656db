package lock

import (
	"context"
	"sync"
	"time"

	"github.com/erp/consignment/internal/domain/shared"
)

// InMemorySupplierLocker is the single-instance fallback used when Redis is
// not configured. Locks expire after their TTL like the Redis ones.
type InMemorySupplierLocker struct {
	mu      sync.Mutex
	held    map[string]heldLock
	wait    time.Duration
	poll    time.Duration
	counter uint64
}

type heldLock struct {
	token     uint64
	expiresAt time.Time
}

// NewInMemorySupplierLocker creates a locker that waits up to wait for a busy key
func NewInMemorySupplierLocker(wait time.Duration) *InMemorySupplierLocker {
	return &InMemorySupplierLocker{
		held: make(map[string]heldLock),
		wait: wait,
		poll: 5 * time.Millisecond,
	}
}

// Acquire obtains key for ttl or fails with shared.ErrConcurrencyConflict
func (l *InMemorySupplierLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	deadline := time.Now().Add(l.wait)
	for {
		if token, ok := l.tryAcquire(key, ttl); ok {
			return func(context.Context) error {
				l.release(key, token)
				return nil
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, shared.ErrConcurrencyConflict
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

func (l *InMemorySupplierLocker) tryAcquire(key string, ttl time.Duration) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if h, ok := l.held[key]; ok && now.Before(h.expiresAt) {
		return 0, false
	}
	l.counter++
	l.held[key] = heldLock{token: l.counter, expiresAt: now.Add(ttl)}
	return l.counter, true
}

// release only drops the lock if it still belongs to token
func (l *InMemorySupplierLocker) release(key string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
}
