package locks

import (
	"context"
	"errors"
	"sync"
)

// ErrContended means another holder owns the key right now. Callers
// either retry later (async path) or drop the work and rely on the
// queued job (sync path).
var ErrContended = errors.New("locks: contended")

// Locker serializes work per key. TryAcquire never blocks: the
// reconciliation contract is "one writer per (user, source quiz),
// losers reschedule", not "queue up behind the winner".
type Locker interface {
	TryAcquire(ctx context.Context, key string) (release func(), err error)
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal returns an in-process Locker. Correct for a single service
// instance; multi-instance deployments use the redis locker instead.
func NewLocal() Locker {
	return &localLocker{held: make(map[string]struct{})}
}

func (l *localLocker) TryAcquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrContended
	}
	l.held[key] = struct{}{}
	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}
	return release, nil
}
