package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

// MemoryLocker is a per-key try-lock for a single process
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]uint64
	next uint64
}

// NewMemoryLocker creates an empty lock table
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]uint64)}
}

// TryLock takes key or fails at once with workflow.ErrConcurrentModification
func (l *MemoryLocker) TryLock(ctx context.Context, key string) (port.Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w: %s is locked", workflow.ErrConcurrentModification, key)
	}
	l.next++
	token := l.next
	l.held[key] = token

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
			}
		})
	}, nil
}

// Held reports whether key is currently locked
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

var _ port.Locker = (*MemoryLocker)(nil)
