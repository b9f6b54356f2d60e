package adherence

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// slotLocks serializa check-then-insert por slot. Slots distintos no se bloquean.
type slotLocks struct {
	mu    sync.Mutex
	slots map[string]*slotLock
}

type slotLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newSlotLocks() *slotLocks {
	return &slotLocks{slots: make(map[string]*slotLock)}
}

// acquire respeta ctx: si se cancela mientras espera, devuelve ctx.Err().
func (l *slotLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	sl, ok := l.slots[key]
	if !ok {
		sl = &slotLock{sem: semaphore.NewWeighted(1)}
		l.slots[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	if err := sl.sem.Acquire(ctx, 1); err != nil {
		l.release(key, sl)
		return nil, err
	}

	return func() {
		sl.sem.Release(1)
		l.release(key, sl)
	}, nil
}

func (l *slotLocks) release(key string, sl *slotLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *slotLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
