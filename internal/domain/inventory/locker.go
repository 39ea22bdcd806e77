package inventory

import (
	"context"
	"sync"
)

// LocalLocker is an in-process ItemLocker: one mutex per item key,
// created on demand and dropped when the last holder or waiter leaves.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{} // buffered(1); a token in the channel means held
	refs int
}

// NewLocalLocker creates an empty locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

// Lock implements ItemLocker.
func (l *LocalLocker) Lock(ctx context.Context, itemID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[itemID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[itemID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(itemID, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.release(itemID, slot)
		})
	}, nil
}

func (l *LocalLocker) release(itemID string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, itemID)
	}
}

// held returns how many keys currently have holders or waiters.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
