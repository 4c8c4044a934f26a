package reload

import (
	"sync"

	"neolink-go/logic"
)

// Units is the single slot holding the installed logic pair. Readers
// resolve through it on every use, so an Install takes effect for the
// next lookup without any re-subscription.
type Units struct {
	mu   sync.RWMutex
	pair *logic.Pair
	gen  uint64
}

// Install replaces the slot and returns its new generation.
func (u *Units) Install(p logic.Pair) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pair = &p
	u.gen++
	return u.gen
}

// Evict drops the installed pair.
func (u *Units) Evict() {
	u.mu.Lock()
	u.pair = nil
	u.mu.Unlock()
}

func (u *Units) Current() (logic.Pair, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.pair == nil {
		return logic.Pair{}, false
	}
	return *u.pair, true
}

// Handlers is nil while nothing is installed; a nil set finds nothing.
func (u *Units) Handlers() *logic.HandlerSet {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.pair == nil {
		return nil
	}
	return u.pair.Handlers
}

func (u *Units) Generation() uint64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.gen
}
