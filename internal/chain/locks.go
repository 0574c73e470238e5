package chain

import "sync"

// vendorLocks hands out one mutex per vendor ID. Entries are reference
// counted and dropped when the last holder unlocks.
type vendorLocks struct {
	mu    sync.Mutex
	locks map[int64]*vendorLock
}

type vendorLock struct {
	mu   sync.Mutex
	refs int
}

func newVendorLocks() *vendorLocks {
	return &vendorLocks{locks: make(map[int64]*vendorLock)}
}

// lock blocks until the caller holds vendorID's lock and returns the release
// function.
func (v *vendorLocks) lock(vendorID int64) func() {
	v.mu.Lock()
	l, ok := v.locks[vendorID]
	if !ok {
		l = &vendorLock{}
		v.locks[vendorID] = l
	}
	l.refs++
	v.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		v.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(v.locks, vendorID)
		}
		v.mu.Unlock()
	}
}
