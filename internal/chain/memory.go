package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory, thread-safe Store implementation.
// It is primarily useful for testing and for single-process deployments
// that do not require durable persistence across restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	chains map[int64][]*Block
	locks  *vendorLocks
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chains: make(map[int64][]*Block),
		locks:  newVendorLocks(),
	}
}

// Append implements Store. The vendor lock is held from the tail read until
// the new block is visible; readers only contend on the short data lock.
func (s *MemoryStore) Append(ctx context.Context, vendorID int64, build BuildFunc) (*Block, error) {
	unlock := s.locks.lock(vendorID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prevHash := Genesis
	s.mu.RLock()
	if c := s.chains[vendorID]; len(c) > 0 {
		prevHash = c[len(c)-1].Hash
	}
	s.mu.RUnlock()

	b, err := build(prevHash)
	if err != nil {
		return nil, fmt.Errorf("build block: %w", err)
	}

	s.mu.Lock()
	s.nextID++
	b.ID = s.nextID
	s.chains[vendorID] = append(s.chains[vendorID], cloneBlock(b))
	s.mu.Unlock()

	return b, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context, vendorID int64) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.chains[vendorID]
	if len(c) == 0 {
		return nil, nil
	}
	return cloneBlock(c[len(c)-1]), nil
}

// ListByVendor implements Store. The returned blocks are copies.
func (s *MemoryStore) ListByVendor(_ context.Context, vendorID int64) ([]*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.chains[vendorID]
	out := make([]*Block, len(c))
	for i, b := range c {
		out[i] = cloneBlock(b)
	}
	return out, nil
}

// Vendors implements Store.
func (s *MemoryStore) Vendors(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.chains))
	for id, c := range s.chains {
		if len(c) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
