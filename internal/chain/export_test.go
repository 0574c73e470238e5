package chain

// Storage-level tampering hooks. They exist only in tests: the Store API has
// no way to modify or remove a block.

func (s *MemoryStore) TamperPrevHash(vendorID, blockID int64, prevHash string) bool {
	return s.tamper(vendorID, blockID, func(b *Block) { b.PrevHash = prevHash })
}

func (s *MemoryStore) TamperPayloadHash(vendorID, blockID int64, payloadHash string) bool {
	return s.tamper(vendorID, blockID, func(b *Block) { b.PayloadHash = payloadHash })
}

func (s *MemoryStore) DeleteBlock(vendorID, blockID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chains[vendorID]
	for i, b := range c {
		if b.ID == blockID {
			s.chains[vendorID] = append(c[:i:i], c[i+1:]...)
			return true
		}
	}
	return false
}

func (s *MemoryStore) tamper(vendorID, blockID int64, fn func(*Block)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.chains[vendorID] {
		if b.ID == blockID {
			fn(b)
			return true
		}
	}
	return false
}
