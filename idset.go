package silo

// entityRecord is the per-entity state the World tracks outside of
// chunk storage: where the entity's row lives, its current generation,
// and whether it is in the disabled partition of its chunk.
//
// Invariant: for every live entity e, record.chunk != nil and
// record.chunk.EntityAt(int(record.row)) == e.
type entityRecord struct {
	chunk      *Chunk
	row        int32 // when free, holds the next index in the free chain
	generation uint32
	disabled   bool
}

// entitySet is the implicit free-list container (C2): a dense array of
// entity records plus an intrusive free chain threaded through the
// freed slots' row field. Allocation and release are O(1).
type entitySet struct {
	records   []entityRecord
	nextFree  uint32 // idMaskSentinel when the free chain is empty
	freeCount int
}

func newEntitySet() *entitySet {
	return &entitySet{nextFree: idMaskSentinel}
}

// alloc returns a fresh or recycled handle. A recycled slot keeps its
// current (already-bumped) generation; a brand-new slot starts at
// generation 0.
func (s *entitySet) alloc() (Entity, error) {
	if s.freeCount == 0 {
		idx := uint32(len(s.records))
		if idx >= idMaskSentinel {
			return NullEntity, CapacityExceededError{Limit: idMaskSentinel}
		}
		s.records = append(s.records, entityRecord{})
		return NewEntity(idx, 0), nil
	}
	idx := s.nextFree
	rec := &s.records[idx]
	s.nextFree = uint32(rec.row)
	s.freeCount--
	rec.row = 0
	rec.chunk = nil
	rec.disabled = false
	return NewEntity(idx, rec.generation), nil
}

// free releases e's slot. Per the resolved generation-bump ordering,
// the generation is incremented before the slot is linked into the
// free chain, so any handle sharing the old generation is immediately
// stale. Double-freeing the same handle is a programmer error and is
// undefined (the caller is expected to have checked isValid first).
func (s *entitySet) free(e Entity) {
	idx := e.Index()
	rec := &s.records[idx]
	rec.generation++
	rec.chunk = nil
	rec.disabled = false
	rec.row = int32(s.nextFree)
	s.nextFree = idx
	s.freeCount++
}

// isValid reports whether e still refers to its originally dispensed
// slot: the index is in range and the generation matches.
func (s *entitySet) isValid(e Entity) bool {
	idx := e.Index()
	if e.IsNull() || int(idx) >= len(s.records) {
		return false
	}
	return s.records[idx].generation == e.Generation()
}

func (s *entitySet) get(e Entity) *entityRecord {
	return &s.records[e.Index()]
}

func (s *entitySet) liveCount() int {
	return len(s.records) - s.freeCount
}

// validate walks the free chain and confirms its length matches
// freeCount and that it terminates at the sentinel. It is an assertion
// helper for tests, not part of the hot path.
func (s *entitySet) validate() error {
	seen := 0
	cursor := s.nextFree
	for cursor != idMaskSentinel {
		if int(cursor) >= len(s.records) {
			return AssertionError{Msg: "free chain references out-of-range slot"}
		}
		seen++
		if seen > len(s.records) {
			return AssertionError{Msg: "free chain does not terminate"}
		}
		cursor = uint32(s.records[cursor].row)
	}
	if seen != s.freeCount {
		return AssertionError{Msg: "free chain length does not match free count"}
	}
	return nil
}
