package silo

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ComponentID is the stable integer identity a Descriptor is registered
// under. It also serves as the bit position for component-signature
// masks, so the number of distinct components a single World can
// register is bounded by mask.Mask256's width.
type ComponentID uint32

// componentKind distinguishes where a component's data lives.
type componentKind uint8

const (
	// kindGeneric components are stored once per row ("per-row").
	kindGeneric componentKind = iota
	// kindChunk components are stored once per chunk ("per-chunk"/
	// singleton/unique).
	kindChunk
)

// Signature is the sorted, split component set that identifies an
// archetype: a generic (per-row) part, a chunk (per-chunk/singleton)
// part, and a relationship-pair part, each sorted ascending (Pairs by
// raw uint64 value) so two archetypes with the same components always
// compare and hash equal. Pairs are purely structural: membership in an
// archetype's signature, with no per-row storage of their own.
type Signature struct {
	Generic []ComponentID
	Chunk   []ComponentID
	Pairs   []Pair
}

// Hash combines every part of the signature into the archetype lookup
// hash. Each part is hashed with a distinct seed first so that an id
// appearing in one part of one signature and another part of another
// signature never collides.
func (s Signature) Hash() uint64 {
	d := xxhash.New()
	var buf [4]byte
	writeIDs := func(seed byte, ids []ComponentID) {
		d.Write([]byte{seed})
		for _, id := range ids {
			buf[0] = byte(id)
			buf[1] = byte(id >> 8)
			buf[2] = byte(id >> 16)
			buf[3] = byte(id >> 24)
			d.Write(buf[:])
		}
	}
	writeIDs('g', s.Generic)
	writeIDs('c', s.Chunk)
	d.Write([]byte{'p'})
	var pbuf [8]byte
	for _, p := range s.Pairs {
		v := uint64(p)
		for i := 0; i < 8; i++ {
			pbuf[i] = byte(v >> (8 * i))
		}
		d.Write(pbuf[:])
	}
	return d.Sum64()
}

// Equal reports whether two signatures contain exactly the same
// generic ids, chunk ids, and relationship pairs.
func (s Signature) Equal(other Signature) bool {
	return idsEqual(s.Generic, other.Generic) &&
		idsEqual(s.Chunk, other.Chunk) &&
		pairsEqual(s.Pairs, other.Pairs)
}

func pairsEqual(a, b []Pair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func idsEqual(a, b []ComponentID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Contains reports whether id is present with the given kind.
func (s Signature) Contains(id ComponentID, kind componentKind) bool {
	ids := s.Generic
	if kind == kindChunk {
		ids = s.Chunk
	}
	return containsSorted(ids, id)
}

func containsSorted(ids []ComponentID, id ComponentID) bool {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	return i < len(ids) && ids[i] == id
}

// withAdded returns a new signature with id inserted into the part
// named by kind, preserving sort order. It is a no-op (returns the
// same logical set) if id is already present.
func (s Signature) withAdded(id ComponentID, kind componentKind) Signature {
	out := Signature{Generic: append([]ComponentID(nil), s.Generic...), Chunk: append([]ComponentID(nil), s.Chunk...), Pairs: append([]Pair(nil), s.Pairs...)}
	if kind == kindChunk {
		out.Chunk = insertSorted(out.Chunk, id)
	} else {
		out.Generic = insertSorted(out.Generic, id)
	}
	return out
}

// withRemoved returns a new signature with id removed from the part
// named by kind.
func (s Signature) withRemoved(id ComponentID, kind componentKind) Signature {
	out := Signature{Generic: append([]ComponentID(nil), s.Generic...), Chunk: append([]ComponentID(nil), s.Chunk...), Pairs: append([]Pair(nil), s.Pairs...)}
	if kind == kindChunk {
		out.Chunk = removeSorted(out.Chunk, id)
	} else {
		out.Generic = removeSorted(out.Generic, id)
	}
	return out
}

func insertSorted(ids []ComponentID, id ComponentID) []ComponentID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []ComponentID, id ComponentID) []ComponentID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i >= len(ids) || ids[i] != id {
		return ids
	}
	return append(ids[:i], ids[i+1:]...)
}

// withAddedPair returns a new signature with p inserted among the
// relationship pairs, preserving sort order. A no-op if p is already
// present.
func (s Signature) withAddedPair(p Pair) Signature {
	out := Signature{
		Generic: append([]ComponentID(nil), s.Generic...),
		Chunk:   append([]ComponentID(nil), s.Chunk...),
		Pairs:   insertSortedPair(append([]Pair(nil), s.Pairs...), p),
	}
	return out
}

// withRemovedPair returns a new signature with p removed from the
// relationship pairs.
func (s Signature) withRemovedPair(p Pair) Signature {
	out := Signature{
		Generic: append([]ComponentID(nil), s.Generic...),
		Chunk:   append([]ComponentID(nil), s.Chunk...),
		Pairs:   removeSortedPair(append([]Pair(nil), s.Pairs...), p),
	}
	return out
}

func containsSortedPair(pairs []Pair, p Pair) bool {
	i := sort.Search(len(pairs), func(i int) bool { return pairs[i] >= p })
	return i < len(pairs) && pairs[i] == p
}

func insertSortedPair(pairs []Pair, p Pair) []Pair {
	i := sort.Search(len(pairs), func(i int) bool { return pairs[i] >= p })
	if i < len(pairs) && pairs[i] == p {
		return pairs
	}
	pairs = append(pairs, 0)
	copy(pairs[i+1:], pairs[i:])
	pairs[i] = p
	return pairs
}

func removeSortedPair(pairs []Pair, p Pair) []Pair {
	i := sort.Search(len(pairs), func(i int) bool { return pairs[i] >= p })
	if i >= len(pairs) || pairs[i] != p {
		return pairs
	}
	return append(pairs[:i], pairs[i+1:]...)
}

// xxhashString is the shared name→hash helper used by the descriptor
// registry and anywhere else a stable hash of a short string is needed.
func xxhashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
