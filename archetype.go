package silo

import (
	"unsafe"

	"github.com/TheBitDrifter/mask"
)

// ArchetypeID stably identifies an archetype within one World, assigned
// on first registration and never reused.
type ArchetypeID uint32

// Archetype is the set of chunks sharing one exact component signature
// (§4.5). Two archetypes in the same world never share a signature.
type Archetype struct {
	id      ArchetypeID
	sig     Signature
	hash    uint64
	sigMask mask.Mask
	layout  *chunkLayout
	chunks  []*Chunk
	graph   archetypeGraph
}

func newArchetypeFrom(id ArchetypeID, sig Signature) *Archetype {
	var m mask.Mask
	for _, c := range sig.Generic {
		m.Mark(int(c))
	}
	for _, c := range sig.Chunk {
		m.Mark(int(c))
	}
	return &Archetype{
		id:      id,
		sig:     sig,
		hash:    sig.Hash(),
		sigMask: m,
		layout:  buildChunkLayout(sig.Generic, sig.Chunk),
		graph:   newArchetypeGraph(),
	}
}

// ID returns this archetype's stable identifier.
func (a *Archetype) ID() ArchetypeID { return a.id }

// Signature returns the component signature identifying this archetype.
func (a *Archetype) Signature() Signature { return a.sig }

// Chunks returns the archetype's chunk list. Callers must not retain it
// across a structural change.
func (a *Archetype) Chunks() []*Chunk { return a.chunks }

// Len returns the total number of live entities across all chunks.
func (a *Archetype) Len() int {
	n := 0
	for _, c := range a.chunks {
		n += c.Size()
	}
	return n
}

// findOrCreateFreeChunk returns the first non-full, unlocked chunk,
// allocating a new one if none qualifies.
func (a *Archetype) findOrCreateFreeChunk() *Chunk {
	for _, c := range a.chunks {
		if !c.Full() && !c.Locked() {
			return c
		}
	}
	c := newChunk(a, a.layout)
	a.chunks = append(a.chunks, c)
	return c
}

// removeChunk drops c from the archetype's chunk list. Legal only when
// c reports zero rows; the caller (World.Update) is responsible for
// having let its death countdown elapse first.
func (a *Archetype) removeChunk(c *Chunk) {
	for i, cur := range a.chunks {
		if cur == c {
			a.chunks = append(a.chunks[:i], a.chunks[i+1:]...)
			return
		}
	}
}

// defragment round-robins a cursor across chunks, moving rows from the
// tail-most non-empty chunk into the head-most non-full chunk until
// either budget rows have moved or the archetype is already compact.
// Chunks left with zero rows are appended to pendingDelete rather than
// removed immediately, so an in-flight iteration elsewhere in the world
// still sees a consistent chunk list this call.
func (a *Archetype) defragment(budget int, pendingDelete *[]*Chunk, records *entitySet) int {
	moved := 0
	for moved < budget {
		if len(a.chunks) < 2 {
			return moved
		}
		dst := a.headMostNonFull()
		src := a.tailMostNonEmpty(dst)
		if dst == nil || src == nil || dst == src {
			return moved
		}
		for dst.Size() < dst.Capacity() && src.Size() > 0 && moved < budget {
			a.moveOneRow(src, dst, records)
			moved++
		}
		if src.Size() == 0 && src.deathCountdown <= 0 {
			src.deathCountdown = Config.ChunkDeathCountdown
			*pendingDelete = append(*pendingDelete, src)
		}
	}
	return moved
}

func (a *Archetype) headMostNonFull() *Chunk {
	for _, c := range a.chunks {
		if !c.Full() && !c.Locked() {
			return c
		}
	}
	return nil
}

func (a *Archetype) tailMostNonEmpty(exclude *Chunk) *Chunk {
	for i := len(a.chunks) - 1; i >= 0; i-- {
		c := a.chunks[i]
		if c == exclude {
			return nil
		}
		if c.Size() > 0 && !c.Locked() {
			return c
		}
	}
	return nil
}

// moveOneRow relocates the last row of src into dst, preserving which
// side of the enabled/disabled partition the row was on, and fixes up
// the moved entity's record.
func (a *Archetype) moveOneRow(src, dst *Chunk, records *entitySet) {
	row := src.rowCount - 1
	disabled := row < src.disabledCount
	e := src.EntityAt(row)

	dstRow, err := dst.AddRow(e, false)
	if err != nil {
		return
	}
	transferRow(dst, dstRow, src, row)
	src.RemoveRow(row, records)

	rec := records.get(e)
	rec.chunk = dst
	rec.row = int32(dstRow)
	if disabled {
		dst.EnableRow(dstRow, false, records)
	}
}

// transferRow copies every generic component dst's signature shares
// with src from srcRow into dstRow, default-constructing anything dst
// has that src did not (mirroring §4.7's "default-constructs the new
// column" add-component contract).
func transferRow(dst *Chunk, dstRow int, src *Chunk, srcRow int) {
	for i, col := range dst.layout.generic {
		srcIdx := src.layout.columnIndex(col.ID)
		if srcIdx < 0 {
			if col.Desc.Hooks.Construct != nil && !col.isSoA() {
				col.Desc.Hooks.Construct(dst.columnPtr(i, dstRow))
			}
			continue
		}
		if col.isSoA() {
			tmp := make([]byte, col.Desc.Size)
			p := unsafe.Pointer(&tmp[0])
			src.gatherSoA(srcIdx, srcRow, p, col.Desc)
			dst.scatterSoA(i, dstRow, p, col.Desc)
			continue
		}
		if col.Desc.Hooks.Copy != nil {
			col.Desc.Hooks.Copy(dst.columnPtr(i, dstRow), src.columnPtr(srcIdx, srcRow))
		}
	}
}

// buildGraphEdges records the two complementary edges between a and
// other for the given component transition (§4.6).
func buildGraphEdges(a, other *Archetype, kind componentKind, id ComponentID) {
	a.graph.addEdgeRight(kind, id, other.id)
	other.graph.addEdgeLeft(kind, id, a.id)
}
