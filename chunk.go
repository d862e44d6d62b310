package silo

import "unsafe"

// Chunk is the central storage primitive: a fixed-capacity block of
// rows for one archetype, with optional SoA layout per component,
// per-component version tracking, and an enable/disable partition.
//
// Invariants: 0 <= disabledCount <= rowCount <= capacity; rows
// [0, disabledCount) are disabled, rows [disabledCount, rowCount) are
// enabled; versions are monotonically non-decreasing and only advance
// when a writable view is acquired with the version-update flag.
type Chunk struct {
	archetype *Archetype
	layout    *chunkLayout
	data      []byte
	entities  []Entity
	versions  []uint64 // parallel to layout.generic

	rowCount      int
	disabledCount int

	lockCount      int32
	deathCountdown int
}

func newChunk(a *Archetype, layout *chunkLayout) *Chunk {
	return &Chunk{
		archetype: a,
		layout:    layout,
		data:      make([]byte, layout.totalBytes),
		entities:  make([]Entity, layout.capacity),
		versions:  make([]uint64, len(layout.generic)),
	}
}

// Capacity is the fixed row capacity computed at archetype creation.
func (c *Chunk) Capacity() int { return c.layout.capacity }

// Size is the total row count (enabled + disabled).
func (c *Chunk) Size() int { return c.rowCount }

// SizeEnabled is the enabled row count.
func (c *Chunk) SizeEnabled() int { return c.rowCount - c.disabledCount }

// SizeDisabled is the disabled row count (the disabled prefix length).
func (c *Chunk) SizeDisabled() int { return c.disabledCount }

// Full reports whether the chunk has no room for another row.
func (c *Chunk) Full() bool { return c.rowCount >= c.layout.capacity }

// Locked reports whether structural changes are currently forbidden.
func (c *Chunk) Locked() bool { return c.lockCount > 0 }

// Lock increments (enable=true) or decrements (enable=false) the
// structural-lock counter. The World checks Locked and rejects a
// structural change on a locked chunk; AddRow, RemoveRow and EnableRow
// themselves do not check the counter.
func (c *Chunk) Lock(enable bool) {
	if enable {
		c.lockCount++
	} else {
		c.lockCount--
	}
}

// EntityAt returns the entity stored at row.
func (c *Chunk) EntityAt(row int) Entity { return c.entities[row] }

// ArchetypeID returns the id of the archetype this chunk belongs to.
func (c *Chunk) ArchetypeID() ArchetypeID { return c.archetype.id }

func (c *Chunk) columnPtr(colIdx, row int) unsafe.Pointer {
	col := &c.layout.generic[colIdx]
	return unsafe.Pointer(&c.data[col.Offset+uintptr(row)*col.Desc.Size])
}

func (c *Chunk) lanePtr(colIdx, lane, row int) unsafe.Pointer {
	col := &c.layout.generic[colIdx]
	return unsafe.Pointer(&c.data[col.LaneOffsets[lane]+uintptr(row)*col.Desc.LaneBytes])
}

func (c *Chunk) singletonPtr(idx int) unsafe.Pointer {
	col := &c.layout.chunkSingletons[idx]
	return unsafe.Pointer(&c.data[col.Offset])
}

// AddRow appends a row to the enabled region. Returns ChunkFull if the
// chunk has no spare capacity. bumpVersion controls whether every
// per-component version counter advances (callers doing bulk
// population with a later explicit touch may skip this).
func (c *Chunk) AddRow(e Entity, bumpVersion bool) (int, error) {
	if c.rowCount >= c.layout.capacity {
		return 0, chunkFullError{}
	}
	row := c.rowCount
	c.entities[row] = e
	for i, col := range c.layout.generic {
		if col.isSoA() {
			for lane := 0; lane < col.Desc.SoAArity; lane++ {
				zeroBytes(c.lanePtr(i, lane, row), col.Desc.LaneBytes)
			}
		} else if col.Desc.Hooks.Construct != nil {
			col.Desc.Hooks.Construct(c.columnPtr(i, row))
		}
		if bumpVersion {
			c.versions[i]++
		}
	}
	c.rowCount++
	return row, nil
}

func zeroBytes(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}

// swapRows exchanges the full row contents (every column plus the
// entity slot) at indices a and b.
func (c *Chunk) swapRows(a, b int) {
	if a == b {
		return
	}
	for i, col := range c.layout.generic {
		if col.isSoA() {
			for lane := 0; lane < col.Desc.SoAArity; lane++ {
				swapBytes(c.lanePtr(i, lane, a), c.lanePtr(i, lane, b), col.Desc.LaneBytes)
			}
			continue
		}
		if col.Desc.Hooks.Swap != nil {
			col.Desc.Hooks.Swap(c.columnPtr(i, a), c.columnPtr(i, b))
		} else {
			swapBytes(c.columnPtr(i, a), c.columnPtr(i, b), col.Desc.Size)
		}
	}
	c.entities[a], c.entities[b] = c.entities[b], c.entities[a]
}

func swapBytes(a, b unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	pa := unsafe.Slice((*byte)(a), n)
	pb := unsafe.Slice((*byte)(b), n)
	for i := uintptr(0); i < n; i++ {
		pa[i], pb[i] = pb[i], pa[i]
	}
}

// RemoveRow swap-erases row, honoring the enabled/disabled partition
// per §4.4: when the removed row is disabled it is first swapped to
// the disabled/enabled boundary before the erase happens at the end of
// whichever partition it lands in. records lets the caller's entity
// table be kept in sync with every row that moves.
func (c *Chunk) RemoveRow(row int, records *entitySet) {
	if row >= c.disabledCount {
		last := c.rowCount - 1
		if row != last {
			c.swapRows(row, last)
			records.get(c.entities[row]).row = int32(row)
		}
		c.rowCount--
		return
	}

	lastDisabled := c.disabledCount - 1
	if row != lastDisabled {
		c.swapRows(row, lastDisabled)
		records.get(c.entities[row]).row = int32(row)
	}
	c.disabledCount--

	holePos := c.disabledCount
	lastEnabled := c.rowCount - 1
	if holePos != lastEnabled {
		c.swapRows(holePos, lastEnabled)
		records.get(c.entities[holePos]).row = int32(holePos)
	}
	c.rowCount--
}

// EnableRow crosses row over the enabled/disabled boundary, keeping
// records' disabled bit mirrored to the chunk's own partitioning.
func (c *Chunk) EnableRow(row int, enable bool, records *entitySet) {
	if enable {
		if row >= c.disabledCount {
			return // already enabled, no-op per §8
		}
		boundary := c.disabledCount - 1
		if row != boundary {
			c.swapRows(row, boundary)
			records.get(c.entities[row]).row = int32(row)
		}
		c.disabledCount--
		rec := records.get(c.entities[boundary])
		rec.row = int32(boundary)
		rec.disabled = false
		return
	}
	if row < c.disabledCount {
		return // already disabled, no-op
	}
	boundary := c.disabledCount
	if row != boundary {
		c.swapRows(row, boundary)
		records.get(c.entities[row]).row = int32(row)
	}
	c.disabledCount++
	rec := records.get(c.entities[boundary])
	rec.row = int32(boundary)
	rec.disabled = true
}

// Changed reports whether the column for id has been written (with a
// version-bumping view) since sinceVersion.
func (c *Chunk) Changed(id ComponentID, sinceVersion uint64) bool {
	idx := c.layout.columnIndex(id)
	if idx < 0 {
		return false
	}
	return c.versions[idx] > sinceVersion
}

func (c *Chunk) version(colIdx int) uint64 { return c.versions[colIdx] }

func (c *Chunk) touch(colIdx int) { c.versions[colIdx]++ }

// gatherSoA reads every lane of row colIdx into a contiguous value of
// the component's original Go layout, pointed to by out.
func (c *Chunk) gatherSoA(colIdx, row int, out unsafe.Pointer, desc *Descriptor) {
	for lane := 0; lane < desc.SoAArity; lane++ {
		src := c.lanePtr(colIdx, lane, row)
		dst := unsafe.Add(out, desc.SoAFieldOffsets[lane])
		copyBytes(dst, src, desc.LaneBytes)
	}
}

// scatterSoA writes every field of a contiguous value pointed to by in
// into its respective lane at row.
func (c *Chunk) scatterSoA(colIdx, row int, in unsafe.Pointer, desc *Descriptor) {
	for lane := 0; lane < desc.SoAArity; lane++ {
		dst := c.lanePtr(colIdx, lane, row)
		src := unsafe.Add(in, desc.SoAFieldOffsets[lane])
		copyBytes(dst, src, desc.LaneBytes)
	}
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}

type chunkFullError struct{}

func (chunkFullError) Error() string { return "silo: chunk is full" }
