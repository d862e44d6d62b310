package silo

import "sort"

// columnLayout is one component's precomputed placement inside a
// chunk's backing buffer. For an AoS column, Offset is where row 0
// begins and row i lives at Offset+i*Desc.Size. For an SoA column,
// LaneOffsets holds one offset per sub-array (len == Desc.SoAArity)
// and row i of lane j lives at LaneOffsets[j]+i*Desc.LaneBytes.
type columnLayout struct {
	ID          ComponentID
	Desc        *Descriptor
	Offset      uintptr
	LaneOffsets []uintptr // nil for AoS columns
}

func (c columnLayout) isSoA() bool { return len(c.LaneOffsets) > 0 }

// chunkLayout is the archetype-wide template computed once when an
// archetype is created (§4.5 "chunk layout computation"): it fixes
// every chunk of that archetype to the same column offsets and row
// capacity.
type chunkLayout struct {
	// generic holds every per-row column, AoS columns first (sorted by
	// descending alignment then descending size) followed by SoA
	// columns, in that fixed order. A column's position in this slice
	// is its "column index", used to index Chunk.versions.
	generic []columnLayout
	// chunkSingletons holds the per-chunk (unique) components, each
	// stored once per chunk rather than once per row.
	chunkSingletons []columnLayout
	capacity        int
	totalBytes      uintptr
}

func (l *chunkLayout) columnIndex(id ComponentID) int {
	for i, c := range l.generic {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (l *chunkLayout) singletonIndex(id ComponentID) int {
	for i, c := range l.chunkSingletons {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func roundUp(x, align uintptr) uintptr {
	if align <= 1 {
		return x
	}
	return (x + align - 1) / align * align
}

func maxLaneWidth() uintptr {
	w := 1
	for _, lw := range Config.SoALaneWidths {
		if lw > w {
			w = lw
		}
	}
	return uintptr(w)
}

// buildChunkLayout implements the four-step algorithm from §4.5:
//  1. Sort AoS columns by descending alignment, then descending size;
//     pack them back-to-back.
//  2. For each SoA component, reserve an aligned block of arity
//     sub-arrays plus arity*4 bytes of trailing padding.
//  3. Place per-chunk singletons last, aligned.
//  4. Capacity is the largest row count such that every AoS column and
//     the per-row portion of every SoA column fit the chunk byte
//     budget.
func buildChunkLayout(genericIDs []ComponentID, chunkIDs []ComponentID) *chunkLayout {
	type ref struct {
		id   ComponentID
		desc *Descriptor
	}
	var aos, soa, singles []ref
	for _, id := range genericIDs {
		d := descriptorByID(id)
		r := ref{id, d}
		if d.SoAArity > 0 {
			soa = append(soa, r)
		} else {
			aos = append(aos, r)
		}
	}
	for _, id := range chunkIDs {
		singles = append(singles, ref{id, descriptorByID(id)})
	}

	sort.SliceStable(aos, func(i, j int) bool {
		if aos[i].desc.Align != aos[j].desc.Align {
			return aos[i].desc.Align > aos[j].desc.Align
		}
		return aos[i].desc.Size > aos[j].desc.Size
	})
	sort.SliceStable(soa, func(i, j int) bool {
		if aLane, bLane := soa[i].desc.LaneBytes, soa[j].desc.LaneBytes; aLane != bLane {
			return aLane > bLane
		}
		return soa[i].id < soa[j].id
	})

	var aosRowBytes, soaRowBytes, chunkFixedBytes, soaPadding uintptr
	for _, r := range aos {
		aosRowBytes += r.desc.Size
	}
	for _, r := range soa {
		soaRowBytes += uintptr(r.desc.SoAArity) * r.desc.LaneBytes
		soaPadding += uintptr(r.desc.SoAArity) * 4
	}
	for _, r := range singles {
		chunkFixedBytes = roundUp(chunkFixedBytes, r.desc.Align) + r.desc.Size
	}

	budget := Config.ChunkBytes
	rowBytes := aosRowBytes + soaRowBytes

	var capacity int
	switch {
	case budget <= chunkFixedBytes+soaPadding:
		capacity = 1
	case rowBytes == 0:
		capacity = 4096 // tag/singleton-only archetype: bound only by row-index space
	default:
		avail := budget - chunkFixedBytes - soaPadding
		capacity = int(avail / rowBytes)
		if capacity < 1 {
			capacity = 1
		}
	}

	lw := maxLaneWidth()
	var offset uintptr
	generic := make([]columnLayout, 0, len(aos)+len(soa))
	for _, r := range aos {
		offset = roundUp(offset, r.desc.Align)
		generic = append(generic, columnLayout{ID: r.id, Desc: r.desc, Offset: offset})
		offset += r.desc.Size * uintptr(capacity)
	}
	for _, r := range soa {
		packAlign := lw * r.desc.LaneBytes
		if packAlign == 0 {
			packAlign = r.desc.LaneBytes
		}
		subBytes := roundUp(uintptr(capacity)*r.desc.LaneBytes, packAlign)
		laneOffsets := make([]uintptr, r.desc.SoAArity)
		offset = roundUp(offset, packAlign)
		for j := 0; j < r.desc.SoAArity; j++ {
			laneOffsets[j] = offset
			offset += subBytes
		}
		offset += uintptr(r.desc.SoAArity) * 4
		generic = append(generic, columnLayout{ID: r.id, Desc: r.desc, Offset: laneOffsets[0], LaneOffsets: laneOffsets})
	}

	chunkSingletons := make([]columnLayout, 0, len(singles))
	for _, r := range singles {
		offset = roundUp(offset, r.desc.Align)
		chunkSingletons = append(chunkSingletons, columnLayout{ID: r.id, Desc: r.desc, Offset: offset})
		offset += r.desc.Size
	}

	return &chunkLayout{
		generic:         generic,
		chunkSingletons: chunkSingletons,
		capacity:        capacity,
		totalBytes:      offset,
	}
}
