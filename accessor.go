package silo

import "unsafe"

// Comp is a typed handle to a registered component, returned by
// Register. It is the replacement for the source language's template
// instantiation: every accessor below dispatches through the
// descriptor's function pointers rather than through a generic type
// parameter at runtime.
type Comp[T any] struct {
	id   ComponentID
	desc *Descriptor
}

// ID returns the stable component id this handle was registered with.
func (c Comp[T]) ID() ComponentID { return c.id }

// Descriptor returns the shared, immutable descriptor backing this
// handle.
func (c Comp[T]) Descriptor() *Descriptor { return c.desc }

// Register obtains (creating on first use) the descriptor for T and
// returns a typed handle bound to it. Registration is global — the
// World argument exists so call sites read naturally and so a future
// per-world component cap can be enforced without changing the API.
func Register[T any](w *World) Comp[T] {
	d := MustGetOrCreateDescriptor[T]()
	return Comp[T]{id: d.ID, desc: d}
}

// View is a bound accessor over one chunk's column for T, handed out by
// Comp.View/ViewMut/ViewSilentMut during query iteration.
type View[T any] struct {
	chunk  *Chunk
	colIdx int
	desc   *Descriptor
}

// Get reads row's value. Chunk-singleton components ignore row and
// return the chunk's single shared instance. For an SoA component this
// gathers every lane into a contiguous T; for AoS it's a direct read.
func (v View[T]) Get(row int) T {
	if v.desc.Kind == kindChunk {
		return *(*T)(v.chunk.singletonPtr(v.colIdx))
	}
	if v.desc.SoAArity > 0 {
		var out T
		v.chunk.gatherSoA(v.colIdx, row, unsafe.Pointer(&out), v.desc)
		return out
	}
	return *(*T)(v.chunk.columnPtr(v.colIdx, row))
}

// Set writes row's value. Chunk-singleton components ignore row and
// write the chunk's single shared instance. For an SoA component this
// scatters the value across lanes; for AoS it's a direct write.
func (v View[T]) Set(row int, val T) {
	if v.desc.Kind == kindChunk {
		*(*T)(v.chunk.singletonPtr(v.colIdx)) = val
		return
	}
	if v.desc.SoAArity > 0 {
		v.chunk.scatterSoA(v.colIdx, row, unsafe.Pointer(&val), v.desc)
		return
	}
	*(*T)(v.chunk.columnPtr(v.colIdx, row)) = val
}

// At returns a direct pointer into the chunk's column for in-place
// mutation. Only valid for AoS and chunk-singleton components; returns
// nil for SoA ones, whose fields are not contiguous in memory.
func (v View[T]) At(row int) *T {
	if v.desc.Kind == kindChunk {
		return (*T)(v.chunk.singletonPtr(v.colIdx))
	}
	if v.desc.SoAArity > 0 {
		return nil
	}
	return (*T)(v.chunk.columnPtr(v.colIdx, row))
}

// View returns a read-only accessor over it's chunk. Acquiring it never
// advances the component's version counter.
func (c Comp[T]) View(it *Iterator) View[T] {
	if c.desc.Kind == kindChunk {
		return View[T]{chunk: it.chunk, colIdx: it.chunk.layout.singletonIndex(c.id), desc: c.desc}
	}
	return View[T]{chunk: it.chunk, colIdx: it.chunk.layout.columnIndex(c.id), desc: c.desc}
}

// ViewMut returns a read-write accessor and bumps the component's
// per-chunk version counter, so a subsequent Changed()-filtered query
// observes this batch. Chunk-singleton components carry no per-column
// version slot and are not observable through Changed.
func (c Comp[T]) ViewMut(it *Iterator) View[T] {
	v := c.View(it)
	if c.desc.Kind != kindChunk {
		v.chunk.touch(v.colIdx)
	}
	return v
}

// ViewSilentMut returns a read-write accessor without bumping the
// version counter ("silent" write, invisible to change filters).
func (c Comp[T]) ViewSilentMut(it *Iterator) View[T] {
	return c.View(it)
}

// Has reports whether e's archetype carries this component.
func (c Comp[T]) Has(w *World, e Entity) bool {
	rec, ok := w.recordFor(e)
	if !ok {
		return false
	}
	return c.columnIndex(rec.chunk) >= 0
}

func (c Comp[T]) columnIndex(chunk *Chunk) int {
	if c.desc.Kind == kindChunk {
		return chunk.layout.singletonIndex(c.id)
	}
	return chunk.layout.columnIndex(c.id)
}

// Get reads e's current value, returning ok=false if e lacks the
// component or is no longer valid.
func (c Comp[T]) Get(w *World, e Entity) (value T, ok bool) {
	rec, valid := w.recordFor(e)
	if !valid {
		return value, false
	}
	idx := c.columnIndex(rec.chunk)
	if idx < 0 {
		return value, false
	}
	v := View[T]{chunk: rec.chunk, colIdx: idx, desc: c.desc}
	return v.Get(int(rec.row)), true
}

// Set writes e's value, bumping the component's chunk version and the
// world version. Returns false if e lacks the component or is invalid.
func (c Comp[T]) Set(w *World, e Entity, val T) bool {
	return c.set(w, e, val, true)
}

// SetSilent writes e's value without advancing any version counter.
func (c Comp[T]) SetSilent(w *World, e Entity, val T) bool {
	return c.set(w, e, val, false)
}

func (c Comp[T]) set(w *World, e Entity, val T, bump bool) bool {
	rec, valid := w.recordFor(e)
	if !valid {
		return false
	}
	idx := c.columnIndex(rec.chunk)
	if idx < 0 {
		return false
	}
	v := View[T]{chunk: rec.chunk, colIdx: idx, desc: c.desc}
	v.Set(int(rec.row), val)
	if bump {
		w.bumpVersion()
		if c.desc.Kind != kindChunk && rec.chunk.versions[idx] < w.version {
			rec.chunk.versions[idx] = w.version
		}
	}
	if c.desc.Hooks.OnSet != nil {
		c.desc.Hooks.OnSet(w, e)
	}
	return true
}
