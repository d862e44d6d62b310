package silo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntitySetFreeListRoundTrip(t *testing.T) {
	s := newEntitySet()

	var live []Entity
	for i := 0; i < 10; i++ {
		e, err := s.alloc()
		require.NoError(t, err)
		live = append(live, e)
	}
	require.NoError(t, s.validate())

	for _, e := range live[:4] {
		s.free(e)
	}
	require.NoError(t, s.validate())
	require.Equal(t, 6, s.liveCount())

	for i := 0; i < 4; i++ {
		e, err := s.alloc()
		require.NoError(t, err)
		require.NoError(t, s.validate())
		_ = e
	}
	require.Equal(t, 10, s.liveCount())
}

func TestEntitySetStaleGenerationIsInvalid(t *testing.T) {
	s := newEntitySet()
	e, err := s.alloc()
	require.NoError(t, err)
	s.free(e)
	require.False(t, s.isValid(e))

	e2, err := s.alloc()
	require.NoError(t, err)
	require.Equal(t, e.Index(), e2.Index())
	require.NotEqual(t, e.Generation(), e2.Generation())
}

func TestChunkLayoutPacksTagFreeArchetypeWithinBudget(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)
	vel := Register[Velocity](w)
	health := Register[Health](w)

	sig := Signature{Generic: []ComponentID{pos.ID(), vel.ID(), health.ID()}}
	layout := buildChunkLayout(sig.Generic, sig.Chunk)

	require.Greater(t, layout.capacity, 0)
	require.LessOrEqual(t, layout.totalBytes, Config.ChunkBytes)
}

func TestArchetypeDefragmentCompactsAcrossChunks(t *testing.T) {
	defer Config.Reset()
	Config.ChunkBytes = 256 // force several small chunks for this archetype

	w := NewWorld()
	pos := Register[Position](w)

	var entities []Entity
	for i := 0; i < 50; i++ {
		e, err := w.AddEntity()
		require.NoError(t, err)
		require.NoError(t, w.AddComponent(e, pos.ID()))
		entities = append(entities, e)
	}

	rec, _ := w.recordFor(entities[0])
	arch := w.archetypeOf(rec.chunk)
	require.Greater(t, len(arch.chunks), 1, "the small chunk budget should force multiple chunks")

	// Free every other entity to open gaps across chunks, then ask the
	// world to compact.
	for i, e := range entities {
		if i%2 == 0 {
			require.NoError(t, w.DeleteEntity(e))
		}
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Update())
	}

	total := 0
	for _, c := range arch.chunks {
		total += c.Size()
	}
	require.Equal(t, 25, total)
}

func TestArchetypesWithIndexesByComponent(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)
	vel := Register[Velocity](w)

	e1, _ := w.AddEntity()
	require.NoError(t, w.AddComponent(e1, pos.ID()))

	e2, _ := w.AddEntity()
	require.NoError(t, w.AddComponent(e2, pos.ID()))
	require.NoError(t, w.AddComponent(e2, vel.ID()))

	posArchs := w.ArchetypesWith(pos.ID())
	require.Len(t, posArchs, 2, "one archetype for {Position}, one for {Position, Velocity}")

	velArchs := w.ArchetypesWith(vel.ID())
	require.Len(t, velArchs, 1)
}

func TestSignatureHashIsInsertionOrderIndependent(t *testing.T) {
	var a, b Signature
	for _, id := range []ComponentID{3, 1, 2} {
		a = a.withAdded(id, kindGeneric)
	}
	for _, id := range []ComponentID{1, 2, 3} {
		b = b.withAdded(id, kindGeneric)
	}
	require.True(t, a.Equal(b))
	require.Equal(t, a.Hash(), b.Hash())
}
