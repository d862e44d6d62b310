package silo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func spawnWithPosition(t *testing.T, w *World, pos Comp[Position], n int) []Entity {
	t.Helper()
	out := make([]Entity, n)
	for i := range out {
		e, err := w.AddEntity()
		require.NoError(t, err)
		require.NoError(t, w.AddComponent(e, pos.ID()))
		out[i] = e
	}
	return out
}

func TestQueryAllMatchesSupersetArchetypes(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)
	vel := Register[Velocity](w)

	withPos := spawnWithPosition(t, w, pos, 3)
	withBoth, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(withBoth, pos.ID()))
	require.NoError(t, w.AddComponent(withBoth, vel.ID()))

	q, err := w.Query().All(pos.ID()).Compile()
	require.NoError(t, err)

	seen := map[Entity]bool{}
	q.Run(func(it *Iterator) {
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
	})

	require.Len(t, seen, len(withPos)+1)
	require.True(t, seen[withBoth])
}

func TestQueryNotExcludesArchetype(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)
	vel := Register[Velocity](w)

	onlyPos := spawnWithPosition(t, w, pos, 2)
	both, _ := w.AddEntity()
	require.NoError(t, w.AddComponent(both, pos.ID()))
	require.NoError(t, w.AddComponent(both, vel.ID()))

	q, err := w.Query().All(pos.ID()).Not(vel.ID()).Compile()
	require.NoError(t, err)

	seen := map[Entity]bool{}
	q.Run(func(it *Iterator) {
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
	})

	require.Len(t, seen, len(onlyPos))
	require.False(t, seen[both])
}

func TestQueryChangedFilter(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)

	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(e, pos.ID()))

	q, err := w.Query().All(pos.ID()).Changed(pos.ID()).Compile()
	require.NoError(t, err)

	// AddComponent's construction counts as a write, so the first run
	// must see the row.
	first := 0
	q.Run(func(it *Iterator) { first += it.Len() })
	require.Equal(t, 1, first)

	second := 0
	q.Run(func(it *Iterator) { second += it.Len() })
	require.Equal(t, 0, second, "no write happened since the last run")

	pos.Set(w, e, Position{X: 1})

	third := 0
	q.Run(func(it *Iterator) { third += it.Len() })
	require.Equal(t, 1, third)
}

func TestQuerySilentSetDoesNotTriggerChanged(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)

	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(e, pos.ID()))

	q, err := w.Query().All(pos.ID()).Changed(pos.ID()).Compile()
	require.NoError(t, err)
	q.Run(func(it *Iterator) {}) // consume the initial construction write

	pos.SetSilent(w, e, Position{X: 2})

	count := 0
	q.Run(func(it *Iterator) { count += it.Len() })
	require.Equal(t, 0, count)
}

func TestQueryConstraintDisabledOnly(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)

	enabled, _ := w.AddEntity()
	disabled, _ := w.AddEntity()
	require.NoError(t, w.AddComponent(enabled, pos.ID()))
	require.NoError(t, w.AddComponent(disabled, pos.ID()))
	require.NoError(t, w.EnableEntity(disabled, false))

	q, err := w.Query().All(pos.ID()).With(DisabledOnly).Compile()
	require.NoError(t, err)

	seen := map[Entity]bool{}
	q.Run(func(it *Iterator) {
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
	})
	require.Equal(t, map[Entity]bool{disabled: true}, seen)
}

func TestQueryCompileReusesCachedPlan(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)
	vel := Register[Velocity](w)

	q1, err := w.Query().All(pos.ID()).Any(vel.ID()).Compile()
	require.NoError(t, err)
	q2, err := w.Query().Any(vel.ID()).All(pos.ID()).Compile()
	require.NoError(t, err)

	require.Same(t, q1.plan, q2.plan, "term order must not change the compiled plan identity")
}

func TestQueryTooManyTerms(t *testing.T) {
	w := NewWorld()
	b := w.Query()
	for i := 0; i < Config.MaxQueryTerms+1; i++ {
		b.All(ComponentID(i))
	}
	_, err := b.Compile()
	require.ErrorAs(t, err, &QueryTooManyTermsError{})
}

func TestWorldPairAttachDetach(t *testing.T) {
	w := NewWorld()
	likes := NewPair(1, 42)

	e, err := w.AddEntity()
	require.NoError(t, err)
	require.False(t, w.HasPair(e, likes))

	require.NoError(t, w.AddPair(e, likes))
	require.True(t, w.HasPair(e, likes))

	require.ErrorAs(t, w.AddPair(e, likes), &DuplicatePairError{})

	require.NoError(t, w.RemovePair(e, likes))
	require.False(t, w.HasPair(e, likes))

	require.ErrorAs(t, w.RemovePair(e, likes), &MissingPairError{})
}

func TestQueryAllPairsExactMatch(t *testing.T) {
	w := NewWorld()
	likes := NewPair(1, 42)
	dislikes := NewPair(2, 42)

	match, _ := w.AddEntity()
	require.NoError(t, w.AddPair(match, likes))

	other, _ := w.AddEntity()
	require.NoError(t, w.AddPair(other, dislikes))

	q, err := w.Query().AllPairs(likes).Compile()
	require.NoError(t, err)

	seen := map[Entity]bool{}
	q.Run(func(it *Iterator) {
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
	})
	require.Equal(t, map[Entity]bool{match: true}, seen)
}

func TestQueryAllPairsWildcardRelation(t *testing.T) {
	w := NewWorld()
	likesBob := NewPair(1, 42)
	dislikesBob := NewPair(2, 42)
	likesAlice := NewPair(1, 7)

	a, _ := w.AddEntity()
	require.NoError(t, w.AddPair(a, likesBob))
	b, _ := w.AddEntity()
	require.NoError(t, w.AddPair(b, dislikesBob))
	c, _ := w.AddEntity()
	require.NoError(t, w.AddPair(c, likesAlice))

	// Any relation targeting Bob.
	q, err := w.Query().AllPairs(NewPair(WildcardID, 42)).Compile()
	require.NoError(t, err)

	seen := map[Entity]bool{}
	q.Run(func(it *Iterator) {
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
	})
	require.Equal(t, map[Entity]bool{a: true, b: true}, seen)
}

func TestQueryNotPairsExcludesArchetype(t *testing.T) {
	w := NewWorld()
	likes := NewPair(1, 42)

	plain, _ := w.AddEntity()
	tagged, _ := w.AddEntity()
	require.NoError(t, w.AddPair(tagged, likes))

	q, err := w.Query().NotPairs(NewPair(1, WildcardID)).Compile()
	require.NoError(t, err)

	seen := map[Entity]bool{}
	q.Run(func(it *Iterator) {
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
	})
	require.True(t, seen[plain])
	require.False(t, seen[tagged])
}

func TestQueryMixesComponentAndPairTerms(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)
	likes := NewPair(1, 42)

	both, _ := w.AddEntity()
	require.NoError(t, w.AddComponent(both, pos.ID()))
	require.NoError(t, w.AddPair(both, likes))

	onlyPos, _ := w.AddEntity()
	require.NoError(t, w.AddComponent(onlyPos, pos.ID()))

	q, err := w.Query().All(pos.ID()).AllPairs(likes).Compile()
	require.NoError(t, err)

	seen := map[Entity]bool{}
	q.Run(func(it *Iterator) {
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
	})
	require.Equal(t, map[Entity]bool{both: true}, seen)
}

func TestQueryRunParallelVisitsEveryChunk(t *testing.T) {
	w := NewWorld()
	pos := Register[Position](w)
	entities := spawnWithPosition(t, w, pos, 500)

	q, err := w.Query().All(pos.ID()).Compile()
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[Entity]bool)
	q.RunParallel(func(it *Iterator) {
		mu.Lock()
		for row := range it.Rows() {
			seen[it.Entity(row)] = true
		}
		mu.Unlock()
	})
	require.Len(t, seen, len(entities))
}
