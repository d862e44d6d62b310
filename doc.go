/*
Package silo is an archetype-chunk Entity-Component-System storage and
query engine for games and simulations.

Silo groups entities into archetypes by their exact component signature,
packs each archetype's rows into fixed-byte chunks, and compiles queries
into cached plans that are matched against newly registered archetypes
lazily and iterated in row batches.

Core Concepts:

  - Entity: a generation-tagged 64-bit handle for a game object.
  - Component: a small value type attached to entities; described once
    by a Descriptor obtained through Register.
  - Archetype: the set of chunks holding every entity with one exact
    component signature.
  - Chunk: a fixed-capacity block of rows for one archetype.
  - Query: a compiled, cached plan matched against archetypes and run
    over their chunks in batches.

Basic usage:

	w := silo.NewWorld()

	position := silo.Register[Position](w)
	velocity := silo.Register[Velocity](w)

	e, _ := w.AddEntity()
	w.AddComponent(e, position.ID())
	w.AddComponent(e, velocity.ID())
	position.Set(w, e, Position{X: 1})

	q, _ := w.Query().All(position.ID(), velocity.ID()).Compile()
	q.Run(func(it *silo.Iterator) {
		pos := position.ViewMut(it)
		vel := velocity.View(it)
		for row := range it.Rows() {
			p := pos.Get(row)
			p.X += vel.Get(row).X
			pos.Set(row, p)
		}
	})

Silo is single-threaded with respect to mutation: structural changes to
a World must come from the thread that owns it. Read-only queries may be
fanned out across goroutines only via Query.RunParallel, under the
contract described on that method.
*/
package silo
