package silo

import (
	"github.com/TheBitDrifter/bark"
	"github.com/kamstrup/intmap"
)

// World owns the entity table, the archetype registry and its
// lookup indexes, the component→archetype reverse index, and the
// monotonic world version every Changed() filter reads against. It is
// the single point of mediation for every structural change (C7).
type World struct {
	entities *entitySet

	archetypes []*Archetype
	archByHash *intmap.Map[uint64, ArchetypeID]
	compToArch *intmap.Map[uint64, []ArchetypeID]

	rootID ArchetypeID

	version uint64

	activeQueries int32
	pending       operationQueue

	pendingDeleteChunks []*Chunk
	defragArchCursor    int

	queryCache *intmap.Map[uint64, *QueryPlan]

	parentOf    map[Entity]Entity
	parentGen   map[Entity]uint32
	onDestroyOf map[Entity]EntityDestroyCallback
}

// EntityDestroyCallback fires when an entity carrying one (registered
// as a parent through SetParent's cb argument) is deleted, just before
// its slot is released.
type EntityDestroyCallback func(w *World, e Entity)

// NewWorld creates an empty world with its root (zero-component)
// archetype already registered.
func NewWorld() *World {
	w := &World{
		entities:    newEntitySet(),
		archByHash:  intmap.New[uint64, ArchetypeID](64),
		compToArch:  intmap.New[uint64, []ArchetypeID](256),
		queryCache:  intmap.New[uint64, *QueryPlan](32),
		parentOf:    make(map[Entity]Entity),
		parentGen:   make(map[Entity]uint32),
		onDestroyOf: make(map[Entity]EntityDestroyCallback),
	}
	root := newArchetypeFrom(0, Signature{})
	w.archetypes = append(w.archetypes, root)
	w.archByHash.Put(root.hash, root.id)
	w.rootID = root.id
	return w
}

// Version is the world's current monotonic change counter.
func (w *World) Version() uint64 { return w.version }

func (w *World) bumpVersion() { w.version++ }

// Locked reports whether a query is currently iterating this world.
// While locked, the Enqueue* family queues its changes for Update. The
// direct structural calls do not check this flag: they return
// StructuralLockedError only when the affected entity's own chunk is
// locked, and AddEntity checks no lock at all.
func (w *World) Locked() bool { return w.activeQueries > 0 }

func (w *World) lock()   { w.activeQueries++ }
func (w *World) unlock() { w.activeQueries-- }

// IsValid reports whether e refers to a currently live entity.
func (w *World) IsValid(e Entity) bool { return w.entities.isValid(e) }

// recordFor returns e's entity record if e is still valid.
func (w *World) recordFor(e Entity) (*entityRecord, bool) {
	if !w.entities.isValid(e) {
		return nil, false
	}
	return w.entities.get(e), true
}

func (w *World) archetypeOf(c *Chunk) *Archetype { return c.archetype }

// AddEntity allocates a fresh entity with no components, placed in the
// root archetype.
func (w *World) AddEntity() (Entity, error) {
	e, err := w.entities.alloc()
	if err != nil {
		return NullEntity, err
	}
	root := w.archetypes[w.rootID]
	chunk := root.findOrCreateFreeChunk()
	row, err := chunk.AddRow(e, true)
	if err != nil {
		return NullEntity, err
	}
	rec := w.entities.get(e)
	rec.chunk = chunk
	rec.row = int32(row)
	w.bumpVersion()
	return e, nil
}

// CloneEntity creates a new entity in the same archetype as src,
// copying every generic component's value. Per-chunk components are
// not duplicated — the destination chunk already carries its own.
func (w *World) CloneEntity(src Entity) (Entity, error) {
	srcRec, ok := w.recordFor(src)
	if !ok {
		return NullEntity, InvalidEntityError{E: src}
	}
	e, err := w.entities.alloc()
	if err != nil {
		return NullEntity, err
	}
	arch := w.archetypeOf(srcRec.chunk)
	chunk := arch.findOrCreateFreeChunk()
	row, err := chunk.AddRow(e, true)
	if err != nil {
		return NullEntity, err
	}
	transferRow(chunk, row, srcRec.chunk, int(srcRec.row))
	rec := w.entities.get(e)
	rec.chunk = chunk
	rec.row = int32(row)
	if srcRec.disabled {
		chunk.EnableRow(row, false, w.entities)
	}
	w.bumpVersion()
	return e, nil
}

// DeleteEntity removes e from storage and releases its slot. Rejected
// with StructuralLockedError while a query holds e's chunk locked.
func (w *World) DeleteEntity(e Entity) error {
	rec, ok := w.recordFor(e)
	if !ok {
		return InvalidEntityError{E: e}
	}
	if rec.chunk.Locked() {
		return StructuralLockedError{}
	}
	if cb, ok := w.onDestroyOf[e]; ok {
		cb(w, e)
		delete(w.onDestroyOf, e)
	}
	delete(w.parentOf, e)
	delete(w.parentGen, e)
	rec.chunk.RemoveRow(int(rec.row), w.entities)
	if c := rec.chunk; c.Size() == 0 && c.deathCountdown <= 0 {
		c.deathCountdown = Config.ChunkDeathCountdown
		w.pendingDeleteChunks = append(w.pendingDeleteChunks, c)
	}
	w.entities.free(e)
	w.bumpVersion()
	return nil
}

// EnqueueDeleteEntity schedules e for deletion, applying it immediately
// if the world is unlocked or buffering it for the next Update call
// otherwise.
func (w *World) EnqueueDeleteEntity(e Entity) {
	op := deferredDeleteEntity{entity: e, generation: e.Generation()}
	if !w.Locked() {
		_ = op.Apply(w)
		return
	}
	w.pending.enqueue(op)
}

// EnqueueNewEntities creates count entities, each carrying every
// component in ids, immediately if the world is unlocked or deferred
// to the next Update call otherwise.
func (w *World) EnqueueNewEntities(count int, ids ...ComponentID) error {
	op := deferredNewEntities{count: count, components: ids}
	if !w.Locked() {
		return op.Apply(w)
	}
	w.pending.enqueue(op)
	return nil
}

// EnqueueDestroyEntities deletes every entity in es, immediately if the
// world is unlocked or deferred to the next Update call otherwise. An
// entity already invalid when its deferred delete runs is silently
// skipped, mirroring EnqueueDeleteEntity.
func (w *World) EnqueueDestroyEntities(es ...Entity) error {
	if !w.Locked() {
		for _, e := range es {
			if err := w.DeleteEntity(e); err != nil {
				return err
			}
		}
		return nil
	}
	for _, e := range es {
		w.pending.enqueue(deferredDeleteEntity{entity: e, generation: e.Generation()})
	}
	return nil
}

// AddComponent gives e a new component, moving it into the archetype
// one edge to the right in the component graph and default-
// constructing the new column.
func (w *World) AddComponent(e Entity, id ComponentID) error {
	rec, ok := w.recordFor(e)
	if !ok {
		return InvalidEntityError{E: e}
	}
	if rec.chunk.Locked() {
		return StructuralLockedError{}
	}
	desc := descriptorByID(id)
	if desc == nil {
		panic(bark.AddTrace(AssertionError{Msg: "add-component referenced an unregistered component id"}))
	}
	from := w.archetypeOf(rec.chunk)
	if from.sig.Contains(id, desc.Kind) {
		return DuplicateComponentError{ComponentName: desc.Name}
	}
	to := w.findOrCreateRight(from, desc.Kind, id)
	if err := w.moveEntity(e, rec, to); err != nil {
		return err
	}
	if desc.Hooks.OnAdd != nil {
		desc.Hooks.OnAdd(w, e)
	}
	w.bumpVersion()
	return nil
}

// EnqueueAddComponent is the deferred counterpart of AddComponent.
func (w *World) EnqueueAddComponent(e Entity, id ComponentID) {
	op := deferredAddComponent{entity: e, generation: e.Generation(), component: id}
	if !w.Locked() {
		_ = op.Apply(w)
		return
	}
	w.pending.enqueue(op)
}

// RemoveComponent strips a component from e, moving it one edge to the
// left in the component graph.
func (w *World) RemoveComponent(e Entity, id ComponentID) error {
	rec, ok := w.recordFor(e)
	if !ok {
		return InvalidEntityError{E: e}
	}
	if rec.chunk.Locked() {
		return StructuralLockedError{}
	}
	desc := descriptorByID(id)
	if desc == nil {
		panic(bark.AddTrace(AssertionError{Msg: "remove-component referenced an unregistered component id"}))
	}
	from := w.archetypeOf(rec.chunk)
	if !from.sig.Contains(id, desc.Kind) {
		return MissingComponentError{ComponentName: desc.Name}
	}
	if desc.Hooks.OnRemove != nil {
		desc.Hooks.OnRemove(w, e)
	}
	to := w.findOrCreateLeft(from, desc.Kind, id)
	if err := w.moveEntity(e, rec, to); err != nil {
		return err
	}
	w.bumpVersion()
	return nil
}

// EnqueueRemoveComponent is the deferred counterpart of RemoveComponent.
func (w *World) EnqueueRemoveComponent(e Entity, id ComponentID) {
	op := deferredRemoveComponent{entity: e, generation: e.Generation(), component: id}
	if !w.Locked() {
		_ = op.Apply(w)
		return
	}
	w.pending.enqueue(op)
}

// AddPair attaches a relationship pair to e, moving it into the
// archetype that also carries p. Pairs are purely structural: they add
// no per-row storage, only archetype membership, so they have no
// component graph edges — the destination archetype is found directly
// by signature, the same way the root archetype's transitions are.
func (w *World) AddPair(e Entity, p Pair) error {
	rec, ok := w.recordFor(e)
	if !ok {
		return InvalidEntityError{E: e}
	}
	if rec.chunk.Locked() {
		return StructuralLockedError{}
	}
	from := w.archetypeOf(rec.chunk)
	if containsSortedPair(from.sig.Pairs, p) {
		return DuplicatePairError{Pair: p}
	}
	to := w.getOrCreateArchetype(from.sig.withAddedPair(p))
	if err := w.moveEntity(e, rec, to); err != nil {
		return err
	}
	w.bumpVersion()
	return nil
}

// RemovePair detaches a relationship pair from e.
func (w *World) RemovePair(e Entity, p Pair) error {
	rec, ok := w.recordFor(e)
	if !ok {
		return InvalidEntityError{E: e}
	}
	if rec.chunk.Locked() {
		return StructuralLockedError{}
	}
	from := w.archetypeOf(rec.chunk)
	if !containsSortedPair(from.sig.Pairs, p) {
		return MissingPairError{Pair: p}
	}
	to := w.getOrCreateArchetype(from.sig.withRemovedPair(p))
	if err := w.moveEntity(e, rec, to); err != nil {
		return err
	}
	w.bumpVersion()
	return nil
}

// HasPair reports whether e's archetype carries p.
func (w *World) HasPair(e Entity, p Pair) bool {
	rec, ok := w.recordFor(e)
	if !ok {
		return false
	}
	return containsSortedPair(w.archetypeOf(rec.chunk).sig.Pairs, p)
}

// moveEntity relocates e's row from its current chunk into a free
// chunk of the destination archetype, carrying over every shared
// generic component and preserving the enable/disable state.
func (w *World) moveEntity(e Entity, rec *entityRecord, to *Archetype) error {
	dstChunk := to.findOrCreateFreeChunk()
	dstRow, err := dstChunk.AddRow(e, true)
	if err != nil {
		return err
	}
	srcChunk, srcRow := rec.chunk, int(rec.row)
	wasDisabled := rec.disabled
	transferRow(dstChunk, dstRow, srcChunk, srcRow)
	srcChunk.RemoveRow(srcRow, w.entities)
	rec.chunk = dstChunk
	rec.row = int32(dstRow)
	if wasDisabled {
		dstChunk.EnableRow(dstRow, false, w.entities)
	}
	return nil
}

// EnableEntity toggles e into the disabled or enabled partition of its
// chunk.
func (w *World) EnableEntity(e Entity, enable bool) error {
	rec, ok := w.recordFor(e)
	if !ok {
		return InvalidEntityError{E: e}
	}
	if rec.chunk.Locked() {
		return StructuralLockedError{}
	}
	rec.chunk.EnableRow(int(rec.row), enable, w.entities)
	w.bumpVersion()
	return nil
}

// IsEnabled reports whether e currently sits in the enabled partition.
func (w *World) IsEnabled(e Entity) bool {
	rec, ok := w.recordFor(e)
	if !ok {
		return false
	}
	return !rec.disabled
}

// SetParent records that child's parent is parent, and that cb (if
// non-nil) should fire when parent is destroyed. An entity may have at
// most one parent.
func (w *World) SetParent(child, parent Entity, cb EntityDestroyCallback) error {
	if !w.IsValid(child) {
		return InvalidEntityError{E: child}
	}
	if !w.IsValid(parent) {
		return InvalidEntityError{E: parent}
	}
	if existing, ok := w.parentOf[child]; ok && existing != parent {
		return EntityRelationError{Child: child, Parent: existing}
	}
	w.parentOf[child] = parent
	w.parentGen[child] = parent.Generation()
	if cb != nil {
		w.onDestroyOf[parent] = cb
	}
	return nil
}

// Parent returns child's parent, if any and still valid.
func (w *World) Parent(child Entity) (Entity, bool) {
	parent, ok := w.parentOf[child]
	if !ok {
		return NullEntity, false
	}
	if !w.IsValid(parent) || parent.Generation() != w.parentGen[child] {
		delete(w.parentOf, child)
		delete(w.parentGen, child)
		return NullEntity, false
	}
	return parent, true
}

// findOrCreateRight navigates the add-component edge for (kind, id)
// from the archetype, creating both the destination archetype and the
// graph edge pair on first traversal. The root archetype never grows
// edges; every transition from it is a full archetype-map lookup.
func (w *World) findOrCreateRight(from *Archetype, kind componentKind, id ComponentID) *Archetype {
	if from.id == w.rootID {
		sig := from.sig.withAdded(id, kind)
		return w.getOrCreateArchetype(sig)
	}
	if to := from.graph.findEdgeRight(kind, id); to != noEdge {
		return w.archetypes[to]
	}
	sig := from.sig.withAdded(id, kind)
	to := w.getOrCreateArchetype(sig)
	buildGraphEdges(from, to, kind, id)
	return to
}

// findOrCreateLeft navigates the remove-component edge for (kind, id)
// from the archetype.
func (w *World) findOrCreateLeft(from *Archetype, kind componentKind, id ComponentID) *Archetype {
	if to := from.graph.findEdgeLeft(kind, id); to != noEdge {
		return w.archetypes[to]
	}
	sig := from.sig.withRemoved(id, kind)
	to := w.getOrCreateArchetype(sig)
	if to.id == w.rootID {
		// The root stores no edges; only from's remove-edge is recorded.
		from.graph.addEdgeLeft(kind, id, to.id)
		return to
	}
	buildGraphEdges(to, from, kind, id)
	return to
}

// getOrCreateArchetype looks an archetype up by signature hash,
// creating and indexing a new one on miss.
func (w *World) getOrCreateArchetype(sig Signature) *Archetype {
	hash := sig.Hash()
	if id, ok := w.archByHash.Get(hash); ok {
		return w.archetypes[id]
	}
	id := ArchetypeID(len(w.archetypes))
	a := newArchetypeFrom(id, sig)
	w.archetypes = append(w.archetypes, a)
	w.archByHash.Put(hash, id)
	for _, cid := range sig.Generic {
		w.indexComponent(cid, id)
	}
	for _, cid := range sig.Chunk {
		w.indexComponent(cid, id)
	}
	return a
}

func (w *World) indexComponent(id ComponentID, archID ArchetypeID) {
	key := uint64(id)
	list, _ := w.compToArch.Get(key)
	w.compToArch.Put(key, append(list, archID))
}

// ArchetypesWith returns every archetype id currently indexed under
// component id, in the order they were first created. Useful for
// introspection and tooling; query matching itself scans the
// archetype list directly rather than through this index.
func (w *World) ArchetypesWith(id ComponentID) []ArchetypeID {
	list, _ := w.compToArch.Get(uint64(id))
	return list
}

// Update advances background maintenance: chunks emptied by
// defragmentation or deletion are released once their grace countdown
// elapses, a bounded number of rows are compacted across archetypes,
// and any operations deferred while the world was locked are replayed.
func (w *World) Update() error {
	var stillPending []*Chunk
	for _, c := range w.pendingDeleteChunks {
		if c.Size() > 0 {
			c.deathCountdown = 0
			continue
		}
		c.deathCountdown--
		if c.deathCountdown <= 0 {
			c.archetype.removeChunk(c)
		} else {
			stillPending = append(stillPending, c)
		}
	}
	w.pendingDeleteChunks = stillPending

	if budget := Config.DefragBudgetRows; budget > 0 && len(w.archetypes) > 0 {
		idx := w.defragArchCursor
		for tries := 0; budget > 0 && tries < len(w.archetypes); tries++ {
			a := w.archetypes[idx]
			moved := a.defragment(budget, &w.pendingDeleteChunks, w.entities)
			budget -= moved
			idx = (idx + 1) % len(w.archetypes)
		}
		w.defragArchCursor = idx
	}

	w.bumpVersion()
	return w.pending.processAll(w)
}

// Query starts a new query builder bound to this world.
func (w *World) Query() *QueryBuilder {
	return &QueryBuilder{world: w}
}
