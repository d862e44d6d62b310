package silo

// The query layer compiles All/Any/Not/Changed terms into an immutable
// plan keyed by a stable hash, caches the plan per world, and matches
// it against archetypes lazily as the archetype graph grows.

import (
	"sort"

	"github.com/TheBitDrifter/mask"
	"github.com/cespare/xxhash/v2"
)

type termOp int

const (
	opAll termOp = iota
	opAny
	opNot
	opChanged
)

type term struct {
	op  termOp
	ids []ComponentID
}

// pairOp mirrors termOp for the relationship-pair side of a query: a
// pair term can never feed the Changed filter, since pairs carry no
// per-row column to watch.
type pairOp int

const (
	pairOpAll pairOp = iota
	pairOpAny
	pairOpNot
)

type pairTerm struct {
	op    pairOp
	pairs []Pair
}

// QueryBuilder accumulates terms before Compile produces a reusable
// Query. All/Any/Not take any number of component ids; Changed adds a
// single-component change filter evaluated per chunk at run time.
// AllPairs/AnyPairs/NotPairs do the same for relationship pairs, and
// may use WildcardID in either half of a Pair to match any id in that
// slot.
type QueryBuilder struct {
	world      *World
	terms      []term
	pairTerms  []pairTerm
	constraint Constraint
}

// All requires every one of ids to be present in the archetype.
func (b *QueryBuilder) All(ids ...ComponentID) *QueryBuilder {
	b.terms = append(b.terms, term{op: opAll, ids: ids})
	return b
}

// Any requires at least one of ids to be present in the archetype.
func (b *QueryBuilder) Any(ids ...ComponentID) *QueryBuilder {
	b.terms = append(b.terms, term{op: opAny, ids: ids})
	return b
}

// Not excludes archetypes carrying any of ids.
func (b *QueryBuilder) Not(ids ...ComponentID) *QueryBuilder {
	b.terms = append(b.terms, term{op: opNot, ids: ids})
	return b
}

// Changed adds a per-chunk filter: only chunks whose column for id has
// advanced past the query's last-seen version are visited.
func (b *QueryBuilder) Changed(id ComponentID) *QueryBuilder {
	b.terms = append(b.terms, term{op: opChanged, ids: []ComponentID{id}})
	return b
}

// With selects which row partition the compiled query visits. Default
// is EnabledOnly.
func (b *QueryBuilder) With(c Constraint) *QueryBuilder {
	b.constraint = c
	return b
}

// AllPairs requires every one of pairs to be present in the
// archetype's relationship set. A pair carrying WildcardID in either
// half matches any id in that slot.
func (b *QueryBuilder) AllPairs(pairs ...Pair) *QueryBuilder {
	b.pairTerms = append(b.pairTerms, pairTerm{op: pairOpAll, pairs: pairs})
	return b
}

// AnyPairs requires at least one of pairs to be present.
func (b *QueryBuilder) AnyPairs(pairs ...Pair) *QueryBuilder {
	b.pairTerms = append(b.pairTerms, pairTerm{op: pairOpAny, pairs: pairs})
	return b
}

// NotPairs excludes archetypes carrying any of pairs.
func (b *QueryBuilder) NotPairs(pairs ...Pair) *QueryBuilder {
	b.pairTerms = append(b.pairTerms, pairTerm{op: pairOpNot, pairs: pairs})
	return b
}

// Compile finalizes the builder into a Query, reusing a cached plan
// when an equivalent one (same terms, any order) was compiled before
// in this world.
func (b *QueryBuilder) Compile() (*Query, error) {
	if len(b.terms)+len(b.pairTerms) > Config.MaxQueryTerms {
		return nil, QueryTooManyTermsError{Count: len(b.terms) + len(b.pairTerms), Max: Config.MaxQueryTerms}
	}
	plan := buildPlan(b.terms, b.pairTerms, b.constraint)
	if cached, ok := b.world.queryCache.Get(plan.hash); ok {
		return &Query{world: b.world, plan: cached}, nil
	}
	b.world.queryCache.Put(plan.hash, plan)
	return &Query{world: b.world, plan: plan}, nil
}

// QueryPlan is the immutable, hash-identified compilation of a
// QueryBuilder's terms: admission masks plus the change-filter list. It
// also carries the matcher's incremental scan cursor and matched
// archetype list, so it is mutable in practice but only ever touched
// while the owning world holds its lock. The last-seen world version
// is kept per Query, not on the plan.
type QueryPlan struct {
	allMask    mask.Mask
	anyMask    mask.Mask
	hasAny     bool
	notMask    mask.Mask
	changedIDs []ComponentID
	constraint Constraint
	hash       uint64

	// allPairs/anyPairs/notPairs hold the plan's relationship-pair
	// terms. A Pair value's 64-bit space cannot be encoded as a bit
	// position in mask.Mask, so any query carrying at least one of
	// these is complex: it cannot use the bitmask fast path alone and
	// must also run admitsPairs, a linear scan over an archetype's
	// sig.Pairs.
	allPairs   []Pair
	anyPairs   []Pair
	hasAnyPair bool
	notPairs   []Pair
	complex    bool

	matched       []ArchetypeID
	lastArchCount int
}

func buildPlan(terms []term, pairTerms []pairTerm, constraint Constraint) *QueryPlan {
	var allIDs, anyIDs, notIDs, changedIDs []ComponentID
	for _, t := range terms {
		switch t.op {
		case opAll:
			allIDs = append(allIDs, t.ids...)
		case opAny:
			anyIDs = append(anyIDs, t.ids...)
		case opNot:
			notIDs = append(notIDs, t.ids...)
		case opChanged:
			allIDs = append(allIDs, t.ids...)
			changedIDs = append(changedIDs, t.ids...)
		}
	}
	allIDs = sortDedup(allIDs)
	anyIDs = sortDedup(anyIDs)
	notIDs = sortDedup(notIDs)
	changedIDs = sortDedup(changedIDs)

	var allPairs, anyPairs, notPairs []Pair
	for _, t := range pairTerms {
		switch t.op {
		case pairOpAll:
			allPairs = append(allPairs, t.pairs...)
		case pairOpAny:
			anyPairs = append(anyPairs, t.pairs...)
		case pairOpNot:
			notPairs = append(notPairs, t.pairs...)
		}
	}
	allPairs = sortDedupPairs(allPairs)
	anyPairs = sortDedupPairs(anyPairs)
	notPairs = sortDedupPairs(notPairs)

	p := &QueryPlan{constraint: constraint, changedIDs: changedIDs}
	for _, id := range allIDs {
		p.allMask.Mark(int(id))
	}
	for _, id := range anyIDs {
		p.anyMask.Mark(int(id))
		p.hasAny = true
	}
	for _, id := range notIDs {
		p.notMask.Mark(int(id))
	}
	p.allPairs = allPairs
	p.anyPairs = anyPairs
	p.hasAnyPair = len(anyPairs) > 0
	p.notPairs = notPairs
	p.complex = len(allPairs)+len(anyPairs)+len(notPairs) > 0
	p.hash = planHash(allIDs, anyIDs, notIDs, changedIDs, allPairs, anyPairs, notPairs, constraint)
	return p
}

func sortDedupPairs(pairs []Pair) []Pair {
	if len(pairs) == 0 {
		return nil
	}
	out := append([]Pair(nil), pairs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:1]
	for _, p := range out[1:] {
		if p != dedup[len(dedup)-1] {
			dedup = append(dedup, p)
		}
	}
	return dedup
}

func sortDedup(ids []ComponentID) []ComponentID {
	if len(ids) == 0 {
		return nil
	}
	out := append([]ComponentID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:1]
	for _, id := range out[1:] {
		if id != dedup[len(dedup)-1] {
			dedup = append(dedup, id)
		}
	}
	return dedup
}

func planHash(all, any, not, changed []ComponentID, allPairs, anyPairs, notPairs []Pair, constraint Constraint) uint64 {
	d := xxhash.New()
	var buf [4]byte
	write := func(seed byte, ids []ComponentID) {
		d.Write([]byte{seed})
		for _, id := range ids {
			buf[0], buf[1], buf[2], buf[3] = byte(id), byte(id>>8), byte(id>>16), byte(id>>24)
			d.Write(buf[:])
		}
	}
	write('a', all)
	write('y', any)
	write('n', not)
	write('c', changed)
	var pbuf [8]byte
	writePairs := func(seed byte, pairs []Pair) {
		d.Write([]byte{seed})
		for _, p := range pairs {
			v := uint64(p)
			for i := 0; i < 8; i++ {
				pbuf[i] = byte(v >> (8 * i))
			}
			d.Write(pbuf[:])
		}
	}
	writePairs('A', allPairs)
	writePairs('Y', anyPairs)
	writePairs('N', notPairs)
	d.Write([]byte{byte(constraint)})
	return d.Sum64()
}

// admits reports whether an archetype's signature mask satisfies the
// plan's All/Any/Not terms.
func (p *QueryPlan) admits(a *Archetype) bool {
	if !a.sigMask.ContainsAll(p.allMask) {
		return false
	}
	if p.hasAny && !a.sigMask.ContainsAny(p.anyMask) {
		return false
	}
	return a.sigMask.ContainsNone(p.notMask)
}

// admitsPairs reports whether an archetype's relationship-pair set
// satisfies the plan's AllPairs/AnyPairs/NotPairs terms. Unlike admits,
// this can never be reduced to a bitmask test: a Pair's relation and
// target halves, and the wildcard sentinel either may carry, only make
// sense compared id by id, so every pair term walks a.sig.Pairs
// directly.
func (p *QueryPlan) admitsPairs(a *Archetype) bool {
	for _, term := range p.allPairs {
		if !pairMatchesAny(a.sig.Pairs, term) {
			return false
		}
	}
	if p.hasAnyPair {
		matched := false
		for _, term := range p.anyPairs {
			if pairMatchesAny(a.sig.Pairs, term) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, term := range p.notPairs {
		if pairMatchesAny(a.sig.Pairs, term) {
			return false
		}
	}
	return true
}

// pairMatches reports whether candidate satisfies term, honoring
// WildcardID in either half of term.
func pairMatches(candidate, term Pair) bool {
	if !term.IsWildcardRelation() && candidate.Relation() != term.Relation() {
		return false
	}
	if !term.IsWildcardTarget() && candidate.Target() != term.Target() {
		return false
	}
	return true
}

// pairMatchesAny reports whether any pair in sigPairs satisfies term.
func pairMatchesAny(sigPairs []Pair, term Pair) bool {
	for _, candidate := range sigPairs {
		if pairMatches(candidate, term) {
			return true
		}
	}
	return false
}

// refreshMatches extends the cached archetype match list with any
// archetype created since the last call, so repeated runs of the same
// query never re-test archetypes already known to match or not match.
func (p *QueryPlan) refreshMatches(w *World) []ArchetypeID {
	for i := p.lastArchCount; i < len(w.archetypes); i++ {
		a := w.archetypes[i]
		if p.admits(a) && p.admitsPairs(a) {
			p.matched = append(p.matched, a.id)
		}
	}
	p.lastArchCount = len(w.archetypes)
	return p.matched
}

func (p *QueryPlan) passesChanged(c *Chunk, since uint64) bool {
	for _, id := range p.changedIDs {
		if !c.Changed(id, since) {
			return false
		}
	}
	return true
}

// Query is a compiled, cached query ready to be run repeatedly.
type Query struct {
	world           *World
	plan            *QueryPlan
	lastSeenVersion uint64
}
