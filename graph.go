package silo

import "github.com/TheBitDrifter/bark"

// noEdge is returned by findEdgeRight/findEdgeLeft when no edge exists.
const noEdge = ArchetypeID(^uint32(0))

// archetypeGraph holds an archetype's per-component-kind add/remove
// edges into neighbor archetypes (§4.6). The root archetype is built
// with edges intentionally left empty — every mutation starting from
// the root performs a full archetype-map lookup instead, so the
// hottest archetype in the world never grows edge maps linearly with
// the number of registered components.
type archetypeGraph struct {
	addEdges    [2]map[ComponentID]ArchetypeID
	removeEdges [2]map[ComponentID]ArchetypeID
}

func newArchetypeGraph() archetypeGraph {
	return archetypeGraph{
		addEdges:    [2]map[ComponentID]ArchetypeID{{}, {}},
		removeEdges: [2]map[ComponentID]ArchetypeID{{}, {}},
	}
}

func (g *archetypeGraph) addEdgeRight(kind componentKind, id ComponentID, to ArchetypeID) {
	if _, exists := g.addEdges[kind][id]; exists {
		panic(bark.AddTrace(AssertionError{Msg: "add-edge already recorded for this component"}))
	}
	g.addEdges[kind][id] = to
}

func (g *archetypeGraph) addEdgeLeft(kind componentKind, id ComponentID, to ArchetypeID) {
	if _, exists := g.removeEdges[kind][id]; exists {
		panic(bark.AddTrace(AssertionError{Msg: "remove-edge already recorded for this component"}))
	}
	g.removeEdges[kind][id] = to
}

func (g *archetypeGraph) findEdgeRight(kind componentKind, id ComponentID) ArchetypeID {
	if to, ok := g.addEdges[kind][id]; ok {
		return to
	}
	return noEdge
}

func (g *archetypeGraph) findEdgeLeft(kind componentKind, id ComponentID) ArchetypeID {
	if to, ok := g.removeEdges[kind][id]; ok {
		return to
	}
	return noEdge
}
