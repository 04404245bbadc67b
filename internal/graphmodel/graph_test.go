package graphmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env() Environment {
	return Environment{EntityID: "e1", RepoID: "r1", RootPath: "/repo", EnvironmentTag: "main"}
}

func TestRemoveNodeDetachesIncidentEdges(t *testing.T) {
	g := NewGraph()
	a := NewNode(env(), KindFunction, "/repo/a.py", "/repo/a.py::a:1", 1, 2)
	b := NewNode(env(), KindFunction, "/repo/a.py", "/repo/a.py::b:4", 4, 5)
	g.AddNode(a)
	g.AddNode(b)
	g.AddEdge(&Edge{FromID: a.ID, ToID: b.ID, Kind: EdgeCalls})

	g.RemoveNode(a.ID)

	_, ok := g.Node(a.ID)
	assert.False(t, ok)
	assert.Empty(t, g.Edges(), "edges incident to a removed node must be detached")
	assert.Empty(t, g.DefinitionsInFile("/repo/a.py"), "removed node must drop out of the def index")
}

func TestInnermostEnclosingPicksSmallestContainingSpan(t *testing.T) {
	g := NewGraph()
	outer := NewNode(env(), KindClass, "/repo/a.py", "/repo/a.py::Outer:1", 1, 20)
	outer.Name = "Outer"
	inner := NewNode(env(), KindFunction, "/repo/a.py", "/repo/a.py::inner:5", 5, 10)
	inner.Name = "inner"
	g.AddNode(outer)
	g.AddNode(inner)

	n, ok := g.InnermostEnclosing("/repo/a.py", 7)
	require.True(t, ok)
	assert.Equal(t, "inner", n.Name)

	n, ok = g.InnermostEnclosing("/repo/a.py", 15)
	require.True(t, ok)
	assert.Equal(t, "Outer", n.Name)

	_, ok = g.InnermostEnclosing("/repo/a.py", 100)
	assert.False(t, ok)
}

func TestAddEdgeDeduplicatesByFromToKind(t *testing.T) {
	g := NewGraph()
	g.AddEdge(&Edge{FromID: "a", ToID: "b", Kind: EdgeCalls, ScopeText: "first"})
	g.AddEdge(&Edge{FromID: "a", ToID: "b", Kind: EdgeCalls, ScopeText: "second"})

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "second", edges[0].ScopeText, "re-adding the same (from,to,kind) edge must overwrite, not duplicate")
}

func TestNodesByKindFiltersCorrectly(t *testing.T) {
	g := NewGraph()
	g.AddNode(NewNode(env(), KindFile, "/repo/a.py", "/repo/a.py", 1, 10))
	g.AddNode(NewNode(env(), KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2))
	g.AddNode(NewNode(env(), KindFunction, "/repo/a.py", "/repo/a.py::g:4", 4, 5))

	assert.Len(t, g.NodesByKind(KindFile), 1)
	assert.Len(t, g.NodesByKind(KindFunction), 2)
	assert.Empty(t, g.NodesByKind(KindClass))
}
