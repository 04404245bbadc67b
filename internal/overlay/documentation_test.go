package overlay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func testEnv() graphmodel.Environment {
	return graphmodel.Environment{EntityID: "e1", RepoID: "r1", RootPath: "/repo", EnvironmentTag: "main"}
}

func TestDocumentationTaskSkipsWithoutProvider(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	fn := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2)
	fn.Name = "f"
	graph.AddNode(fn)

	task := NewDocumentationTask(graph, env, nil)
	out, err := task(context.Background(), fn, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, graph.Edges())
}

func TestDocumentationTaskSkipsNonDefinitionNodes(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	fileNode := graphmodel.NewNode(env, graphmodel.KindFile, "/repo/a.py", "/repo/a.py", 1, 10)

	task := NewDocumentationTask(graph, env, nil)
	out, err := task(context.Background(), fileNode, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestUpsertDocumentationIsIdempotent(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	fn := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2)
	fn.Name = "f"
	graph.AddNode(fn)

	doc1 := upsertDocumentation(graph, env, fn, "first description")
	doc2 := upsertDocumentation(graph, env, fn, "second description")

	assert.Equal(t, doc1.ID, doc2.ID, "re-describing the same source node must reuse its documentation node id")
	assert.Equal(t, "second description", doc2.Text)

	describesCount := 0
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeDescribes && e.ToID == fn.ID {
			describesCount++
		}
	}
	assert.Equal(t, 1, describesCount, "at most one incoming DESCRIBES edge per source node")
}

func TestPruneOrphanDocumentationRemovesUnlinkedNodes(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	fn := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2)
	fn.Name = "f"
	graph.AddNode(fn)
	doc := upsertDocumentation(graph, env, fn, "describes f")

	// Simulate the code node being rebuilt away: RemoveNode drops the
	// DESCRIBES edge but leaves the Documentation node behind as an orphan.
	graph.RemoveNode(fn.ID)
	_, stillPresent := graph.Node(doc.ID)
	require.True(t, stillPresent)

	pruned := PruneOrphanDocumentation(graph)
	assert.Equal(t, 1, pruned)
	_, ok := graph.Node(doc.ID)
	assert.False(t, ok)
}
