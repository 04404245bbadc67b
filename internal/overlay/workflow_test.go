package overlay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func addCall(graph *graphmodel.Graph, from, to *graphmodel.Node) {
	graph.AddEdge(&graphmodel.Edge{FromID: from.ID, ToID: to.ID, Kind: graphmodel.EdgeCalls})
}

func TestWorkflowTaskSkipsNonEntryFunctions(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	f := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2)
	g := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::g:4", 4, 5)
	graph.AddNode(f)
	graph.AddNode(g)
	addCall(graph, f, g)

	task := NewWorkflowTask(graph, env, 0)
	out, err := task(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Nil(t, out, "g has an incoming CALLS edge and is not an entry point")
}

func TestWorkflowTaskDiscoversChainFromEntryPoint(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	f := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2)
	g := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::g:4", 4, 5)
	h := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::h:7", 7, 8)
	graph.AddNode(f)
	graph.AddNode(g)
	graph.AddNode(h)
	addCall(graph, f, g)
	addCall(graph, g, h)

	task := NewWorkflowTask(graph, env, 0)
	out, err := task(context.Background(), f, nil)
	require.NoError(t, err)
	wfID, ok := out.(string)
	require.True(t, ok)

	wf, ok := graph.Node(wfID)
	require.True(t, ok)
	assert.Equal(t, graphmodel.KindWorkflow, wf.Kind)

	belongsTo := map[string]bool{}
	steps := map[string]*graphmodel.Edge{}
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeBelongsToWorkflow && e.ToID == wfID {
			belongsTo[e.FromID] = true
		}
		if e.Kind == graphmodel.EdgeWorkflowStep && e.FromID == wfID {
			steps[e.ToID] = e
		}
	}
	assert.True(t, belongsTo[f.ID])
	assert.True(t, belongsTo[g.ID])
	assert.True(t, belongsTo[h.ID])

	require.Contains(t, steps, g.ID)
	require.Contains(t, steps, h.ID)
	assert.Less(t, steps[g.ID].StepOrder, steps[h.ID].StepOrder)
	assert.Equal(t, 1, steps[g.ID].Depth)
	assert.Equal(t, 2, steps[h.ID].Depth)
}

func TestWorkflowTaskToleratesCycles(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	f := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2)
	g := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::g:4", 4, 5)
	graph.AddNode(f)
	graph.AddNode(g)
	addCall(graph, f, g)
	addCall(graph, g, f) // cycle back to the entry point

	task := NewWorkflowTask(graph, env, 0)
	out, err := task(context.Background(), f, nil)
	require.NoError(t, err)
	wfID := out.(string)

	stepCount := 0
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeWorkflowStep && e.FromID == wfID {
			stepCount++
		}
	}
	assert.Equal(t, 1, stepCount, "f must be visited at most once even though g calls back into it")
}

func TestWorkflowTaskRespectsDepthBound(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	f := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::f:1", 1, 2)
	g := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::g:4", 4, 5)
	h := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", "/repo/a.py::h:7", 7, 8)
	graph.AddNode(f)
	graph.AddNode(g)
	graph.AddNode(h)
	addCall(graph, f, g)
	addCall(graph, g, h)

	task := NewWorkflowTask(graph, env, 1)
	out, err := task(context.Background(), f, nil)
	require.NoError(t, err)
	wfID := out.(string)

	var reached []string
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeWorkflowStep && e.FromID == wfID {
			reached = append(reached, e.ToID)
		}
	}
	assert.ElementsMatch(t, []string{g.ID}, reached, "depth bound of 1 should reach g but not h")
}
