package batchproc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func testEnv() graphmodel.Environment {
	return graphmodel.Environment{EntityID: "e1", RepoID: "r1", RootPath: "/repo", EnvironmentTag: "main"}
}

func newFn(env graphmodel.Environment, name string, line int) *graphmodel.Node {
	identifier := fmt.Sprintf("/repo/a.py::%s:%d", name, line)
	n := graphmodel.NewNode(env, graphmodel.KindFunction, "/repo/a.py", identifier, line, line+1)
	n.Name = name
	return n
}

func TestRunProcessesDependenciesBeforeDependents(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	leaf := newFn(env, "leaf", 1)
	root := newFn(env, "root", 3)
	graph.AddNode(leaf)
	graph.AddNode(root)
	graph.AddEdge(&graphmodel.Edge{FromID: root.ID, ToID: leaf.ID, Kind: graphmodel.EdgeCalls})

	var order []string
	task := Task(func(ctx context.Context, n *graphmodel.Node, children map[string]any) (any, error) {
		order = append(order, n.ID)
		return n.Name, nil
	})

	p := New(2)
	outputs, result := p.Run(context.Background(), graph, []*graphmodel.Node{leaf, root}, task)

	require.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, "leaf", outputs[leaf.ID])
	assert.Equal(t, "root", outputs[root.ID])
	assert.Equal(t, graphmodel.StatusUnset, leaf.ProcessingStatus)
	assert.Equal(t, graphmodel.StatusUnset, root.ProcessingStatus)

	leafIdx, rootIdx := -1, -1
	for i, id := range order {
		if id == leaf.ID {
			leafIdx = i
		}
		if id == root.ID {
			rootIdx = i
		}
	}
	require.NotEqual(t, -1, leafIdx)
	require.NotEqual(t, -1, rootIdx)
	assert.Less(t, leafIdx, rootIdx, "leaf has no dependencies and must complete before root, which depends on it")
}

func TestRunBreaksCyclesAndCompletesAllMembers(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	f := newFn(env, "f", 1)
	g := newFn(env, "g", 3)
	graph.AddNode(f)
	graph.AddNode(g)
	graph.AddEdge(&graphmodel.Edge{FromID: f.ID, ToID: g.ID, Kind: graphmodel.EdgeCalls})
	graph.AddEdge(&graphmodel.Edge{FromID: g.ID, ToID: f.ID, Kind: graphmodel.EdgeCalls})

	task := Task(func(ctx context.Context, n *graphmodel.Node, children map[string]any) (any, error) {
		return n.Name, nil
	})

	p := New(2)
	_, result := p.Run(context.Background(), graph, []*graphmodel.Node{f, g}, task)

	require.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Completed)
	assert.ElementsMatch(t, []string{f.ID, g.ID}, result.CycleMembers)
}

func TestRunDetectsDirectRecursionAsACycle(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	factorial := newFn(env, "factorial", 1)
	graph.AddNode(factorial)
	graph.AddEdge(&graphmodel.Edge{FromID: factorial.ID, ToID: factorial.ID, Kind: graphmodel.EdgeCalls})

	task := Task(func(ctx context.Context, n *graphmodel.Node, children map[string]any) (any, error) {
		return n.Name, nil
	})

	p := New(1)
	_, result := p.Run(context.Background(), graph, []*graphmodel.Node{factorial}, task)

	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, []string{factorial.ID}, result.CycleMembers)
	assert.False(t, factorial.ErrorFlag, "a directly recursive node must be recognized as a cycle, not marked errored")
}

func TestRunLeavesFailedNodesPendingAndRecordsError(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	n := newFn(env, "bad", 1)
	graph.AddNode(n)

	task := Task(func(ctx context.Context, n *graphmodel.Node, children map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	p := New(1)
	_, result := p.Run(context.Background(), graph, []*graphmodel.Node{n}, task)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Completed)
	assert.True(t, n.ErrorFlag)
}

type recordingSink struct {
	calls []string
}

func (s *recordingSink) MarkProcessingStatus(ctx context.Context, entityID, repoID, nodeID, status string) error {
	s.calls = append(s.calls, nodeID+":"+status)
	return nil
}

func TestNewWithSinkPersistsEveryTransition(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	n := newFn(env, "f", 1)
	graph.AddNode(n)

	task := Task(func(ctx context.Context, n *graphmodel.Node, children map[string]any) (any, error) {
		return "ok", nil
	})

	sink := &recordingSink{}
	p := NewWithSink(1, sink, "e1", "r1")
	_, result := p.Run(context.Background(), graph, []*graphmodel.Node{n}, task)

	require.Empty(t, result.Errors)
	assert.Contains(t, sink.calls, n.ID+":in_progress")
	assert.Contains(t, sink.calls, n.ID+":completed")
}
