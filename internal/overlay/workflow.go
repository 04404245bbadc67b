package overlay

import (
	"context"

	"github.com/blarApp/blargraph/internal/batchproc"
	"github.com/blarApp/blargraph/internal/graphmodel"
)

// DefaultWorkflowDepth bounds how many CALLS hops a workflow discovery
// traversal follows from its entry point (spec §4.7.2: "up to a depth
// bound").
const DefaultWorkflowDepth = 10

// NewWorkflowTask builds the Workflow-discovery task (spec §4.7.2): for
// every Function node with no incoming CALLS edge (an entry point), it
// traverses outgoing CALLS edges up to maxDepth, emits one Workflow node,
// one WORKFLOW_STEP edge per discovered call (ordered by step_order and
// tagged with depth), and one BELONGS_TO_WORKFLOW edge from every
// participant including the entry point itself. Non-entry-point nodes
// complete with no output, since only an entry point seeds a workflow.
//
// If maxDepth is non-positive, DefaultWorkflowDepth is used.
func NewWorkflowTask(graph *graphmodel.Graph, env graphmodel.Environment, maxDepth int) batchproc.Task {
	if maxDepth <= 0 {
		maxDepth = DefaultWorkflowDepth
	}
	return func(ctx context.Context, node *graphmodel.Node, children map[string]any) (any, error) {
		if node.Kind != graphmodel.KindFunction {
			return nil, nil
		}
		if !isEntryPoint(graph, node) {
			return nil, nil
		}
		wf := discoverWorkflow(graph, env, node, maxDepth)
		return wf.ID, nil
	}
}

// isEntryPoint reports whether node has no incoming CALLS edge, i.e.
// nothing in the graph calls it.
func isEntryPoint(graph *graphmodel.Graph, node *graphmodel.Node) bool {
	for _, e := range graph.IncomingEdges(node.ID) {
		if e.Kind == graphmodel.EdgeCalls {
			return false
		}
	}
	return true
}

type queuedNode struct {
	node  *graphmodel.Node
	depth int
}

// discoverWorkflow performs a breadth-first traversal of outgoing CALLS
// edges from entry, visiting each node at most once (tolerating cycles)
// and bounded by maxDepth, wiring the Workflow node and its overlay edges
// as it goes.
func discoverWorkflow(graph *graphmodel.Graph, env graphmodel.Environment, entry *graphmodel.Node, maxDepth int) *graphmodel.Node {
	identifier := entry.Identifier + "::workflow"
	wf := graphmodel.NewNode(env, graphmodel.KindWorkflow, entry.Path, identifier, entry.StartLine, entry.EndLine)
	wf.Name = "workflow:" + entry.Name
	wf.Layer = graphmodel.LayerWorkflows
	graph.AddNode(wf)

	callsFrom := callsIndex(graph)

	visited := map[string]bool{entry.ID: true}
	graph.AddEdge(&graphmodel.Edge{FromID: entry.ID, ToID: wf.ID, Kind: graphmodel.EdgeBelongsToWorkflow})

	queue := []queuedNode{{entry, 0}}
	stepOrder := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range callsFrom[cur.node.ID] {
			callee, ok := graph.Node(e.ToID)
			if !ok || visited[callee.ID] {
				continue
			}
			visited[callee.ID] = true
			stepOrder++
			graph.AddEdge(&graphmodel.Edge{
				FromID:    wf.ID,
				ToID:      callee.ID,
				Kind:      graphmodel.EdgeWorkflowStep,
				StepOrder: stepOrder,
				Depth:     cur.depth + 1,
				ScopeText: wf.ID,
			})
			graph.AddEdge(&graphmodel.Edge{FromID: callee.ID, ToID: wf.ID, Kind: graphmodel.EdgeBelongsToWorkflow})
			queue = append(queue, queuedNode{callee, cur.depth + 1})
		}
	}
	return wf
}

// callsIndex groups every CALLS edge in graph by its source node id, built
// once per discoverWorkflow call so the traversal doesn't rescan the full
// edge set per visited node.
func callsIndex(graph *graphmodel.Graph) map[string][]*graphmodel.Edge {
	idx := make(map[string][]*graphmodel.Edge)
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeCalls {
			idx[e.FromID] = append(idx[e.FromID], e)
		}
	}
	return idx
}
