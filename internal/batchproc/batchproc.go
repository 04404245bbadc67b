// Package batchproc implements the Bottom-Up Batch Processor (spec §4.7):
// it drives a per-node Task (documentation summarization, workflow
// discovery, ...) over a scope of the graph so that every node runs only
// after its dependency edges' targets have completed, detecting and
// breaking dependency cycles when the fetch runs dry with pending nodes
// remaining.
//
// The worker-pool shape — one buffered outcome channel sized to the worker
// count, a closer goroutine that waits on the workers then closes it, and a
// fan-in range loop that drains it until closed — follows the teacher's internal/ingestion/processor.go `parseFilesParallel`
// pattern, generalized from "parse a file" to "run an arbitrary Task
// against a node".
package batchproc

import (
	"context"
	"sync"

	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/logging"
)

// dependencyKinds is the edge-kind set a node's "outgoing dependencies"
// traverse, per spec §4.7: "typically CONTAINS, FUNCTION_DEFINITION,
// CLASS_DEFINITION, CALLS".
var dependencyKinds = map[graphmodel.EdgeKind]bool{
	graphmodel.EdgeContains:           true,
	graphmodel.EdgeFunctionDefinition: true,
	graphmodel.EdgeClassDefinition:    true,
	graphmodel.EdgeCalls:              true,
}

// Task is the injected per-node computation (spec §4.7.2: documentation
// summary, workflow discovery, embedding, ...). children holds the
// already-computed results for the node's dependency targets, keyed by
// their node id.
type Task func(ctx context.Context, node *graphmodel.Node, children map[string]any) (any, error)

// StatusSink persists per-node processing-status transitions to the graph
// store's mark_processing_status query (spec §6.1, §1 point 4: "per-node
// processing-status bookkeeping persisted in the graph store"). A Processor
// with no Sink keeps bookkeeping entirely in the in-memory Graph, as before
// this existed; one with a Sink additionally writes every transition to the
// store. Run never reads status back from the store: it starts every node
// in scope at pending.
type StatusSink interface {
	MarkProcessingStatus(ctx context.Context, entityID, repoID, nodeID, status string) error
}

// Processor drives one Task to completion over a scope of a Graph.
type Processor struct {
	workers          int
	sink             StatusSink
	entityID, repoID string
}

// New constructs a Processor with a worker pool of the given size and no
// store-backed status persistence.
func New(workers int) *Processor {
	if workers <= 0 {
		workers = 4
	}
	return &Processor{workers: workers}
}

// NewWithSink constructs a Processor that additionally persists every
// processing-status transition through sink, scoped to (entityID, repoID).
func NewWithSink(workers int, sink StatusSink, entityID, repoID string) *Processor {
	p := New(workers)
	p.sink = sink
	p.entityID = entityID
	p.repoID = repoID
	return p
}

// persistStatus is a no-op when the Processor has no Sink. Failures are
// logged and otherwise ignored: the in-memory Graph's ProcessingStatus
// field remains the authority for the current run regardless, so a sink
// write failure degrades resumability, not correctness of this run.
func (p *Processor) persistStatus(ctx context.Context, nodeID string, status graphmodel.ProcessingStatus) {
	if p.sink == nil {
		return
	}
	if err := p.sink.MarkProcessingStatus(ctx, p.entityID, p.repoID, nodeID, string(status)); err != nil {
		logging.Warn("batchproc: failed to persist processing status", "id", nodeID, "status", status, "error", err)
	}
}

// Result reports what one Run processed.
type Result struct {
	Completed   int
	CycleMembers []string
	Errors      []error
}

// Run executes the main loop in spec §4.7 against every node in scope
// (already graph.Nodes() filtered by the caller to the target layer/repo).
// Outputs, keyed by node id, hold whatever task returned for completed
// nodes; a node whose task call errors is recorded in Result.Errors and
// left pending (it is retried only if the caller re-invokes Run).
func (p *Processor) Run(ctx context.Context, graph *graphmodel.Graph, scope []*graphmodel.Node, task Task) (map[string]any, *Result) {
	result := &Result{}
	outputs := make(map[string]any)
	var outputsMu sync.Mutex

	inScope := make(map[string]*graphmodel.Node, len(scope))
	for _, n := range scope {
		n.ProcessingStatus = graphmodel.StatusPending
		inScope[n.ID] = n
	}

	deps := dependencyEdges(graph, inScope)
	failed := make(map[string]bool)

	for {
		batch := processableBatch(inScope, deps, failed, p.workers*4)
		if len(batch) == 0 {
			if !anyPending(inScope) {
				break
			}
			cycle := detectCycle(inScope, deps, failed)
			if len(cycle) == 0 {
				// No processable nodes and no cycle: a dependency points
				// outside scope and never completes. Mark the remaining
				// pending nodes errored rather than looping forever.
				for id, n := range inScope {
					if n.ProcessingStatus == graphmodel.StatusPending {
						n.ErrorFlag = true
						logging.Warn("batchproc: node stuck pending with no cycle found", "id", id)
					}
				}
				break
			}
			for _, id := range cycle {
				inScope[id].CycleMember = true
			}
			result.CycleMembers = append(result.CycleMembers, cycle...)
			continue
		}

		p.runBatch(ctx, batch, deps, inScope, failed, task, &outputsMu, outputs, result)
	}

	for _, n := range inScope {
		n.ProcessingStatus = graphmodel.StatusUnset
		n.CycleMember = false
	}
	return outputs, result
}

func (p *Processor) runBatch(ctx context.Context, batch []*graphmodel.Node, deps map[string][]string, inScope map[string]*graphmodel.Node, failed map[string]bool, task Task, outputsMu *sync.Mutex, outputs map[string]any, result *Result) {
	jobs := make(chan *graphmodel.Node, len(batch))
	for _, n := range batch {
		n.ProcessingStatus = graphmodel.StatusInProgress
		p.persistStatus(ctx, n.ID, graphmodel.StatusInProgress)
		jobs <- n
	}
	close(jobs)

	type outcome struct {
		id     string
		value  any
		err    error
	}
	outcomes := make(chan outcome, p.workers)
	var wg sync.WaitGroup

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				children := make(map[string]any, len(deps[n.ID]))
				outputsMu.Lock()
				for _, depID := range deps[n.ID] {
					if v, ok := outputs[depID]; ok {
						children[depID] = v
					}
				}
				outputsMu.Unlock()

				value, err := task(ctx, n, children)
				outcomes <- outcome{id: n.ID, value: value, err: err}

				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		n := inScope[o.id]
		if o.err != nil {
			n.ProcessingStatus = graphmodel.StatusPending
			n.ErrorFlag = true
			failed[o.id] = true
			p.persistStatus(ctx, o.id, graphmodel.StatusPending)
			result.Errors = append(result.Errors, o.err)
			continue
		}
		outputsMu.Lock()
		outputs[o.id] = o.value
		outputsMu.Unlock()
		n.ProcessingStatus = graphmodel.StatusCompleted
		p.persistStatus(ctx, o.id, graphmodel.StatusCompleted)
		result.Completed++
	}
}

// dependencyEdges builds, for every in-scope node, the list of in-scope
// node ids its dependency-kind edges point to.
func dependencyEdges(graph *graphmodel.Graph, inScope map[string]*graphmodel.Node) map[string][]string {
	deps := make(map[string][]string, len(inScope))
	for _, e := range graph.Edges() {
		if !dependencyKinds[e.Kind] {
			continue
		}
		if _, ok := inScope[e.FromID]; !ok {
			continue
		}
		if _, ok := inScope[e.ToID]; !ok {
			continue
		}
		deps[e.FromID] = append(deps[e.FromID], e.ToID)
	}
	return deps
}

// processableBatch returns up to limit pending nodes whose every dependency
// target is completed or a cycle member (spec §4.7 step 1). Nodes whose task
// already failed in this Run are not picked again.
func processableBatch(inScope map[string]*graphmodel.Node, deps map[string][]string, failed map[string]bool, limit int) []*graphmodel.Node {
	var batch []*graphmodel.Node
	for _, n := range inScope {
		if n.ProcessingStatus != graphmodel.StatusPending || failed[n.ID] {
			continue
		}
		ready := true
		for _, depID := range deps[n.ID] {
			dep := inScope[depID]
			if dep.ProcessingStatus != graphmodel.StatusCompleted && !dep.CycleMember {
				ready = false
				break
			}
		}
		if ready {
			batch = append(batch, n)
			if len(batch) >= limit {
				break
			}
		}
	}
	return batch
}

func anyPending(inScope map[string]*graphmodel.Node) bool {
	for _, n := range inScope {
		if n.ProcessingStatus == graphmodel.StatusPending || n.ProcessingStatus == graphmodel.StatusInProgress {
			return true
		}
	}
	return false
}

// detectCycle finds one strongly connected component among the pending
// nodes via Tarjan's algorithm, restricted to dependency edges between
// still-pending nodes. No corpus example implements SCC/cycle detection
// (internal/git/topological.go, the only topological-order code in the
// retrieval pack, wraps `git rev-list --topo-order` and never detects
// cycles itself) so this is implemented directly from the spec's
// description rather than adapted from an example.
func detectCycle(inScope map[string]*graphmodel.Node, deps map[string][]string, failed map[string]bool) []string {
	var (
		index   int
		stack   []string
		onStack = make(map[string]bool)
		indices = make(map[string]int)
		lowlink = make(map[string]int)
	)

	var sccs [][]string
	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if inScope[w].ProcessingStatus != graphmodel.StatusPending || failed[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 || hasSelfEdge(deps, scc[0]) {
				sccs = append(sccs, scc)
			}
		}
	}

	for id, n := range inScope {
		if n.ProcessingStatus != graphmodel.StatusPending || failed[id] {
			continue
		}
		if _, visited := indices[id]; !visited {
			strongConnect(id)
		}
	}

	if len(sccs) == 0 {
		return nil
	}
	return sccs[0]
}

// hasSelfEdge reports whether v depends on itself. A size-1 SCC containing a
// self-loop is still a cycle (spec §8 property 5: direct recursion, e.g.
// factorial calling factorial) even though Tarjan's algorithm alone only
// yields multi-node SCCs for mutual recursion.
func hasSelfEdge(deps map[string][]string, v string) bool {
	for _, w := range deps[v] {
		if w == v {
			return true
		}
	}
	return false
}
