// Package overlay implements the two per-task contracts the Bottom-Up Batch
// Processor drives (spec §4.7.2): documentation summarization and workflow
// discovery. Both are constructed as batchproc.Task closures bound to the
// live Graph and ingest Environment, since a Task's signature only carries
// the node being processed and its already-completed dependency outputs,
// not the arena itself.
package overlay

import (
	"context"
	"fmt"
	"strings"

	"github.com/blarApp/blargraph/internal/batchproc"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/llmclient"
	"github.com/blarApp/blargraph/internal/logging"
)

const documentationSystemPrompt = `You write a short, precise description of a single source code definition for a code graph used by other tools (search, agentic exploration, change impact analysis). Describe what the definition does and, if relevant, how it uses its children. Two to four sentences, no preamble, no markdown.`

// NewDocumentationTask builds the Documentation task (spec §4.7.2): for a
// node whose dependencies are already completed, it prompts the LLM with
// the node's source text and its children's descriptions, stores the
// result as a Documentation node, and wires a DESCRIBES edge to the code
// node. The returned Task is idempotent: the Documentation node's id is a
// deterministic function of the source node's identifier (graphmodel.NewNode
// hashing), so a second run overwrites the same node rather than creating a
// duplicate, preserving the at-most-one-DESCRIBES invariant (spec §3.3.4).
func NewDocumentationTask(graph *graphmodel.Graph, env graphmodel.Environment, llm *llmclient.Client) batchproc.Task {
	return func(ctx context.Context, node *graphmodel.Node, children map[string]any) (any, error) {
		if node.Kind != graphmodel.KindClass && node.Kind != graphmodel.KindFunction {
			// Folder/File nodes complete without a documentation artifact;
			// only definitions are described.
			return nil, nil
		}
		if llm == nil || !llm.Enabled() {
			// spec §7 LlmError policy: leave the node without the derived
			// artifact rather than fail the run. No provider configured is
			// the permanent case of that same policy.
			return nil, nil
		}

		prompt := buildDocPrompt(node, children)
		description, err := llm.Generate(ctx, documentationSystemPrompt, prompt, nil)
		if err != nil {
			// §7: LlmError is per-node; the node still completes, flagged.
			node.ErrorFlag = true
			logging.Warn("overlay: documentation generation failed", "node", node.ID, "error", err)
			return nil, nil
		}

		upsertDocumentation(graph, env, node, description)
		return description, nil
	}
}

func buildDocPrompt(node *graphmodel.Node, children map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kind: %s\nName: %s\nPath: %s\n\nSource:\n%s\n", node.Kind, node.Name, node.Path, node.Text)
	if len(children) == 0 {
		return b.String()
	}
	b.WriteString("\nChild descriptions:\n")
	for id, desc := range children {
		s, ok := desc.(string)
		if !ok || s == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", id, s)
	}
	return b.String()
}

// upsertDocumentation creates or overwrites the Documentation node that
// describes source, replacing its previous text in place.
func upsertDocumentation(graph *graphmodel.Graph, env graphmodel.Environment, source *graphmodel.Node, description string) *graphmodel.Node {
	identifier := source.Identifier + "::documentation"
	doc := graphmodel.NewNode(env, graphmodel.KindDocumentation, source.Path, identifier, source.StartLine, source.EndLine)
	doc.Name = "doc:" + source.Name
	doc.Layer = graphmodel.LayerDocumentation
	doc.Text = description
	graph.AddNode(doc)
	graph.AddEdge(&graphmodel.Edge{FromID: doc.ID, ToID: source.ID, Kind: graphmodel.EdgeDescribes})
	return doc
}

// PruneOrphanDocumentation removes every Documentation node in graph with no
// outgoing DESCRIBES edge, satisfying spec §3.3.4's "orphan documentation
// ... must be garbage-collected" and the incremental-update testable
// property §8.9. A Documentation node becomes orphaned when its describing
// code node is deleted (graph.RemoveNode already drops the DESCRIBES edge
// alongside the code node, leaving the Documentation node with none).
func PruneOrphanDocumentation(graph *graphmodel.Graph) int {
	describing := make(map[string]bool)
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeDescribes {
			describing[e.FromID] = true
		}
	}
	pruned := 0
	for _, n := range graph.NodesByKind(graphmodel.KindDocumentation) {
		if !describing[n.ID] {
			graph.RemoveNode(n.ID)
			pruned++
		}
	}
	return pruned
}
