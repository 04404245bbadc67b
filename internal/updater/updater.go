// Package updater implements the Updater (spec §4.6): given a set of
// updated file paths with no diff text, it detach-deletes each path's
// existing nodes, rebuilds them, re-resolves references for the rebuilt
// files plus their direct callers, and invalidates overlay edges on
// whatever it touched.
//
// The cascading-dependent-rebuild shape — process a wave of paths, collect
// what that wave's change affects, feed the affected set back in as the
// next wave, bail out past a depth guard — is grounded on
// acc42ec6_standardbeagle-lci's IncrementalEngine.processPendingUpdates,
// which does exactly this for its own incremental symbol index (wave loop
// over pendingUpdates, cascadeDepth > 10 guard against circular
// dependencies).
package updater

import (
	"context"
	"fmt"
	"path/filepath"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/fileiter"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/graphstore"
	"github.com/blarApp/blargraph/internal/hierarchy"
	"github.com/blarApp/blargraph/internal/langregistry"
	"github.com/blarApp/blargraph/internal/logging"
	"github.com/blarApp/blargraph/internal/resolver"
)

// maxCascadeDepth bounds the direct-caller rebuild wave, mirroring the
// teacher's cascade depth guard against circular dependency loops.
const maxCascadeDepth = 10

// Updater drives in-place rebuilds against one environment's graph.
type Updater struct {
	registry *langregistry.Registry
	store    graphstore.Store
	env      graphmodel.Environment
}

// New constructs an Updater bound to one ingest environment and store.
func New(registry *langregistry.Registry, store graphstore.Store, env graphmodel.Environment) *Updater {
	return &Updater{registry: registry, store: store, env: env}
}

// Result reports what an Update run touched.
type Result struct {
	RebuiltPaths     []string
	InvalidatedNodes []string
	CascadeWaves     int
}

// Update runs the four-step protocol in spec §4.6 against graph, a live
// arena that already holds every node the environment currently tracks (so
// InnermostEnclosing-based direct-caller discovery has something to search).
func (u *Updater) Update(ctx context.Context, graph *graphmodel.Graph, resolve *resolver.Resolver, paths []string) (*Result, error) {
	result := &Result{}
	pending := dedupe(paths)
	seen := make(map[string]bool)

	for len(pending) > 0 {
		if result.CascadeWaves >= maxCascadeDepth {
			return result, blarerrors.New(blarerrors.ErrorTypeInternal, blarerrors.SeverityHigh,
				fmt.Sprintf("updater: cascade depth exceeded %d waves (possible circular dependency)", maxCascadeDepth))
		}
		result.CascadeWaves++

		wave := pending
		pending = nil

		direct := make(map[string]bool)
		for _, path := range wave {
			if seen[path] {
				continue
			}
			seen[path] = true

			// Step 1: DETACH_DELETE_BY_PATH.
			if err := u.store.DetachDeleteByPath(ctx, u.env.EntityID, u.env.RepoID, path); err != nil {
				return result, err
			}

			// Collect direct callers before the path's old nodes are gone
			// from the in-memory arena too (spec §4.6 step 3), then remove
			// those old definitions from the arena so rebuild starts clean:
			// a deleted definition, or one whose start line shifted enough
			// to change its hashed id, would otherwise survive as a stale
			// defIndex entry with its DESCRIBES edge intact (spec §8
			// property 9), since AddNode only overwrites a node whose id is
			// unchanged.
			staleDefs := graph.DefinitionsInFile(path)
			for _, n := range staleDefs {
				for _, e := range graph.Edges() {
					if e.ToID == n.ID && graphmodel.IsCrossReference(e.Kind) {
						if caller, ok := graph.Node(e.FromID); ok && caller.Path != path {
							direct[caller.Path] = true
						}
					}
				}
			}
			for _, n := range staleDefs {
				for _, e := range graph.IncomingEdges(n.ID) {
					if e.Kind == graphmodel.EdgeDescribes {
						graph.RemoveNode(e.FromID)
					}
				}
				graph.RemoveNode(n.ID)
			}
			result.RebuiltPaths = append(result.RebuiltPaths, path)
		}

		// Step 2: rebuild the wave's files.
		builder := hierarchy.New(u.registry, u.env)
		files := pathChannel(wave)
		if _, err := buildAndLog(builder, graph, files); err != nil {
			return result, err
		}

		// Step 3: re-resolve the wave's files plus their direct callers.
		// resolver.Resolve only visits nodes whose Path has a tree entry, so
		// restricting the trees map to resolveTargets restricts resolution
		// to exactly those files (spec §4.6 step 3: "other files are left
		// untouched").
		resolveTargets := append(append([]string(nil), wave...), mapKeys(direct)...)
		if resolve != nil {
			trees, code, err := resolver.ParseTrees(u.registry, resolveTargets)
			if err != nil {
				return result, err
			}
			resolve.Resolve(ctx, graph, trees, code)
			for _, tree := range trees {
				tree.Close()
			}
		}

		// Step 4: delete the Documentation node describing each rebuilt node
		// and reset its processing status (BELONGS_TO_WORKFLOW edges of the
		// old definitions already went with them when they were removed
		// above), then queue direct callers as the next cascade wave.
		for _, path := range wave {
			for _, n := range graph.DefinitionsInFile(path) {
				u.invalidateOverlays(graph, n)
				result.InvalidatedNodes = append(result.InvalidatedNodes, n.ID)
			}
		}
		for caller := range direct {
			if !seen[caller] {
				pending = append(pending, caller)
			}
		}
	}
	return result, nil
}

// invalidateOverlays deletes the DESCRIBES-describing Documentation node (if
// any) targeting n and resets n's processing status so the Bottom-Up Batch
// Processor reprocesses it and regenerates the description (spec §4.6 step
// 4, §3.4: "the describing overlay must be deleted ... before the code node
// can be considered completed in a new processing round").
//
// BELONGS_TO_WORKFLOW edges are left alone here: a workflow can legitimately
// outlive a single rebuilt participant (other participants are unaffected),
// so workflow invalidation is the documentation task's/workflow task's own
// idempotent re-run, not a blanket edge delete on every rebuild.
func (u *Updater) invalidateOverlays(graph *graphmodel.Graph, n *graphmodel.Node) {
	n.ProcessingStatus = graphmodel.StatusPending
	for _, e := range graph.IncomingEdges(n.ID) {
		if e.Kind != graphmodel.EdgeDescribes {
			continue
		}
		logging.Debug("updater: deleting stale documentation node", "doc_id", e.FromID, "target", n.ID)
		graph.RemoveNode(e.FromID)
	}
}

func buildAndLog(builder *hierarchy.Builder, graph *graphmodel.Graph, files <-chan fileiter.FileRecord) (*hierarchy.BuildResult, error) {
	res := builder.Build(graph, files)
	for _, err := range res.ParseErrors {
		logging.Warn("updater: rebuild parse error", "error", err)
	}
	return res, nil
}

func pathChannel(paths []string) <-chan fileiter.FileRecord {
	ch := make(chan fileiter.FileRecord, len(paths))
	for _, p := range paths {
		ch <- fileiter.FileRecord{AbsolutePath: p, Language: languageFromExt(p)}
	}
	close(ch)
	return ch
}

func languageFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".rb":
		return "ruby"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	default:
		return ""
	}
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func mapKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
