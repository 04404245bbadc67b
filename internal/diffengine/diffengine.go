// Package diffengine implements the Diff Engine (spec §4.5): it parses
// unified-diff hunks, classifies file changes, computes line-interval
// overlap against node spans, and drives a PR-overlay Hierarchy Builder
// pass tagged with DIFF_* markers. The Reference Resolver pass over the
// rebuilt files is run by the caller, not by the engine.
//
// Hunk-header parsing is grounded directly on the teacher's
// internal/git/diff_chunker.go (`parseAtHeaders`) and the line-classification
// rules in internal/git/diff.go (`CountDiffLines`); both were reused for
// interval extraction instead of being reimplemented from scratch.
package diffengine

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/blarApp/blargraph/internal/fileiter"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/hierarchy"
	"github.com/blarApp/blargraph/internal/langregistry"
)

// ChangeType classifies one file in a FileDiff set.
type ChangeType string

const (
	Added    ChangeType = "ADDED"
	Modified ChangeType = "MODIFIED"
	Deleted  ChangeType = "DELETED"
)

// FileDiff is one input record to the engine (spec §4.5 "Inputs").
type FileDiff struct {
	Path         string
	ChangeType   ChangeType
	UnifiedDiff  string
	PriorSnapshot string // optional: previous source text, for definition-granularity tagging
}

// hunkHeader matches "@@ -oldStart,oldCount +newStart,newCount @@".
var hunkHeader = regexp.MustCompile(`@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// interval is an inclusive [start,end] line range in new-file coordinates.
type interval struct{ start, end int }

// Engine runs diff overlay passes against a PR environment.
type Engine struct {
	registry *langregistry.Registry
}

// New constructs an Engine.
func New(registry *langregistry.Registry) *Engine {
	return &Engine{registry: registry}
}

// Result reports the per-file outcome of a Run.
type Result struct {
	FilesTagged int
	NodesTagged int
}

// Run executes Phase A/B/C of spec §4.5 against env (which must carry a
// distinct EnvironmentTag from MAIN, e.g. "pr-123") and a graph already
// populated with MAIN-environment nodes the overlay may reference.
func (e *Engine) Run(env graphmodel.Environment, graph *graphmodel.Graph, diffs []FileDiff) *Result {
	res := &Result{}

	// Phase A: classify.
	var toRebuild []FileDiff
	for _, d := range diffs {
		switch d.ChangeType {
		case Deleted:
			e.tagDeleted(graph, d.Path)
			res.FilesTagged++
		case Added, Modified:
			toRebuild = append(toRebuild, d)
		}
	}
	if len(toRebuild) == 0 {
		return res
	}

	// Phase C: rebuild the affected files inside the PR environment. The
	// Reference Resolver pass over these same files is driven by the
	// caller, which already owns a live LSP Coordinator for the run (the
	// PR overlay reuses it rather than starting a second one per language).
	builder := hierarchy.New(e.registry, env)
	files := diffFileChannel(toRebuild)
	buildResult := builder.Build(graph, files)
	res.FilesTagged += buildResult.FilesProcessed

	// Phase B: interval extraction, then tag. Each file's tagging only reads
	// and writes nodes scoped to its own path, so the per-file passes fan
	// out over an errgroup.Group rather than running one at a time — the
	// same idiom the teacher uses for its own parallel file passes, and the
	// one spec §5's "Parallelism" section names for this stage.
	var nodesTagged int64
	var g errgroup.Group
	for _, d := range toRebuild {
		d := d
		g.Go(func() error {
			if d.ChangeType == Added {
				e.tagWholeFileAdded(graph, d.Path, env)
				atomic.AddInt64(&nodesTagged, 1)
				return nil
			}
			intervals := addIntervals(d.UnifiedDiff)
			var tagged int
			if d.PriorSnapshot != "" {
				tagged = e.tagChangedDefinitions(graph, d.Path, d.PriorSnapshot, env)
			} else {
				tagged = e.tagOverlappingDefinitions(graph, d.Path, intervals, env)
			}
			atomic.AddInt64(&nodesTagged, int64(tagged))
			return nil
		})
	}
	_ = g.Wait() // tagging passes never return an error; Wait only joins the fan-out
	res.NodesTagged += int(nodesTagged)
	return res
}

func diffFileChannel(diffs []FileDiff) <-chan fileiter.FileRecord {
	ch := make(chan fileiter.FileRecord, len(diffs))
	for _, d := range diffs {
		ch <- fileiter.FileRecord{AbsolutePath: d.Path, Language: languageFromExt(d.Path)}
	}
	close(ch)
	return ch
}

func languageFromExt(path string) string {
	switch {
	case strings.HasSuffix(path, ".py"):
		return "python"
	case strings.HasSuffix(path, ".go"):
		return "go"
	case strings.HasSuffix(path, ".rb"):
		return "ruby"
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".tsx"):
		return "typescript"
	case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".jsx"):
		return "javascript"
	default:
		return ""
	}
}

// tagDeleted marks every existing Class/Function node defined in path as
// DIFF_DELETED (the File node itself is not marked); such nodes participate
// only as edge targets from old-graph references (spec §3.2 point 6).
func (e *Engine) tagDeleted(graph *graphmodel.Graph, path string) {
	for _, n := range graph.DefinitionsInFile(path) {
		n.DiffMarker = string(graphmodel.EdgeDiffDeleted)
	}
}

// inEnvironment reports whether n belongs to env: same entity and repo, and
// an id derived from env's environment tag.
func inEnvironment(n *graphmodel.Node, env graphmodel.Environment) bool {
	return n.EntityID == env.EntityID && n.RepoID == env.RepoID &&
		n.ID == graphmodel.NodeID(env.EnvironmentTag, env.RepoID, n.Identifier, string(n.Kind))
}

func (e *Engine) tagWholeFileAdded(graph *graphmodel.Graph, path string, env graphmodel.Environment) {
	for _, n := range graph.Nodes() {
		if n.Path == path && inEnvironment(n, env) {
			n.DiffMarker = string(graphmodel.EdgeDiffAdded)
		}
	}
}

// tagOverlappingDefinitions tags every definition node in path whose new-span
// intersects one of intervals with DIFF_MODIFIED (spec §4.5 Phase B, "without
// prior snapshots" branch).
func (e *Engine) tagOverlappingDefinitions(graph *graphmodel.Graph, path string, intervals []interval, env graphmodel.Environment) int {
	tagged := 0
	for _, n := range graph.DefinitionsInFile(path) {
		if !inEnvironment(n, env) {
			continue
		}
		for _, iv := range intervals {
			if spansOverlap(n.StartLine, n.EndLine, iv.start, iv.end) {
				n.DiffMarker = string(graphmodel.EdgeDiffModified)
				tagged++
				break
			}
		}
	}
	return tagged
}

// tagChangedDefinitions diffs prior against the rebuilt graph's definitions
// in path at definition granularity (spec §4.5 Phase B, "with prior
// snapshots" branch): a definition is tagged only if its source text differs
// from the snapshot's lines over the same StartLine..EndLine span.
func (e *Engine) tagChangedDefinitions(graph *graphmodel.Graph, path, prior string, env graphmodel.Environment) int {
	priorLines := strings.Split(prior, "\n")
	tagged := 0
	for _, n := range graph.DefinitionsInFile(path) {
		if !inEnvironment(n, env) {
			continue
		}
		if definitionChanged(n, priorLines) {
			n.DiffMarker = string(graphmodel.EdgeDiffModified)
			tagged++
		}
	}
	return tagged
}

func definitionChanged(n *graphmodel.Node, priorLines []string) bool {
	start, end := n.StartLine-1, n.EndLine
	if start < 0 || end > len(priorLines) || start >= end {
		return true // span doesn't exist in the snapshot: new definition
	}
	priorText := strings.Join(priorLines[start:end], "\n")
	return strings.TrimSpace(priorText) != strings.TrimSpace(n.Signature)
}

func spansOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && bStart <= aEnd
}

// addIntervals parses diffText into the new-file add intervals its hunks
// describe.
func addIntervals(diffText string) []interval {
	var out []interval
	scanner := bufio.NewScanner(strings.NewReader(diffText))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "@@") {
			continue
		}
		start, count, ok := parseHunkHeader(line)
		if !ok {
			continue
		}
		end := start + count - 1
		if end < start {
			end = start
		}
		out = append(out, interval{start: start, end: end})
	}
	return out
}

// parseHunkHeader extracts the new-file (start, count) pair from a "@@ ...
// @@" header line.
func parseHunkHeader(line string) (start, count int, ok bool) {
	m := hunkHeader.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	start, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		count, _ = strconv.Atoi(m[4])
	} else {
		count = 1
	}
	return start, count, true
}

// CountLines reports the added/deleted line counts in a unified diff,
// matching the teacher's CountDiffLines semantics, used for change-size
// reporting alongside diff overlay tagging.
func CountLines(diff string) (added, deleted int) {
	for _, line := range strings.Split(diff, "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case '+':
			if !strings.HasPrefix(line, "+++") {
				added++
			}
		case '-':
			if !strings.HasPrefix(line, "---") {
				deleted++
			}
		}
	}
	return added, deleted
}
