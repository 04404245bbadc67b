// Package resolver implements the Reference Resolver (spec §4.4): for
// every definition node's body, it walks the tree-sitter body for
// reference-site occurrences the language policy recognises, consults the
// LSP Coordinator, maps the result back through the Hierarchy Builder's
// index, and emits typed cross-reference edges.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/langregistry"
	"github.com/blarApp/blargraph/internal/logging"
	"github.com/blarApp/blargraph/internal/lsp"
)

// referenceNodeKinds is the set of tree-sitter node kinds that may be a
// reference site for any supported language; a language's RelationshipPolicy
// decides whether a given occurrence actually yields an edge.
var referenceNodeKinds = map[string]bool{
	"call_expression": true, "call": true,
	"import_statement": true, "import_from_statement": true,
	"import_declaration": true, "import_clause": true,
	"composite_literal": true, "field_declaration": true,
	"superclass": true, "assignment": true,
}

// importNodeKinds is the subset of referenceNodeKinds findImportOccurrences
// scans for at the top level of a file.
var importNodeKinds = map[string]bool{
	"import_statement": true, "import_from_statement": true,
	"import_declaration": true, "import_clause": true,
}

// Resolver drives the resolution pass over an already-built Graph.
type Resolver struct {
	registry    *langregistry.Registry
	coordinator *lsp.Coordinator
	concurrency int
}

// New constructs a Resolver bounded to concurrency simultaneous in-flight
// LSP requests (spec §5 concurrency contract).
func New(registry *langregistry.Registry, coordinator *lsp.Coordinator, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Resolver{registry: registry, coordinator: coordinator, concurrency: concurrency}
}

// occurrence is one reference-site found inside a definition node's body.
type occurrence struct {
	enclosing  *graphmodel.Node
	refKind    string
	refNode    *sitter.Node
	line, col  int
	scopeText  string
}

// Resolve walks every Class/Function node in graph, finds its reference
// sites, and emits cross-reference edges. code supplies the parsed source
// bytes for each file path (already available from the hierarchy builder's
// first pass, kept here so the resolver never re-reads disk).
//
// Every file in code is opened against its language server first (spec
// §4.4: "didOpen before definition/references" — a real LSP server rejects
// position requests against a document it was never told about), so every
// caller gets a correct resolution pass without having to remember the
// didOpen step itself.
func (r *Resolver) Resolve(ctx context.Context, graph *graphmodel.Graph, trees map[string]*sitter.Tree, code map[string][]byte) {
	r.openFiles(ctx, code)

	jobs := make(chan occurrence, r.concurrency)
	var wg sync.WaitGroup

	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for occ := range jobs {
				r.resolveOne(ctx, graph, occ, code)
			}
		}()
	}

	for _, n := range graph.Nodes() {
		if n.Kind != graphmodel.KindClass && n.Kind != graphmodel.KindFunction && n.Kind != graphmodel.KindFile {
			continue
		}
		tree, ok := trees[n.Path]
		if !ok {
			continue
		}
		if r.registry.ForExtension(filepath.Ext(n.Path)) == nil {
			continue
		}

		var occs []occurrence
		switch n.Kind {
		case graphmodel.KindFile:
			occs = findImportOccurrences(tree.RootNode(), n, code[n.Path])
		default:
			occs = findOccurrences(tree.RootNode(), n, code[n.Path])
		}
		for _, occ := range occs {
			select {
			case jobs <- occ:
			case <-ctx.Done():
			}
		}
	}
	close(jobs)
	wg.Wait()
}

// findImportOccurrences collects module-level import statements as
// occurrences anchored to the File node itself (spec §4.4/§8 scenario 2:
// "from a.py's `f` (or enclosing file, per policy) to b.py's `h`" — this
// resolver's policy is the file). Imports live at the top level of the
// translation unit (Go's import_declaration, Python's import_statement,
// JS/TS's import_statement), so only root's direct children are scanned;
// findOccurrences already covers an import nested inside a function body by
// walking that function's own span.
func findImportOccurrences(root *sitter.Node, fileNode *graphmodel.Node, code []byte) []occurrence {
	if root == nil {
		return nil
	}
	var occs []occurrence
	for i := uint(0); i < root.ChildCount(); i++ {
		n := root.Child(i)
		if n == nil || !importNodeKinds[n.Kind()] {
			continue
		}
		occs = append(occs, occurrence{
			enclosing: fileNode,
			refKind:   n.Kind(),
			refNode:   n,
			line:      int(n.StartPosition().Row),
			col:       int(n.StartPosition().Column),
			scopeText: snippet(n, code),
		})
	}
	return occs
}

// openFiles sends textDocument/didOpen for every file about to be resolved.
func (r *Resolver) openFiles(ctx context.Context, code map[string][]byte) {
	for path, src := range code {
		def := r.registry.ForExtension(filepath.Ext(path))
		if def == nil {
			continue
		}
		if err := r.coordinator.DidOpen(ctx, def.Name, fileURI(path), def.Name, string(src)); err != nil {
			logging.Warn("resolver: lsp didOpen failed", "path", path, "error", err)
		}
	}
}

// findOccurrences walks node's sub-tree restricted to the definition node's
// own span and collects candidate reference sites.
func findOccurrences(root *sitter.Node, enclosing *graphmodel.Node, code []byte) []occurrence {
	var occs []occurrence
	target := findNodeBySpan(root, enclosing.StartLine, enclosing.EndLine)
	if target == nil {
		return nil
	}
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		kind := n.Kind()
		if referenceNodeKinds[kind] {
			occs = append(occs, occurrence{
				enclosing: enclosing,
				refKind:   kind,
				refNode:   n,
				line:      int(n.StartPosition().Row),
				col:       int(n.StartPosition().Column),
				scopeText: snippet(n, code),
			})
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(target)
	return occs
}

func findNodeBySpan(root *sitter.Node, startLine, endLine int) *sitter.Node {
	var found *sitter.Node
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || found != nil {
			return
		}
		s, e := int(n.StartPosition().Row)+1, int(n.EndPosition().Row)+1
		if s == startLine && e == endLine {
			found = n
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return found
}

func snippet(n *sitter.Node, code []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	text := string(code[start:end])
	if len(text) > 120 {
		text = text[:120]
	}
	return strings.TrimSpace(text)
}

func (r *Resolver) resolveOne(ctx context.Context, graph *graphmodel.Graph, occ occurrence, code map[string][]byte) {
	def := r.registry.ForExtension(filepath.Ext(occ.enclosing.Path))
	if def == nil {
		return
	}
	kind, ok := def.Relationship(occ.enclosing.Kind, occ.refKind, occ.refNode, code[occ.enclosing.Path])
	if !ok {
		return
	}

	uri := fileURI(occ.enclosing.Path)
	locations := r.coordinator.Definition(ctx, def.Name, uri, occ.line, occ.col)
	for _, loc := range locations {
		targetPath := pathFromURI(loc.URI)
		target, found := graph.InnermostEnclosing(targetPath, loc.Line+1)
		if !found {
			// External library or unresolved location: drop rather than
			// attach to an external-references store (spec §4.4 point 5,
			// "or drop it, depending on the project's policy" — this
			// implementation drops).
			logging.Debug("resolver: definition resolved outside tracked definitions", "uri", loc.URI, "line", loc.Line)
			continue
		}
		graph.AddEdge(&graphmodel.Edge{
			FromID:       occ.enclosing.ID,
			ToID:         target.ID,
			Kind:         kind,
			ScopeText:    occ.scopeText,
			SourceLine:   occ.line + 1,
			SourceColumn: occ.col,
		})
	}
}

// ParseTrees parses every path with its language's grammar, producing the
// trees/code pair Resolve needs. Used both by the Updater's per-wave
// re-resolve and by the initial full-repository build, so a caller never has
// to re-read disk once the Hierarchy Builder has already closed its own
// trees. Independent per file, so parsing fans out over an errgroup the same
// way the Diff Engine does for its per-file tagging pass.
func ParseTrees(registry *langregistry.Registry, paths []string) (map[string]*sitter.Tree, map[string][]byte, error) {
	trees := make(map[string]*sitter.Tree, len(paths))
	code := make(map[string][]byte, len(paths))
	var mu sync.Mutex

	var g errgroup.Group
	for _, path := range paths {
		path := path
		g.Go(func() error {
			def := registry.ForExtension(filepath.Ext(path))
			if def == nil {
				return nil
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return blarerrors.FileSystemError(err, fmt.Sprintf("read %s", path))
			}
			parser, err := def.NewParser()
			if err != nil {
				return blarerrors.Wrap(err, blarerrors.ErrorTypeParse, blarerrors.SeverityLow, fmt.Sprintf("construct parser for %s", def.Name))
			}
			tree := parser.Parse(src, nil)
			parser.Close()
			if tree == nil {
				logging.Warn("resolver: parse failed while building tree set", "path", path)
				return nil
			}
			mu.Lock()
			trees[path] = tree
			code[path] = src
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return trees, code, nil
}

func fileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}

func pathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return filepath.FromSlash(u.Path)
}
