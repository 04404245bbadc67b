// Package hierarchy implements the Hierarchy Builder (spec §4.3): it parses
// each file with its language's grammar, walks the resulting concrete
// syntax tree, and emits File/Class/Function definition nodes plus
// CONTAINS/FUNCTION_DEFINITION/CLASS_DEFINITION structural edges into a
// graphmodel.Graph.
package hierarchy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/fileiter"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/langregistry"
	"github.com/blarApp/blargraph/internal/logging"
)

// Builder parses files and assembles a Graph.
type Builder struct {
	registry *langregistry.Registry
	env      graphmodel.Environment

	// folderIDs memoizes the Folder node created for each directory prefix
	// so every unique path prefix gets exactly one node (spec §4.3).
	folderIDs map[string]string
}

// New constructs a Builder for one ingest environment.
func New(registry *langregistry.Registry, env graphmodel.Environment) *Builder {
	return &Builder{registry: registry, env: env, folderIDs: make(map[string]string)}
}

// BuildResult reports recoverable errors encountered while building, per
// the typed-result-objects propagation rule in spec §7.
type BuildResult struct {
	FilesProcessed int
	ParseErrors    []error
	ExtractErrors  []error
}

// Build consumes every file from files, populating graph in place, and
// returns a report of recoverable errors (ParseError is logged and the File
// node is still emitted with no children; extraction errors skip just the
// offending definition).
func (b *Builder) Build(graph *graphmodel.Graph, files <-chan fileiter.FileRecord) *BuildResult {
	result := &BuildResult{}
	for rec := range files {
		b.ensureFolderChain(graph, rec.AbsolutePath)
		if err := b.buildFile(graph, rec, result); err != nil {
			result.ParseErrors = append(result.ParseErrors, err)
			continue
		}
		result.FilesProcessed++
	}
	return result
}

func (b *Builder) buildFile(graph *graphmodel.Graph, rec fileiter.FileRecord, result *BuildResult) error {
	code, err := os.ReadFile(rec.AbsolutePath)
	if err != nil {
		return blarerrors.FileSystemError(err, fmt.Sprintf("read %s", rec.AbsolutePath))
	}

	fileNode := graphmodel.NewNode(b.env, graphmodel.KindFile, rec.AbsolutePath, rec.AbsolutePath, 1, countLines(code))
	fileNode.Name = filepath.Base(rec.AbsolutePath)
	fileNode.Language = rec.Language
	fileNode.Text = string(code)
	fileNode.ParentID = b.folderIDs[filepath.Dir(rec.AbsolutePath)]
	graph.AddNode(fileNode)
	if fileNode.ParentID != "" {
		graph.AddEdge(&graphmodel.Edge{FromID: fileNode.ParentID, ToID: fileNode.ID, Kind: graphmodel.EdgeContains})
	}

	def := b.registry.ForExtension(filepath.Ext(rec.AbsolutePath))
	if def == nil {
		// No language definition: the file is still captured as a File
		// node with no children (spec §4.1 error-conditions clause).
		return nil
	}

	parser, err := def.NewParser()
	if err != nil {
		logging.Error("hierarchy: failed to construct parser", "language", def.Name, "error", err)
		return blarerrors.Wrap(err, blarerrors.ErrorTypeParse, blarerrors.SeverityLow, fmt.Sprintf("construct parser for %s", def.Name))
	}
	defer parser.Close()

	tree := parser.Parse(code, nil)
	if tree == nil {
		logging.Error("hierarchy: parse failed", "file", rec.AbsolutePath)
		return blarerrors.ParseError(fmt.Sprintf("tree-sitter returned no tree for %s", rec.AbsolutePath))
	}
	defer tree.Close()

	b.walk(graph, def, tree.RootNode(), code, rec.AbsolutePath, fileNode.ID, result)
	return nil
}

// walk performs the DFS over the CST, emitting a Class/Function node for
// every sub-tree the language's definition predicate accepts and attaching
// it to the nearest enclosing definition node (or the File node).
func (b *Builder) walk(graph *graphmodel.Graph, def *langregistry.Definition, node *sitter.Node, code []byte, filePath, parentDefID string, result *BuildResult) {
	if node == nil {
		return
	}
	kind := node.Kind()
	enclosingID := parentDefID

	if def.IsDefinitionNode(kind) {
		n, emitted := b.emitDefinition(graph, def, node, code, filePath, kind)
		if emitted {
			edgeKind := graphmodel.EdgeFunctionDefinition
			if n.Kind == graphmodel.KindClass {
				edgeKind = graphmodel.EdgeClassDefinition
			}
			graph.AddEdge(&graphmodel.Edge{FromID: parentDefID, ToID: n.ID, Kind: edgeKind})
			enclosingID = n.ID
		} else {
			result.ExtractErrors = append(result.ExtractErrors,
				blarerrors.IdentifierNotFound(fmt.Sprintf("%s:%s", filePath, kind)))
		}
	}

	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		b.walk(graph, def, node.Child(i), code, filePath, enclosingID, result)
	}
}

func (b *Builder) emitDefinition(graph *graphmodel.Graph, def *langregistry.Definition, node *sitter.Node, code []byte, filePath, tsKind string) (*graphmodel.Node, bool) {
	idNode := def.IdentifierNode(node)
	if idNode == nil {
		return nil, false
	}
	bodyNode := def.BodyNode(node)

	name := nodeText(idNode, code)
	startLine := int(node.StartPosition().Row) + 1
	endLine := int(node.EndPosition().Row) + 1
	identifier := fmt.Sprintf("%s::%s:%d", filePath, name, startLine)

	graphKind := def.NodeKindFor(tsKind)
	n := graphmodel.NewNode(b.env, graphKind, filePath, identifier, startLine, endLine)
	n.Name = name
	n.Signature = nodeText(node, code)
	if bodyNode != nil {
		n.Text = nodeText(bodyNode, code)
	}
	graph.AddNode(n)
	return n, true
}

// ensureFolderChain creates (memoized) Folder nodes for every unique path
// prefix of filePath *within the repository root*, including exactly one
// root Folder per repository ingest (spec §4.3). Prefixes are taken
// relative to env.RootPath so an ingest never synthesizes Folder nodes for
// filesystem ancestors above the repository (e.g. /tmp, /home) that have
// nothing to do with the repository being ingested.
func (b *Builder) ensureFolderChain(graph *graphmodel.Graph, filePath string) {
	dir := filepath.Dir(filePath)

	const rootKey = "."
	rootID, ok := b.folderIDs[rootKey]
	if !ok {
		n := graphmodel.NewNode(b.env, graphmodel.KindFolder, b.env.RootPath, b.env.RootPath, 0, 0)
		n.Name = filepath.Base(b.env.RootPath)
		graph.AddNode(n)
		b.folderIDs[rootKey] = n.ID
		rootID = n.ID
	}

	rel, err := filepath.Rel(b.env.RootPath, dir)
	if err != nil || rel == "." {
		b.folderIDs[dir] = rootID
		return
	}
	rel = filepath.ToSlash(rel)

	cur := rootKey
	parentID := rootID
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." {
			continue
		}
		if cur == rootKey {
			cur = seg
		} else {
			cur = cur + "/" + seg
		}
		if id, ok := b.folderIDs[cur]; ok {
			parentID = id
			continue
		}
		fullPath := filepath.Join(b.env.RootPath, cur)
		n := graphmodel.NewNode(b.env, graphmodel.KindFolder, fullPath, fullPath, 0, 0)
		n.Name = seg
		n.ParentID = parentID
		graph.AddNode(n)
		graph.AddEdge(&graphmodel.Edge{FromID: parentID, ToID: n.ID, Kind: graphmodel.EdgeContains})
		b.folderIDs[cur] = n.ID
		parentID = n.ID
	}
	b.folderIDs[dir] = parentID
}

func nodeText(n *sitter.Node, code []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	return string(code[start:end])
}

func countLines(code []byte) int {
	if len(code) == 0 {
		return 1
	}
	n := 1
	for _, c := range code {
		if c == '\n' {
			n++
		}
	}
	return n
}
