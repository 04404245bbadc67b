// Package langregistry is the capability bundle described in spec §4.1 and
// §9: one struct-of-functions per supported language instead of an
// interface hierarchy. Adding a language means registering a new
// *Definition value; the Hierarchy Builder and Reference Resolver never
// switch on language name themselves.
package langregistry

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

// RelationshipPolicy maps the graph kind of an enclosing definition and the
// tree-sitter node kind of a reference-site occurrence to a cross-reference
// edge kind, or reports ok=false when the occurrence carries no relationship
// this language cares about (spec §4.1 "relationship policy").
type RelationshipPolicy func(enclosing graphmodel.NodeKind, refNodeKind string, refNode *sitter.Node, code []byte) (kind graphmodel.EdgeKind, ok bool)

// Definition is the per-language capability bundle.
type Definition struct {
	Name       string
	Extensions []string

	NewParser func() (*sitter.Parser, error)

	// IsDefinitionNode recognises the tree-sitter node kinds that become
	// graph definition nodes.
	IsDefinitionNode func(kind string) bool

	// NodeKindFor maps a definition tree-sitter-node kind to Class or
	// Function.
	NodeKindFor func(kind string) graphmodel.NodeKind

	// IdentifierNode locates the symbol-name token inside a definition node.
	IdentifierNode func(n *sitter.Node) *sitter.Node

	// BodyNode locates the body child inside a definition node.
	BodyNode func(n *sitter.Node) *sitter.Node

	Relationship RelationshipPolicy
}

// Registry maps a file extension to its language Definition.
type Registry struct {
	byExtension map[string]*Definition
	byName      map[string]*Definition
}

// NewRegistry builds the registry with every language this repository
// supports: Python, Go, Ruby, JavaScript, TypeScript. C# is named
// alongside these in spec §4.1 as an analogous case but has no grammar
// binding anywhere in this module's dependency corpus, so it is left
// unregistered (see DESIGN.md).
func NewRegistry() *Registry {
	r := &Registry{
		byExtension: make(map[string]*Definition),
		byName:      make(map[string]*Definition),
	}
	for _, d := range []*Definition{
		pythonDefinition(),
		goDefinition(),
		rubyDefinition(),
		javascriptDefinition(),
		typescriptDefinition(),
	} {
		r.byName[d.Name] = d
		for _, ext := range d.Extensions {
			r.byExtension[ext] = d
		}
	}
	return r
}

// ForExtension returns the language definition registered for a file
// extension (including the leading dot), or nil if unsupported.
func (r *Registry) ForExtension(ext string) *Definition {
	return r.byExtension[ext]
}

// ForName returns the language definition by name, or nil if unsupported.
func (r *Registry) ForName(name string) *Definition {
	return r.byName[name]
}

// getNodeText extracts the source text spanned by a tree-sitter node. Shared
// by every per-language file in this package.
func getNodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	return string(code[start:end])
}
