package langregistry

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

// goDefinition mirrors blarify's GoDefinitions tie-breaker table: inside a
// Class-kind scope, composite_literal means INSTANTIATES and
// field_declaration means TYPES; everything else falls back to the general
// CALLS/IMPORTS rule (spec §4.4, §4.1).
func goDefinition() *Definition {
	return &Definition{
		Name:       "go",
		Extensions: []string{".go"},
		NewParser: func() (*sitter.Parser, error) {
			p := sitter.NewParser()
			if err := p.SetLanguage(sitter.NewLanguage(tree_sitter_go.Language())); err != nil {
				return nil, err
			}
			return p, nil
		},
		IsDefinitionNode: func(kind string) bool {
			switch kind {
			case "type_spec", "type_alias", "method_declaration", "function_declaration":
				return true
			}
			return false
		},
		NodeKindFor: func(kind string) graphmodel.NodeKind {
			switch kind {
			case "type_spec", "type_alias":
				return graphmodel.KindClass
			default:
				return graphmodel.KindFunction
			}
		},
		IdentifierNode: func(n *sitter.Node) *sitter.Node {
			if id := n.ChildByFieldName("name"); id != nil {
				return id
			}
			return n.ChildByFieldName("receiver")
		},
		BodyNode: func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("body") },
		Relationship: func(enclosing graphmodel.NodeKind, refNodeKind string, refNode *sitter.Node, code []byte) (graphmodel.EdgeKind, bool) {
			if enclosing == graphmodel.KindClass {
				switch refNodeKind {
				case "composite_literal":
					return graphmodel.EdgeInstantiates, true
				case "field_declaration":
					return graphmodel.EdgeTypes, true
				case "import_declaration":
					return graphmodel.EdgeImports, true
				}
				return "", false
			}
			if refNodeKind == "import_declaration" {
				return graphmodel.EdgeImports, true
			}
			return fallbackRelationshipPolicy(enclosing, refNodeKind, refNode, code)
		},
	}
}
