package langregistry

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func javascriptDefinition() *Definition {
	return &Definition{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		NewParser: func() (*sitter.Parser, error) {
			p := sitter.NewParser()
			if err := p.SetLanguage(sitter.NewLanguage(tree_sitter_javascript.Language())); err != nil {
				return nil, err
			}
			return p, nil
		},
		IsDefinitionNode: func(kind string) bool {
			switch kind {
			case "function_declaration", "class_declaration", "method_definition":
				return true
			}
			return false
		},
		NodeKindFor: func(kind string) graphmodel.NodeKind {
			if kind == "class_declaration" {
				return graphmodel.KindClass
			}
			return graphmodel.KindFunction
		},
		IdentifierNode: func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("name") },
		BodyNode:       func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("body") },
		Relationship:   fallbackRelationshipPolicy,
	}
}
