package langregistry

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func typescriptDefinition() *Definition {
	return &Definition{
		Name:       "typescript",
		Extensions: []string{".ts", ".tsx", ".mts", ".cts"},
		NewParser: func() (*sitter.Parser, error) {
			p := sitter.NewParser()
			if err := p.SetLanguage(sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())); err != nil {
				return nil, err
			}
			return p, nil
		},
		IsDefinitionNode: func(kind string) bool {
			switch kind {
			case "function_declaration", "class_declaration", "method_definition", "interface_declaration":
				return true
			}
			return false
		},
		NodeKindFor: func(kind string) graphmodel.NodeKind {
			switch kind {
			case "class_declaration", "interface_declaration":
				return graphmodel.KindClass
			default:
				return graphmodel.KindFunction
			}
		},
		IdentifierNode: func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("name") },
		BodyNode:       func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("body") },
		Relationship:   fallbackRelationshipPolicy,
	}
}
