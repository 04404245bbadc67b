package langregistry

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func pythonDefinition() *Definition {
	return &Definition{
		Name:       "python",
		Extensions: []string{".py", ".pyi", ".pyw"},
		NewParser: func() (*sitter.Parser, error) {
			p := sitter.NewParser()
			if err := p.SetLanguage(sitter.NewLanguage(tree_sitter_python.Language())); err != nil {
				return nil, err
			}
			return p, nil
		},
		IsDefinitionNode: func(kind string) bool {
			switch kind {
			case "function_definition", "class_definition":
				return true
			}
			return false
		},
		NodeKindFor: func(kind string) graphmodel.NodeKind {
			if kind == "class_definition" {
				return graphmodel.KindClass
			}
			return graphmodel.KindFunction
		},
		IdentifierNode: func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("name") },
		BodyNode:       func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("body") },
		Relationship:   fallbackRelationshipPolicy,
	}
}

// fallbackRelationshipPolicy implements the "general fallback" tie-breaker
// from spec §4.4: any call from a Function-kind scope becomes CALLS, any
// import context becomes IMPORTS. Used directly by Python, JS, TS and as
// the base case consulted by Go's and Ruby's language-specific policies.
func fallbackRelationshipPolicy(enclosing graphmodel.NodeKind, refNodeKind string, _ *sitter.Node, _ []byte) (graphmodel.EdgeKind, bool) {
	switch {
	case refNodeKind == "call_expression" || refNodeKind == "call":
		if enclosing == graphmodel.KindFunction {
			return graphmodel.EdgeCalls, true
		}
	case refNodeKind == "import_statement" || refNodeKind == "import_from_statement" ||
		refNodeKind == "import_declaration" || refNodeKind == "import_clause":
		return graphmodel.EdgeImports, true
	}
	return "", false
}
