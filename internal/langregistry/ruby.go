package langregistry

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

// rubyDefinition mirrors blarify's RubyDefinitions tie-breaker table: a
// `call` to a method literally named `new` becomes INSTANTIATES regardless
// of enclosing scope, `assignment` always becomes ASSIGNS, `superclass`
// becomes INHERITS (spec §4.4).
func rubyDefinition() *Definition {
	return &Definition{
		Name:       "ruby",
		Extensions: []string{".rb"},
		NewParser: func() (*sitter.Parser, error) {
			p := sitter.NewParser()
			if err := p.SetLanguage(sitter.NewLanguage(tree_sitter_ruby.Language())); err != nil {
				return nil, err
			}
			return p, nil
		},
		IsDefinitionNode: func(kind string) bool {
			switch kind {
			case "class", "method", "singleton_method":
				return true
			}
			return false
		},
		NodeKindFor: func(kind string) graphmodel.NodeKind {
			if kind == "class" {
				return graphmodel.KindClass
			}
			return graphmodel.KindFunction
		},
		IdentifierNode: func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("name") },
		BodyNode:       func(n *sitter.Node) *sitter.Node { return n.ChildByFieldName("body") },
		Relationship: func(enclosing graphmodel.NodeKind, refNodeKind string, refNode *sitter.Node, code []byte) (graphmodel.EdgeKind, bool) {
			switch refNodeKind {
			case "superclass":
				return graphmodel.EdgeInherits, true
			case "assignment":
				return graphmodel.EdgeAssigns, true
			case "call":
				// A call to a method literally named `new` is always an
				// instantiation, whether the call site is a class body or a
				// method body (spec §8 scenario 3: `Baz.new` inside method
				// `m` yields INSTANTIATES m->Baz, not Foo->Baz).
				if calledMethodIsNew(refNode, code) {
					return graphmodel.EdgeInstantiates, true
				}
				if enclosing == graphmodel.KindFunction {
					return graphmodel.EdgeCalls, true
				}
				return "", false
			}
			return fallbackRelationshipPolicy(enclosing, refNodeKind, refNode, code)
		},
	}
}

func calledMethodIsNew(call *sitter.Node, code []byte) bool {
	if call == nil {
		return false
	}
	method := call.ChildByFieldName("method")
	return method != nil && strings.TrimSpace(getNodeText(method, code)) == "new"
}
