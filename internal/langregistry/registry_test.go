package langregistry

import (
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func TestNewRegistryResolvesExtensionsAndNames(t *testing.T) {
	r := NewRegistry()

	for ext, name := range map[string]string{
		".py": "python", ".go": "go", ".rb": "ruby", ".js": "javascript", ".ts": "typescript",
	} {
		def := r.ForExtension(ext)
		require.NotNilf(t, def, "expected a definition for %s", ext)
		assert.Equal(t, name, def.Name)
		assert.Same(t, def, r.ForName(name))
	}

	assert.Nil(t, r.ForExtension(".cs"), "C# has no grammar binding in this module's dependency corpus")
	assert.Nil(t, r.ForExtension(".unknown"))
}

func findFirstNodeOfKind(root *sitter.Node, kind string) *sitter.Node {
	if root == nil {
		return nil
	}
	if root.Kind() == kind {
		return root
	}
	for i := uint(0); i < root.ChildCount(); i++ {
		if found := findFirstNodeOfKind(root.Child(i), kind); found != nil {
			return found
		}
	}
	return nil
}

// TestRubyRelationshipScenario reproduces spec §8 end-to-end scenario 3:
// class Foo < Bar; def m; Baz.new; other_m; end; end yields INHERITS
// Foo->Bar, INSTANTIATES m->Baz, CALLS m->other_m.
func TestRubyRelationshipScenario(t *testing.T) {
	def := rubyDefinition()
	src := []byte("class Foo < Bar\n  def m\n    Baz.new\n    other_m()\n  end\nend\n")

	p := sitter.NewParser()
	require.NoError(t, p.SetLanguage(sitter.NewLanguage(tree_sitter_ruby.Language())))
	defer p.Close()
	tree := p.Parse(src, nil)
	require.NotNil(t, tree)
	defer tree.Close()

	superclass := findFirstNodeOfKind(tree.RootNode(), "superclass")
	require.NotNil(t, superclass)
	kind, ok := def.Relationship(graphmodel.KindClass, "superclass", superclass, src)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeInherits, kind)

	// Both "Baz.new" and "other_m" parse as `call` nodes; the first call
	// found is "Baz.new" (method identifier "new"), the second is "other_m".
	var calls []*sitter.Node
	var collect func(*sitter.Node)
	collect = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "call" {
			calls = append(calls, n)
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			collect(n.Child(i))
		}
	}
	collect(tree.RootNode())
	require.Len(t, calls, 2)

	newCallKind, ok := def.Relationship(graphmodel.KindFunction, "call", calls[0], src)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeInstantiates, newCallKind, "Baz.new must be INSTANTIATES even though the enclosing scope is method m, not the class")

	otherCallKind, ok := def.Relationship(graphmodel.KindFunction, "call", calls[1], src)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeCalls, otherCallKind)
}

func TestGoRelationshipPolicyClassScopeTieBreakers(t *testing.T) {
	def := goDefinition()

	kind, ok := def.Relationship(graphmodel.KindClass, "composite_literal", nil, nil)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeInstantiates, kind)

	kind, ok = def.Relationship(graphmodel.KindClass, "field_declaration", nil, nil)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeTypes, kind)

	kind, ok = def.Relationship(graphmodel.KindFunction, "call_expression", nil, nil)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeCalls, kind)
}

func TestFallbackRelationshipPolicy(t *testing.T) {
	kind, ok := fallbackRelationshipPolicy(graphmodel.KindFunction, "call_expression", nil, nil)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeCalls, kind)

	// A call occurring outside any Function-kind scope yields no edge.
	_, ok = fallbackRelationshipPolicy(graphmodel.KindClass, "call_expression", nil, nil)
	assert.False(t, ok)

	kind, ok = fallbackRelationshipPolicy(graphmodel.KindFunction, "import_from_statement", nil, nil)
	require.True(t, ok)
	assert.Equal(t, graphmodel.EdgeImports, kind)

	_, ok = fallbackRelationshipPolicy(graphmodel.KindFunction, "binary_expression", nil, nil)
	assert.False(t, ok)
}
