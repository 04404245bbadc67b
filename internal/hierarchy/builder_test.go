package hierarchy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blarApp/blargraph/internal/fileiter"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/langregistry"
)

func testEnv() graphmodel.Environment {
	return graphmodel.Environment{EntityID: "e1", RepoID: "r1", RootPath: "/repo", EnvironmentTag: "main"}
}

// TestBuildSimplePython reproduces spec §8 end-to-end scenario 1: a single
// file simple.py with def f(): return g() / def g(): return 1 produces 3
// nodes (File, f, g) and 2 FUNCTION_DEFINITION edges.
func TestBuildSimplePython(t *testing.T) {
	dir := t.TempDir()
	src := "def f():\n    return g()\n\ndef g():\n    return 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simple.py"), []byte(src), 0o644))

	registry := langregistry.NewRegistry()
	it, err := fileiter.New(dir, registry)
	require.NoError(t, err)

	graph := graphmodel.NewGraph()
	b := New(registry, testEnv())
	result := b.Build(graph, it.Walk())

	require.Empty(t, result.ParseErrors)
	require.Empty(t, result.ExtractErrors)
	assert.Equal(t, 1, result.FilesProcessed)

	files := graph.NodesByKind(graphmodel.KindFile)
	funcs := graph.NodesByKind(graphmodel.KindFunction)
	require.Len(t, files, 1)
	require.Len(t, funcs, 2)

	names := map[string]bool{}
	for _, f := range funcs {
		names[f.Name] = true
	}
	assert.True(t, names["f"])
	assert.True(t, names["g"])

	defEdges := 0
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeFunctionDefinition {
			defEdges++
			assert.Equal(t, files[0].ID, e.FromID)
		}
	}
	assert.Equal(t, 2, defEdges)
}

// TestBuildToleratesSyntaxErrorsElsewhereInFile exercises the per-file
// resilience spec §7 requires: a malformed definition earlier in the file
// must not prevent a well-formed definition later in the same file from
// being captured.
func TestBuildToleratesSyntaxErrorsElsewhereInFile(t *testing.T) {
	dir := t.TempDir()
	// Syntactically broken function (no name) followed by a valid one.
	src := "def ():\n    pass\n\ndef g():\n    return 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.py"), []byte(src), 0o644))

	registry := langregistry.NewRegistry()
	it, err := fileiter.New(dir, registry)
	require.NoError(t, err)

	graph := graphmodel.NewGraph()
	b := New(registry, testEnv())
	result := b.Build(graph, it.Walk())

	require.Empty(t, result.ParseErrors)
	assert.Equal(t, 1, result.FilesProcessed)

	funcs := graph.NodesByKind(graphmodel.KindFunction)
	names := map[string]bool{}
	for _, f := range funcs {
		names[f.Name] = true
	}
	assert.True(t, names["g"], "valid definition after the broken one must still be captured")
}

// TestBuildDeterministicIds exercises invariant §3.3.1: re-running the
// builder on unchanged input produces the same ids for unchanged files.
func TestBuildDeterministicIds(t *testing.T) {
	dir := t.TempDir()
	src := "def f():\n    return 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte(src), 0o644))

	registry := langregistry.NewRegistry()
	env := testEnv()

	ids := func() map[string]string {
		it, err := fileiter.New(dir, registry)
		require.NoError(t, err)
		graph := graphmodel.NewGraph()
		b := New(registry, env)
		b.Build(graph, it.Walk())
		out := map[string]string{}
		for _, n := range graph.Nodes() {
			out[n.Identifier] = n.ID
		}
		return out
	}

	first := ids()
	second := ids()
	assert.Equal(t, first, second)
}

// TestBuildNestedClassMethod exercises the Class->Function CLASS_DEFINITION
// edge and folder-chain synthesis described in spec §4.3.
func TestBuildNestedClassMethod(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg", "sub"), 0o755))
	src := "class Foo:\n    def bar(self):\n        return 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "sub", "m.py"), []byte(src), 0o644))

	registry := langregistry.NewRegistry()
	it, err := fileiter.New(dir, registry)
	require.NoError(t, err)

	graph := graphmodel.NewGraph()
	env := testEnv()
	env.RootPath = dir
	b := New(registry, env)
	result := b.Build(graph, it.Walk())
	require.Empty(t, result.ExtractErrors)

	classes := graph.NodesByKind(graphmodel.KindClass)
	funcs := graph.NodesByKind(graphmodel.KindFunction)
	require.Len(t, classes, 1)
	require.Len(t, funcs, 1)

	var classDefEdge, funcDefEdge bool
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeClassDefinition && e.ToID == classes[0].ID {
			classDefEdge = true
		}
		if e.Kind == graphmodel.EdgeFunctionDefinition && e.FromID == classes[0].ID && e.ToID == funcs[0].ID {
			funcDefEdge = true
		}
	}
	assert.True(t, classDefEdge, "class must be attached to its file via CLASS_DEFINITION")
	assert.True(t, funcDefEdge, "method must be attached to its enclosing class via FUNCTION_DEFINITION")

	folders := graph.NodesByKind(graphmodel.KindFolder)
	assert.Len(t, folders, 3, "root, pkg and pkg/sub should each get exactly one Folder node")
}
