package graphmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeIDIsDeterministic(t *testing.T) {
	a := NodeID("main", "repo1", "/src/a.py::f:1", "Function")
	b := NodeID("main", "repo1", "/src/a.py::f:1", "Function")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestNodeIDDistinguishesEveryComponent(t *testing.T) {
	base := NodeID("main", "repo1", "/src/a.py::f:1", "Function")

	assert.NotEqual(t, base, NodeID("pr-1", "repo1", "/src/a.py::f:1", "Function"), "environment must affect the id")
	assert.NotEqual(t, base, NodeID("main", "repo2", "/src/a.py::f:1", "Function"), "repo id must affect the id")
	assert.NotEqual(t, base, NodeID("main", "repo1", "/src/a.py::g:1", "Function"), "path/identifier must affect the id")
	assert.NotEqual(t, base, NodeID("main", "repo1", "/src/a.py::f:1", "Class"), "kind must affect the id")
}

func TestEdgeKeyDistinguishesDirectionAndKind(t *testing.T) {
	assert.NotEqual(t, EdgeKey("a", "b", "CALLS"), EdgeKey("b", "a", "CALLS"))
	assert.NotEqual(t, EdgeKey("a", "b", "CALLS"), EdgeKey("a", "b", "IMPORTS"))
	assert.Equal(t, EdgeKey("a", "b", "CALLS"), EdgeKey("a", "b", "CALLS"))
}
