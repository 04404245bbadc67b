package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func TestStringFieldExtractsStringsAndIgnoresOtherTypes(t *testing.T) {
	assert.Equal(t, "hello", stringField("hello"))
	assert.Equal(t, "", stringField(42))
	assert.Equal(t, "", stringField(nil))
}

func TestSortByScoreDescOrdersDescendingAndIsStable(t *testing.T) {
	rows := []map[string]any{
		{"id": "a", "score": 0.2},
		{"id": "b", "score": 0.9},
		{"id": "c", "score": 0.5},
		{"id": "d", "score": 0.9},
	}
	sortByScoreDesc(rows)

	var order []string
	for _, r := range rows {
		order = append(order, r["id"].(string))
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, order, "equal-score rows must keep their original relative order")
}

func TestSortByScoreDescToleratesMissingScoreField(t *testing.T) {
	rows := []map[string]any{
		{"id": "a"},
		{"id": "b", "score": 0.5},
	}
	assert.NotPanics(t, func() { sortByScoreDesc(rows) })
}

func TestNodePropertiesIncludesProcessingAndFlagFields(t *testing.T) {
	n := &graphmodel.Node{
		ID: "n1", Name: "f", Path: "/repo/a.py", Identifier: "/repo/a.py::f:1",
		StartLine: 1, EndLine: 2, Layer: graphmodel.LayerCode, ParentID: "p1",
		EntityID: "e1", RepoID: "r1", Language: "python", Signature: "def f():",
		ProcessingStatus: graphmodel.StatusPending, CycleMember: true, ErrorFlag: false,
		DiffMarker: "added",
	}
	props := nodeProperties(n)

	assert.Equal(t, "n1", props["id"])
	assert.Equal(t, "pending", props["processing_status"])
	assert.Equal(t, true, props["cycle_member"])
	assert.Equal(t, "added", props["diff_marker"])
	assert.Equal(t, "python", props["language"])
}

func TestEdgePropertiesMergesExtraProperties(t *testing.T) {
	e := &graphmodel.Edge{
		ScopeText: "scope", SourceLine: 3, SourceColumn: 4, StepOrder: 1, Depth: 2,
		Properties: map[string]any{"alias": "foo"},
	}
	props := edgeProperties(e)

	assert.Equal(t, "scope", props["scope_text"])
	assert.Equal(t, "foo", props["alias"])
	assert.Equal(t, 1, props["step_order"])
}
