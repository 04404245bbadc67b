package graphstore

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && identifierPattern.MatchString(s)
}

// buildUnwindMergeNodes builds one UNWIND-driven MERGE statement covering an
// entire batch of same-kind nodes in a single round trip, adapted from the
// teacher's BatchNodeCreator.CreateFunctionNodes/CreateClassNodes (spec §2.2:
// "UNWIND-based batch upsert transactions for writes"). Every row in the
// $rows parameter is a node-properties map produced by nodeProperties, so no
// user-controlled value ever reaches the query text itself; label is one of
// this schema's fixed NodeKind constants, never user input, but is still
// validated defensively the same way the teacher validates dynamic labels.
func buildUnwindMergeNodes(label string) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %q", label)
	}
	return fmt.Sprintf("UNWIND $rows AS row MERGE (n:%s {id: row.id}) SET n += row", label), nil
}

// buildUnwindMergeEdges builds one UNWIND-driven MERGE statement covering an
// entire batch of same-kind edges, adapted from the teacher's
// CreateEdgesBatch/createEdgesBatchByType. Unlike the teacher, this schema's
// nodes share one `id` property across every label instead of a per-label
// unique key, so the teacher's `WHERE edge.from_label IN labels(from) AND
// from[edge.from_key] = edge.from_id` dynamic lookup collapses to a plain
// `{id: row.from_id}` match. Each row is {from_id, to_id, props}.
func buildUnwindMergeEdges(kind string) (string, error) {
	if !isValidIdentifier(kind) {
		return "", fmt.Errorf("invalid edge kind: %q", kind)
	}
	return fmt.Sprintf(
		"UNWIND $rows AS row MATCH (from {id: row.from_id}) MATCH (to {id: row.to_id}) MERGE (from)-[r:%s]->(to) SET r += row.props",
		kind,
	), nil
}
