package graphmodel

// EdgeKind is the label of a graph edge.
type EdgeKind string

const (
	// Structural
	EdgeContains           EdgeKind = "CONTAINS"
	EdgeFunctionDefinition EdgeKind = "FUNCTION_DEFINITION"
	EdgeClassDefinition    EdgeKind = "CLASS_DEFINITION"

	// Cross-reference
	EdgeCalls       EdgeKind = "CALLS"
	EdgeImports     EdgeKind = "IMPORTS"
	EdgeInherits    EdgeKind = "INHERITS"
	EdgeInstantiates EdgeKind = "INSTANTIATES"
	EdgeTypes       EdgeKind = "TYPES"
	EdgeUses        EdgeKind = "USES"
	EdgeAssigns     EdgeKind = "ASSIGNS"

	// Overlay
	EdgeDescribes           EdgeKind = "DESCRIBES"
	EdgeBelongsToWorkflow   EdgeKind = "BELONGS_TO_WORKFLOW"
	EdgeWorkflowStep        EdgeKind = "WORKFLOW_STEP"
	EdgeModifiedBy          EdgeKind = "MODIFIED_BY"
	EdgeIntegrationSequence EdgeKind = "INTEGRATION_SEQUENCE"

	// Diff overlay
	EdgeDiffModified EdgeKind = "DIFF_MODIFIED"
	EdgeDiffAdded    EdgeKind = "DIFF_ADDED"
	EdgeDiffDeleted  EdgeKind = "DIFF_DELETED"
)

// crossReferenceKinds is the set the glossary calls "cross-reference edges".
var crossReferenceKinds = map[EdgeKind]bool{
	EdgeCalls: true, EdgeImports: true, EdgeInherits: true,
	EdgeInstantiates: true, EdgeTypes: true, EdgeUses: true, EdgeAssigns: true,
}

// IsCrossReference reports whether kind is one of CALLS/IMPORTS/INHERITS/
// INSTANTIATES/TYPES/USES/ASSIGNS.
func IsCrossReference(kind EdgeKind) bool { return crossReferenceKinds[kind] }

// Edge is one directed, typed relationship between two nodes.
type Edge struct {
	FromID string
	ToID   string
	Kind   EdgeKind

	// ScopeText is the short textual context of the source occurrence,
	// required on cross-reference edges (spec §3.2).
	ScopeText string
	SourceLine   int
	SourceColumn int

	// StepOrder/Depth are set on WORKFLOW_STEP edges.
	StepOrder int
	Depth     int

	Properties map[string]any
}
