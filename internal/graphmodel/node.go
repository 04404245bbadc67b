// Package graphmodel defines the typed property graph produced by the
// hierarchy builder, reference resolver, diff engine and batch processor:
// nodes, edges, the graph environment they are namespaced under, and the
// in-memory arena used to assemble one ingest before it is upserted to the
// store.
package graphmodel

// NodeKind is the label of a graph node.
type NodeKind string

const (
	KindFolder        NodeKind = "Folder"
	KindFile          NodeKind = "File"
	KindClass         NodeKind = "Class"
	KindFunction      NodeKind = "Function"
	KindDocumentation NodeKind = "Documentation"
	KindWorkflow      NodeKind = "Workflow"
	KindIntegration   NodeKind = "Integration"
)

// Layer is the overlay tag carried by every node.
type Layer string

const (
	LayerCode          Layer = "code"
	LayerDocumentation Layer = "documentation"
	LayerWorkflows     Layer = "workflows"
	LayerIntegrations  Layer = "integrations"
)

// ProcessingStatus is the per-node bookkeeping state used by the
// Bottom-Up Batch Processor (spec §3.3.7, §4.7).
type ProcessingStatus string

const (
	StatusUnset      ProcessingStatus = ""
	StatusPending    ProcessingStatus = "pending"
	StatusInProgress ProcessingStatus = "in_progress"
	StatusCompleted  ProcessingStatus = "completed"
)

// Environment namespaces every node and edge produced by one ingest: the
// 4-tuple (entity_id, repo_id, root_path, environment_tag) from the
// glossary. EnvironmentTag distinguishes MAIN from a PR overlay.
type Environment struct {
	EntityID       string
	RepoID         string
	RootPath       string
	EnvironmentTag string // "main" or e.g. "pr-123"
}

// Node is one vertex of the property graph.
type Node struct {
	ID   string
	Kind NodeKind
	Name string

	// Path is the file-URI path this node lives in. For Folder/File nodes
	// this is also the node's own path, and is what DETACH_DELETE_BY_PATH
	// matches on. For Class/Function nodes it is the *containing* file.
	Path string

	// Identifier is the fully-qualified path used to derive the node's
	// hashed id (spec §3.1): for File/Folder it equals Path; for Class and
	// Function it is Path plus a qualified name suffix so that two
	// definitions in the same file never collide.
	Identifier string

	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Layer     Layer
	ParentID  string // empty for the root Folder

	EntityID string
	RepoID   string

	Language string // File nodes only
	Text     string // File: full text. Class/Function: body text.
	Signature string // Class/Function: full source text of the definition

	ProcessingStatus ProcessingStatus
	CycleMember      bool
	ErrorFlag        bool

	// DiffMarker holds one of DIFF_MODIFIED/DIFF_ADDED/DIFF_DELETED when set
	// by the Diff Engine in a PR-overlay environment; empty otherwise.
	DiffMarker string

	Properties map[string]any
}

// NewNode builds a Node with its deterministic id already computed from
// (environment, repo id, identifier, kind).
func NewNode(env Environment, kind NodeKind, path, identifier string, startLine, endLine int) *Node {
	return &Node{
		ID:         NodeID(env.EnvironmentTag, env.RepoID, identifier, string(kind)),
		Kind:       kind,
		Path:       path,
		Identifier: identifier,
		StartLine:  startLine,
		EndLine:    endLine,
		EntityID:   env.EntityID,
		RepoID:     env.RepoID,
		Layer:      LayerCode,
	}
}
