// Package graphstore persists a graphmodel.Graph to an external graph
// database (spec §4.8, §6.4): upsert nodes/edges, detach-delete by file
// path, and run read queries, all scoped by (entity_id, repo_id).
//
// Adapted from the teacher's internal/graph/neo4j_backend.go: the same
// "idempotent MERGE + parameterized query" shape, but keyed on this
// repository's single `id` property per node (every node id is already a
// collision-resistant hash, spec §3.1) instead of per-label unique keys,
// since this graph has one schema-wide identity convention rather than one
// per entity type.
package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/graphmodel"
)

// Store is the persistence contract every ingest phase writes through.
// entity_id/repo_id follow the reserved-parameter rule from spec §6.4:
// repo_id=nil on a read means "entity-wide", repo_id=nil on a write is a
// fatal InvalidScope error.
type Store interface {
	UpsertNodes(ctx context.Context, nodes []*graphmodel.Node) error
	UpsertEdges(ctx context.Context, edges []*graphmodel.Edge) error
	DetachDeleteByPath(ctx context.Context, entityID, repoID, path string) error
	Query(ctx context.Context, cypher string, params map[string]any, entityID string, repoID *string) ([]map[string]any, error)
	Close(ctx context.Context) error

	// Required read queries (spec §6.1), backing the Bottom-Up Batch
	// Processor's store-persisted processing-status bookkeeping.
	InitializeProcessing(ctx context.Context, entityID, repoID string) error
	GetProcessableNodes(ctx context.Context, entityID, repoID string, batchSize int) ([]map[string]any, error)
	MarkProcessingStatus(ctx context.Context, entityID, repoID, nodeID, status string) error
	CleanupProcessing(ctx context.Context, entityID, repoID string) error
	DetectFunctionCycles(ctx context.Context, entityID, repoID, nodeID string) ([][]string, error)
}

// Neo4jStore is the Store implementation backed by the Neo4j Go driver.
type Neo4jStore struct {
	driver     neo4j.DriverWithContext
	database   string
	batchSizes BatchSizes
}

// NewNeo4jStore connects to uri and verifies connectivity before returning.
func NewNeo4jStore(ctx context.Context, uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, blarerrors.StoreErrorOf(err, "create neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, blarerrors.StoreErrorOf(err, "connect to neo4j")
	}
	return &Neo4jStore{driver: driver, database: database, batchSizes: DefaultBatchSizes()}, nil
}

// WithBatchSizes overrides the UNWIND chunk sizes used by UpsertNodes and
// UpsertEdges, e.g. for a SmallRepoBatchConfig-style profile on a small
// ingest or a larger one for a bulk initial build.
func (s *Neo4jStore) WithBatchSizes(sizes BatchSizes) *Neo4jStore {
	s.batchSizes = sizes
	return s
}

// UpsertNodes merges nodes by id, grouped by Kind and UNWOUND into one
// MERGE statement per batch (spec §2.2), adapted from the teacher's
// BatchNodeCreator.CreateFunctionNodes/CreateClassNodes. Grouping by kind
// keeps every row in a given UNWIND homogeneous in its label, mirroring the
// teacher's per-node-type batch methods.
func (s *Neo4jStore) UpsertNodes(ctx context.Context, nodes []*graphmodel.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	byKind := make(map[graphmodel.NodeKind][]map[string]any)
	for _, n := range nodes {
		if n.EntityID == "" || n.RepoID == "" {
			return blarerrors.InvalidScopeError(fmt.Sprintf("node %s missing entity_id/repo_id on write", n.ID))
		}
		byKind[n.Kind] = append(byKind[n.Kind], nodeProperties(n))
	}
	for kind, rows := range byKind {
		cypher, err := buildUnwindMergeNodes(string(kind))
		if err != nil {
			return blarerrors.StoreErrorOf(err, "build node upsert")
		}
		for _, chunk := range chunkMaps(rows, s.batchSizes.NodeBatchSize) {
			if err := s.runBatch(ctx, []queryWithParams{{cypher: cypher, params: map[string]any{"rows": chunk}}}); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpsertEdges merges edges by (from, to, kind), grouped by Kind and UNWOUND
// into one MERGE statement per batch, adapted from the teacher's
// CreateEdgesBatch/createEdgesBatchByType. Edges carry no entity_id/repo_id,
// so no scope check is made here and no InvalidScope error is returned;
// endpoints are matched by node id alone.
func (s *Neo4jStore) UpsertEdges(ctx context.Context, edges []*graphmodel.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	byKind := make(map[graphmodel.EdgeKind][]map[string]any)
	for _, e := range edges {
		byKind[e.Kind] = append(byKind[e.Kind], map[string]any{
			"from_id": e.FromID, "to_id": e.ToID, "props": edgeProperties(e),
		})
	}
	for kind, rows := range byKind {
		cypher, err := buildUnwindMergeEdges(string(kind))
		if err != nil {
			return blarerrors.StoreErrorOf(err, "build edge upsert")
		}
		for _, chunk := range chunkMaps(rows, s.batchSizes.EdgeBatchSize) {
			if err := s.runBatch(ctx, []queryWithParams{{cypher: cypher, params: map[string]any{"rows": chunk}}}); err != nil {
				return err
			}
		}
	}
	return nil
}

// DetachDeleteByPath removes every node whose path property equals path
// within (entityID, repoID), together with its incident edges (spec §4.6
// step 1). repoID must be non-empty: a scope-less delete is refused rather
// than silently deleting across every repo sharing entityID.
func (s *Neo4jStore) DetachDeleteByPath(ctx context.Context, entityID, repoID, path string) error {
	if entityID == "" || repoID == "" {
		return blarerrors.InvalidScopeError("detach_delete_by_path requires non-empty entity_id and repo_id")
	}
	cypher := "MATCH (n {path: $path, entity_id: $entity_id, repo_id: $repo_id}) DETACH DELETE n"
	params := map[string]any{"path": path, "entity_id": entityID, "repo_id": repoID}
	_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return blarerrors.StoreErrorOf(err, fmt.Sprintf("detach_delete_by_path %s", path))
	}
	return nil
}

// Query runs a read-only Cypher statement scoped to entityID and, if repoID
// is non-nil, to that repo; a nil repoID on a read is entity-wide by design
// (spec §6.4 Open Question resolution).
func (s *Neo4jStore) Query(ctx context.Context, cypher string, params map[string]any, entityID string, repoID *string) ([]map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	params["entity_id"] = entityID
	if repoID != nil {
		params["repo_id"] = *repoID
	} else {
		params["repo_id"] = nil
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, blarerrors.StoreErrorOf(err, "query")
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		row := make(map[string]any, len(rec.Keys))
		for _, k := range rec.Keys {
			if v, ok := rec.Get(k); ok {
				row[k] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close releases the underlying driver connection pool.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

type queryWithParams struct {
	cypher string
	params map[string]any
}

// runBatch executes queries inside a single write transaction, matching the
// teacher's ExecuteBatchWithParams transaction shape.
func (s *Neo4jStore) runBatch(ctx context.Context, queries []queryWithParams) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for i, q := range queries {
			if _, err := tx.Run(ctx, q.cypher, q.params); err != nil {
				return nil, fmt.Errorf("batch statement %d: %w", i, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return blarerrors.StoreErrorOf(err, "execute batch")
	}
	return nil
}

func nodeProperties(n *graphmodel.Node) map[string]any {
	return map[string]any{
		"id": n.ID, "name": n.Name, "path": n.Path, "identifier": n.Identifier,
		"start_line": n.StartLine, "end_line": n.EndLine, "layer": string(n.Layer),
		"parent_id": n.ParentID, "entity_id": n.EntityID, "repo_id": n.RepoID,
		"language": n.Language, "signature": n.Signature,
		"processing_status": string(n.ProcessingStatus), "cycle_member": n.CycleMember,
		"error_flag": n.ErrorFlag, "diff_marker": n.DiffMarker,
	}
}

func edgeProperties(e *graphmodel.Edge) map[string]any {
	props := map[string]any{
		"scope_text": e.ScopeText, "source_line": e.SourceLine,
		"source_column": e.SourceColumn, "step_order": e.StepOrder, "depth": e.Depth,
	}
	for k, v := range e.Properties {
		props[k] = v
	}
	return props
}
