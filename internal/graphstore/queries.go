package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
)

// dependencyEdgeKinds mirrors internal/batchproc's dependencyKinds: the
// "outgoing dependency" edges a node must see completed before it is
// processable (spec §4.7.1). Duplicated here rather than imported because
// graphstore's read queries run as Cypher strings, not Go graph walks, and
// batchproc depends on graphmodel, not graphstore.
var dependencyEdgeKinds = []string{"CONTAINS", "FUNCTION_DEFINITION", "CLASS_DEFINITION", "CALLS"}

// InitializeProcessing sets processing_status = pending and clears
// cycle_member on every code-layer node in scope, the precondition the
// Bottom-Up Batch Processor's Run loop starts from (spec §6.1, §4.7).
func (s *Neo4jStore) InitializeProcessing(ctx context.Context, entityID, repoID string) error {
	if entityID == "" || repoID == "" {
		return blarerrors.InvalidScopeError("initialize_processing requires non-empty entity_id and repo_id")
	}
	cypher := `MATCH (n {entity_id: $entity_id, repo_id: $repo_id, layer: 'code'})
SET n.processing_status = 'pending', n.cycle_member = false`
	_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
		map[string]any{"entity_id": entityID, "repo_id": repoID},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return blarerrors.StoreErrorOf(err, "initialize_processing")
	}
	return nil
}

// GetProcessableNodes returns up to batchSize nodes that are pending and
// whose every dependency edge (CONTAINS/FUNCTION_DEFINITION/
// CLASS_DEFINITION/CALLS) points at a node that is either completed or a
// known cycle member, mirroring batchproc.processableBatch's in-memory
// predicate as a store-side query (spec §6.1, §4.7.1).
func (s *Neo4jStore) GetProcessableNodes(ctx context.Context, entityID, repoID string, batchSize int) ([]map[string]any, error) {
	if entityID == "" || repoID == "" {
		return nil, blarerrors.InvalidScopeError("get_processable_nodes requires non-empty entity_id and repo_id")
	}
	cypher := `MATCH (n {entity_id: $entity_id, repo_id: $repo_id, processing_status: 'pending'})
WHERE NOT EXISTS {
  MATCH (n)-[r]->(dep)
  WHERE type(r) IN $dep_kinds AND dep.processing_status <> 'completed' AND dep.cycle_member <> true
}
RETURN n LIMIT $batch_size`
	params := map[string]any{
		"entity_id": entityID, "repo_id": repoID,
		"dep_kinds": dependencyEdgeKinds, "batch_size": batchSize,
	}
	return s.Query(ctx, cypher, params, entityID, &repoID)
}

// MarkProcessingStatus sets processing_status on the node identified by
// nodeID. The spec names this query by node_path; it is implemented keyed
// on node id instead, since path is not unique across the Class/Function
// definitions that share a file (see DESIGN.md Open Question decision).
func (s *Neo4jStore) MarkProcessingStatus(ctx context.Context, entityID, repoID, nodeID, status string) error {
	if entityID == "" || repoID == "" {
		return blarerrors.InvalidScopeError("mark_processing_status requires non-empty entity_id and repo_id")
	}
	cypher := `MATCH (n {id: $node_id, entity_id: $entity_id, repo_id: $repo_id}) SET n.processing_status = $status`
	params := map[string]any{"node_id": nodeID, "entity_id": entityID, "repo_id": repoID, "status": status}
	_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return blarerrors.StoreErrorOf(err, "mark_processing_status")
	}
	return nil
}

// CleanupProcessing removes the processing_status and cycle_member
// properties from every node in scope once a batch run completes.
func (s *Neo4jStore) CleanupProcessing(ctx context.Context, entityID, repoID string) error {
	if entityID == "" || repoID == "" {
		return blarerrors.InvalidScopeError("cleanup_processing requires non-empty entity_id and repo_id")
	}
	cypher := `MATCH (n {entity_id: $entity_id, repo_id: $repo_id}) REMOVE n.processing_status, n.cycle_member`
	_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
		map[string]any{"entity_id": entityID, "repo_id": repoID},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return blarerrors.StoreErrorOf(err, "cleanup_processing")
	}
	return nil
}

// maxCycleDepth bounds the variable-length CALLS path DetectFunctionCycles
// searches; an unbounded `*` path pattern on a pathological call graph would
// make the query cost unbounded too.
const maxCycleDepth = 20

// DetectFunctionCycles returns every CALLS path of 1 to maxCycleDepth hops
// that starts and ends at nodeID, each as an ordered slice of node ids
// (spec §6.1, §4.7.1's cycle-break rule). Only relationships are kept
// distinct along a path, so a path may pass through a node more than once.
func (s *Neo4jStore) DetectFunctionCycles(ctx context.Context, entityID, repoID, nodeID string) ([][]string, error) {
	if entityID == "" || repoID == "" {
		return nil, blarerrors.InvalidScopeError("detect_function_cycles requires non-empty entity_id and repo_id")
	}
	cypher := fmt.Sprintf(
		`MATCH path = (n {id: $node_id, entity_id: $entity_id, repo_id: $repo_id})-[:CALLS*1..%d]->(n)
RETURN [x IN nodes(path) | x.id] AS cycle`, maxCycleDepth)
	rows, err := s.Query(ctx, cypher, map[string]any{"node_id": nodeID}, entityID, &repoID)
	if err != nil {
		return nil, err
	}
	cycles := make([][]string, 0, len(rows))
	for _, row := range rows {
		raw, ok := row["cycle"].([]any)
		if !ok {
			continue
		}
		cycle := make([]string, 0, len(raw))
		for _, v := range raw {
			if id, ok := v.(string); ok {
				cycle = append(cycle, id)
			}
		}
		cycles = append(cycles, cycle)
	}
	return cycles, nil
}

// VectorSimilaritySearch queries a Neo4j vector index over Documentation
// node embeddings (spec §6.1's optional overlay query), returning node ids
// and scores for the topK nearest neighbours at or above minSimilarity.
// indexName identifies the vector index created alongside the documentation
// embedding pipeline (spec §4.7.2's description generation is the natural
// place an embedding gets attached to a Documentation node's properties).
func (s *Neo4jStore) VectorSimilaritySearch(ctx context.Context, entityID, repoID string, indexName string, queryEmbedding []float64, topK int, minSimilarity float64) ([]map[string]any, error) {
	if entityID == "" {
		return nil, blarerrors.InvalidScopeError("vector_similarity_search requires a non-empty entity_id")
	}
	cypher := `CALL db.index.vector.queryNodes($index_name, $top_k, $query_embedding) YIELD node, score
WHERE node.entity_id = $entity_id AND ($repo_id IS NULL OR node.repo_id = $repo_id) AND score >= $min_similarity
RETURN node.id AS id, node.name AS name, score
ORDER BY score DESC`
	params := map[string]any{
		"index_name": indexName, "top_k": topK, "query_embedding": queryEmbedding,
		"min_similarity": minSimilarity,
	}
	var repoIDParam *string
	if repoID != "" {
		repoIDParam = &repoID
	}
	return s.Query(ctx, cypher, params, entityID, repoIDParam)
}

// HybridSearch combines VectorSimilaritySearch (when embeddingIndex is
// non-empty and queryEmbedding is provided) with a keyword-relevance pass
// over node name/text/signature, adapted from the teacher's
// internal/graph/semantic_matcher.go SemanticMatcher.CalculateSimilarity
// (Jaccard over extracted keyword sets) trimmed of its issue/PR-specific
// methods: this domain matches source text instead of issue/PR text, but
// the extraction and scoring logic is unchanged. Results are ranked by the
// greater of the two scores per node id and truncated to topK.
func (s *Neo4jStore) HybridSearch(ctx context.Context, entityID, repoID, queryText string, queryEmbedding []float64, embeddingIndex string, topK int) ([]map[string]any, error) {
	if entityID == "" {
		return nil, blarerrors.InvalidScopeError("hybrid_search requires a non-empty entity_id")
	}

	keywordCypher := `MATCH (n {entity_id: $entity_id})
WHERE ($repo_id IS NULL OR n.repo_id = $repo_id) AND (n.name IS NOT NULL OR n.text IS NOT NULL)
RETURN n.id AS id, n.name AS name, n.text AS text, n.signature AS signature
LIMIT 500`
	var repoIDParam *string
	if repoID != "" {
		repoIDParam = &repoID
	}
	rows, err := s.Query(ctx, keywordCypher, map[string]any{}, entityID, repoIDParam)
	if err != nil {
		return nil, err
	}

	matcher := newKeywordMatcher()
	scored := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		text := stringField(row["name"]) + " " + stringField(row["text"]) + " " + stringField(row["signature"])
		score := matcher.similarity(queryText, text)
		if score <= 0 {
			continue
		}
		scored = append(scored, map[string]any{"id": row["id"], "name": row["name"], "score": score})
	}

	if embeddingIndex != "" && len(queryEmbedding) > 0 {
		vectorRows, err := s.VectorSimilaritySearch(ctx, entityID, repoID, embeddingIndex, queryEmbedding, topK, 0)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]map[string]any, len(scored))
		for _, r := range scored {
			if id, ok := r["id"].(string); ok {
				byID[id] = r
			}
		}
		for _, vr := range vectorRows {
			id, _ := vr["id"].(string)
			vscore, _ := vr["score"].(float64)
			if existing, ok := byID[id]; ok {
				if es, _ := existing["score"].(float64); vscore > es {
					existing["score"] = vscore
				}
				continue
			}
			scored = append(scored, vr)
		}
	}

	sortByScoreDesc(scored)
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func sortByScoreDesc(rows []map[string]any) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			a, _ := rows[j]["score"].(float64)
			b, _ := rows[j-1]["score"].(float64)
			if a <= b {
				break
			}
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}
