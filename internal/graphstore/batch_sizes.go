package graphstore

// BatchSizes controls how many UNWIND rows a single write transaction
// carries per call (spec §2.2: UNWIND-based batch upserts). Adapted from
// the teacher's internal/graph/batch_config.go DefaultBatchConfig, collapsed
// from the teacher's one-field-per-node-type shape down to one size for
// structural nodes and one for edges: this schema has far fewer node kinds
// than the teacher's commit/developer/incident taxonomy, and none of them
// carry properties heavy enough to need their own tuning.
type BatchSizes struct {
	NodeBatchSize int
	EdgeBatchSize int
}

// DefaultBatchSizes mirrors the teacher's DefaultBatchConfig figures for a
// medium-sized repository.
func DefaultBatchSizes() BatchSizes {
	return BatchSizes{NodeBatchSize: 1000, EdgeBatchSize: 5000}
}

func chunkMaps(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = len(rows)
		if size == 0 {
			return nil
		}
	}
	var chunks [][]map[string]any
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[i:end])
	}
	return chunks
}
