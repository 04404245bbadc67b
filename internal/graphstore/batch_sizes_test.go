package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBatchSizesMatchesTeacherFigures(t *testing.T) {
	s := DefaultBatchSizes()
	assert.Equal(t, 1000, s.NodeBatchSize)
	assert.Equal(t, 5000, s.EdgeBatchSize)
}

func TestChunkMapsSplitsIntoEvenChunksWithRemainder(t *testing.T) {
	rows := make([]map[string]any, 7)
	for i := range rows {
		rows[i] = map[string]any{"i": i}
	}

	chunks := chunkMaps(rows, 3)
	require := assert.New(t)
	require.Len(chunks, 3)
	require.Len(chunks[0], 3)
	require.Len(chunks[1], 3)
	require.Len(chunks[2], 1)
}

func TestChunkMapsTreatsNonPositiveSizeAsOneChunk(t *testing.T) {
	rows := []map[string]any{{"a": 1}, {"b": 2}}
	chunks := chunkMaps(rows, 0)
	assert.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 2)
}

func TestChunkMapsOfEmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, chunkMaps(nil, 10))
	assert.Nil(t, chunkMaps(nil, 0))
}
