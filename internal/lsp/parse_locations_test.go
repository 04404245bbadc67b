package lsp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLocationsHandlesSingleLocationObject(t *testing.T) {
	raw := json.RawMessage(`{"uri":"file:///a.py","range":{"start":{"line":3,"character":5}}}`)
	locs := parseLocations(raw)
	assert.Equal(t, []Location{{URI: "file:///a.py", Line: 3, Character: 5}}, locs)
}

func TestParseLocationsHandlesLocationArray(t *testing.T) {
	raw := json.RawMessage(`[{"uri":"file:///a.py","range":{"start":{"line":1,"character":0}}},{"uri":"file:///b.py","range":{"start":{"line":2,"character":4}}}]`)
	locs := parseLocations(raw)
	assert.Equal(t, []Location{
		{URI: "file:///a.py", Line: 1, Character: 0},
		{URI: "file:///b.py", Line: 2, Character: 4},
	}, locs)
}

func TestParseLocationsHandlesNullAndEmpty(t *testing.T) {
	assert.Nil(t, parseLocations(json.RawMessage(`null`)))
	assert.Nil(t, parseLocations(json.RawMessage(``)))
}

func TestParseLocationsOfEmptyArrayReturnsEmptySlice(t *testing.T) {
	locs := parseLocations(json.RawMessage(`[]`))
	assert.Empty(t, locs)
}

func TestParseLocationsOfGarbageReturnsNil(t *testing.T) {
	assert.Nil(t, parseLocations(json.RawMessage(`"not a location"`)))
}
