package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amartya2002/flake-detector/flake"
)

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	p99 := 88.8
	reports := []flake.EndpointReport{{
		Endpoint:       "http://node:26657",
		P99LatencyMs:   &p99,
		FlakinessScore: 12,
		Queries: []flake.QueryResult{
			{Query: "health", TotalRequests: 3, SuccessCount: 3, Latency: &flake.LatencySummary{P99: 88.8}},
			{Query: "genesis", TotalRequests: 2, FailureCount: 2, Failures: map[string]uint64{"timeout": 2}},
		},
	}}

	require.NoError(t, WriteJSON(path, reports))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "http://node:26657", decoded[0]["endpoint"])
	assert.Equal(t, 88.8, decoded[0]["p99_latency_ms"])

	queries := decoded[0]["queries"].([]any)
	genesis := queries[1].(map[string]any)
	assert.Nil(t, genesis["latency"], "latency must be null when nothing succeeded")
	assert.Equal(t, map[string]any{"timeout": 2.0}, genesis["failures"])
}

func TestWriteJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteJSON(path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestWriteJSONBadPath(t *testing.T) {
	err := WriteJSON(filepath.Join(t.TempDir(), "missing", "out.json"), nil)
	assert.Error(t, err)
}
