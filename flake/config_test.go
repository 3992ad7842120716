package flake

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
endpoints:
  - http://node-a:26657
  - https://rpc.example.com
queries:
  - health
  - name: block
    path: block?height=1
    workers: 3
    duration: 2.5
    timeout: 1
concurrency: 6
duration: 30
timeout: 4
interval_ms: 250
parallel_queries: true
max_workers: 64
output: report.json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://node-a:26657", "https://rpc.example.com"}, cfg.Endpoints)
	require.Len(t, cfg.Queries, 2)
	assert.Equal(t, Query{Name: "health"}, cfg.Queries[0])
	assert.Equal(t, Query{Name: "block", Path: "block?height=1", Workers: 3, Duration: 2500 * time.Millisecond, Timeout: time.Second}, cfg.Queries[1])
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, 4*time.Second, cfg.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.True(t, cfg.ParallelQueries)
	assert.False(t, cfg.ParallelEndpoints)
	assert.Equal(t, 64, cfg.MaxWorkers)
	assert.Equal(t, "report.json", cfg.Output)

	d := New(append(cfg.Options(), DisableLogs())...)
	p := d.PlanFor(cfg.Queries[0])
	assert.Equal(t, Plan{Workers: 6, Duration: 30 * time.Second, Timeout: 4 * time.Second, Interval: 250 * time.Millisecond}, p)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "run.json", `{"endpoints": ["http://node:26657"], "queries": ["status"], "duration": 5}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []Query{{Name: "status"}}, cfg.Queries)
	assert.Equal(t, 5*time.Second, cfg.Duration)
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "run.toml", `
endpoints = ["http://node-a:26657"]
concurrency = 4
duration = 1.5
interval_ms = 50
parallel_endpoints = true

[[queries]]
name = "health"

[[queries]]
name = "block"
path = "block?height=1"
workers = 2
timeout = 2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://node-a:26657"}, cfg.Endpoints)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration)
	assert.Equal(t, 50*time.Millisecond, cfg.Interval)
	assert.True(t, cfg.ParallelEndpoints)
	require.Len(t, cfg.Queries, 2)
	assert.Equal(t, "health", cfg.Queries[0].Name)
	assert.Equal(t, Query{Name: "block", Path: "block?height=1", Workers: 2, Timeout: 2 * time.Second}, cfg.Queries[1])
}

func TestLoadConfigTOMLStringQueries(t *testing.T) {
	path := writeConfig(t, "run.toml", `
endpoints = ["http://node-a:26657"]
queries = ["health", "status"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, QueriesFromNames([]string{"health", "status"}), cfg.Queries)
}

func TestLoadConfigSchemaViolations(t *testing.T) {
	tests := map[string]string{
		"unknown key":        "endpoints: [http://a]\nbogus: 1\n",
		"negative workers":   "concurrency: -1\n",
		"wrong type":         "duration: soon\n",
		"query without name": "queries:\n  - path: /health\n",
		"empty endpoint":     "endpoints: ['']\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "bad.yaml", body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Endpoints)
	assert.Empty(t, cfg.Options())
}

func TestQueriesFromNames(t *testing.T) {
	assert.Equal(t, []Query{{Name: "health"}, {Name: "status"}}, QueriesFromNames([]string{" health", "", "status "}))
}
