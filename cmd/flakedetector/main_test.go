package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amartya2002/flake-detector/flake"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(&out)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestInvalidInvocationsExitWithCode2(t *testing.T) {
	tests := map[string][]string{
		"no endpoints":      {"-d", "1"},
		"unknown log level": {"-e", "http://node:26657", "--log-level", "chatty"},
		"bad endpoint":      {"-e", "node:26657/no-scheme", "-d", "1"},
		"zero timeout":      {"-e", "http://node:26657", "-t", "0"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, args...)
			require.Error(t, err)
			var ce cliError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, exitInvalid, ce.code)
		})
	}
}

func TestRunFromConfigFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	output := filepath.Join(dir, "results.json")
	config := filepath.Join(dir, "run.yaml")
	body := fmt.Sprintf(`endpoints: [%q]
queries: [health, status]
concurrency: 2
duration: 0.05
timeout: 1
interval_ms: 5
output: %q
`, srv.URL, output)
	require.NoError(t, os.WriteFile(config, []byte(body), 0o644))

	out, err := execute(t, "--config", config)
	require.NoError(t, err)

	assert.Contains(t, out, "RPC FLAKE DETECTOR")
	assert.Contains(t, out, "Query: health")
	assert.Contains(t, out, "Query: status")
	assert.Contains(t, out, "FLAKINESS DETECTION SUMMARY")
	assert.Contains(t, out, "Results exported to: "+output)
	assert.Contains(t, out, "Testing complete!")

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	var reports []flake.EndpointReport
	require.NoError(t, json.Unmarshal(raw, &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, srv.URL, reports[0].Endpoint)
	require.Len(t, reports[0].Queries, 2)
	assert.Equal(t, 0.0, reports[0].Queries[0].FailureRate)
	assert.Equal(t, 1.0, reports[0].Queries[1].FailureRate)
	assert.Greater(t, reports[0].OverallFailureRate, 0.0)
	assert.Less(t, reports[0].OverallFailureRate, 1.0)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]flake.LogLevel{
		"none": flake.LogNone, "OFF": flake.LogNone, "error": flake.LogError,
		"Info": flake.LogInfo, "debug": flake.LogDebug,
	} {
		got, err := parseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLogLevel("loud")
	assert.ErrorIs(t, err, flake.ErrConfiguration)
}
