package flake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Config is a run description loaded from a file. Zero values leave the
// detector defaults untouched.
type Config struct {
	Endpoints         []string
	Queries           []Query
	Workers           int
	Duration          time.Duration
	Timeout           time.Duration
	Interval          time.Duration
	ParallelQueries   bool
	ParallelEndpoints bool
	MaxWorkers        int
	Output            string
	LogFile           string
}

// Options turns the file settings into detector options.
func (cfg *Config) Options() []Option {
	var opts []Option
	if cfg.Workers > 0 {
		opts = append(opts, WithWorkers(cfg.Workers))
	}
	if cfg.Duration > 0 {
		opts = append(opts, WithDuration(cfg.Duration))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.Interval > 0 {
		opts = append(opts, WithInterval(cfg.Interval))
	}
	if cfg.MaxWorkers > 0 {
		opts = append(opts, WithMaxWorkers(cfg.MaxWorkers))
	}
	if cfg.ParallelQueries {
		opts = append(opts, WithParallelQueries(true))
	}
	if cfg.ParallelEndpoints {
		opts = append(opts, WithParallelEndpoints(true))
	}
	if cfg.LogFile != "" {
		opts = append(opts, LogFile(cfg.LogFile))
	}
	return opts
}

// fileConfig mirrors the on-disk layout. Durations are seconds, the probe
// interval is milliseconds.
type fileConfig struct {
	Endpoints         []string    `yaml:"endpoints" toml:"endpoints"`
	Queries           []fileQuery `yaml:"queries" toml:"queries"`
	Concurrency       int         `yaml:"concurrency" toml:"concurrency"`
	Duration          float64     `yaml:"duration" toml:"duration"`
	Timeout           float64     `yaml:"timeout" toml:"timeout"`
	IntervalMs        int         `yaml:"interval_ms" toml:"interval_ms"`
	ParallelQueries   bool        `yaml:"parallel_queries" toml:"parallel_queries"`
	ParallelEndpoints bool        `yaml:"parallel_endpoints" toml:"parallel_endpoints"`
	MaxWorkers        int         `yaml:"max_workers" toml:"max_workers"`
	Output            string      `yaml:"output" toml:"output"`
	LogFile           string      `yaml:"log_file" toml:"log_file"`
}

// fileQuery accepts either a bare name or a table with overrides.
type fileQuery struct {
	Name     string  `yaml:"name"`
	Path     string  `yaml:"path"`
	Workers  int     `yaml:"workers"`
	Duration float64 `yaml:"duration"`
	Timeout  float64 `yaml:"timeout"`
}

func (q *fileQuery) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		q.Name = n.Value
		return nil
	}
	type plain fileQuery
	return n.Decode((*plain)(q))
}

func (q *fileQuery) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		q.Name = v
		return nil
	case map[string]interface{}:
		q.Name, _ = v["name"].(string)
		q.Path, _ = v["path"].(string)
		if n, ok := v["workers"].(int64); ok {
			q.Workers = int(n)
		}
		q.Duration = tomlNumber(v["duration"])
		q.Timeout = tomlNumber(v["timeout"])
		return nil
	}
	return fmt.Errorf("query must be a string or a table, got %T", data)
}

func tomlNumber(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func tomlDecode(data []byte, v interface{}) (toml.MetaData, error) {
	return toml.Decode(string(data), v)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadConfig reads a YAML (.yaml, .yml, .json) or TOML (.toml) run
// description and checks it against the config schema.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	isTOML := strings.ToLower(filepath.Ext(filePath)) == ".toml"

	var doc interface{}
	if isTOML {
		var m map[string]interface{}
		if _, err := tomlDecode(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		doc = m
	} else if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	if err := validateConfigDoc(doc); err != nil {
		return nil, err
	}

	var fc fileConfig
	if isTOML {
		if _, err := tomlDecode(data, &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	cfg := &Config{
		Endpoints:         fc.Endpoints,
		Workers:           fc.Concurrency,
		Duration:          seconds(fc.Duration),
		Timeout:           seconds(fc.Timeout),
		Interval:          time.Duration(fc.IntervalMs) * time.Millisecond,
		ParallelQueries:   fc.ParallelQueries,
		ParallelEndpoints: fc.ParallelEndpoints,
		MaxWorkers:        fc.MaxWorkers,
		Output:            fc.Output,
		LogFile:           fc.LogFile,
	}
	for _, q := range fc.Queries {
		cfg.Queries = append(cfg.Queries, Query{
			Name:     q.Name,
			Path:     q.Path,
			Workers:  q.Workers,
			Duration: seconds(q.Duration),
			Timeout:  seconds(q.Timeout),
		})
	}
	return cfg, nil
}

func validateConfigDoc(doc interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return &ConfigError{Field: "config", Reason: strings.Join(errs, "; ")}
}

// QueriesFromNames builds plain queries from a list of route names.
func QueriesFromNames(names []string) []Query {
	qs := make([]Query, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			qs = append(qs, Query{Name: n})
		}
	}
	return qs
}

const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "endpoints": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "queries": {
      "type": "array",
      "items": {
        "oneOf": [
          {"type": "string", "minLength": 1},
          {
            "type": "object",
            "required": ["name"],
            "additionalProperties": false,
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "path": {"type": "string"},
              "workers": {"type": "integer", "minimum": 0},
              "duration": {"type": "number", "minimum": 0},
              "timeout": {"type": "number", "minimum": 0}
            }
          }
        ]
      }
    },
    "concurrency": {"type": "integer", "minimum": 0},
    "duration": {"type": "number", "minimum": 0},
    "timeout": {"type": "number", "minimum": 0},
    "interval_ms": {"type": "integer", "minimum": 0},
    "parallel_queries": {"type": "boolean"},
    "parallel_endpoints": {"type": "boolean"},
    "max_workers": {"type": "integer", "minimum": 0},
    "output": {"type": "string"},
    "log_file": {"type": "string"}
  }
}`
