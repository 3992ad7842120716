package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amartya2002/flake-detector/flake"
	"github.com/amartya2002/flake-detector/internal/export"
	"github.com/amartya2002/flake-detector/internal/render"
	"github.com/amartya2002/flake-detector/internal/server"
)

const version = "v0.1.0"

const (
	exitRuntime = 1
	exitInvalid = 2
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func main() {
	root := newRootCommand(os.Stdout)
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntime)
	}
}

type runFlags struct {
	configPath        string
	endpoints         []string
	queries           []string
	duration          int
	concurrency       int
	timeout           int
	intervalMs        int
	maxWorkers        int
	parallelQueries   bool
	parallelEndpoints bool
	output            string
	logLevel          string
	logFile           string
	logConsole        bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	f := &runFlags{}
	root := &cobra.Command{
		Use:           "flakedetector",
		Short:         "Detect flaky RPC endpoints with query-specific load testing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDetect(cmd, f, out)
		},
	}

	fs := root.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML or TOML run description")
	fs.StringSliceVarP(&f.endpoints, "endpoints", "e", nil, "Comma-separated list of RPC endpoints to test")
	fs.StringSliceVarP(&f.queries, "queries", "q", flake.DefaultQueries, "Comma-separated list of RPC queries to test")
	fs.IntVarP(&f.duration, "duration", "d", 60, "Test duration per query in seconds")
	fs.IntVarP(&f.concurrency, "concurrency", "c", 10, "Concurrent workers per query")
	fs.IntVarP(&f.timeout, "timeout", "t", 5, "Request timeout in seconds")
	fs.IntVar(&f.intervalMs, "interval-ms", 100, "Pause between two requests of one worker")
	fs.IntVar(&f.maxWorkers, "max-workers", 1000, "Upper bound on simultaneously active workers")
	fs.BoolVar(&f.parallelQueries, "parallel-queries", false, "Probe all queries of an endpoint at once")
	fs.BoolVar(&f.parallelEndpoints, "parallel-endpoints", false, "Probe all endpoints at once")
	fs.StringVarP(&f.output, "output", "o", "", "Output JSON file path (optional)")
	fs.StringVar(&f.logLevel, "log-level", "error", "Structured log level: none, error, info, debug")
	fs.StringVar(&f.logFile, "log-file", "", "Write structured logs to this file")
	fs.BoolVar(&f.logConsole, "log-console", false, "Write structured logs to stdout")

	root.AddCommand(newServeCommand())
	return root
}

func runDetect(cmd *cobra.Command, f *runFlags, out io.Writer) error {
	endpoints, queries, opts, err := resolve(cmd, f)
	if err != nil {
		return cliError{code: exitInvalid, err: err}
	}

	printer := render.New(out)
	var printMu sync.Mutex
	opts = append(opts, flake.WithObserver(func(r flake.EndpointReport) {
		printMu.Lock()
		defer printMu.Unlock()
		printer.Endpoint(r)
	}))

	det := flake.New(opts...)
	defer func() { _ = det.Sync() }()

	names := make([]string, len(queries))
	for i, q := range queries {
		names[i] = q.Name
	}
	plan := det.PlanFor(flake.Query{})
	printer.Banner(version)
	printer.Settings(render.Settings{
		Endpoints:   len(endpoints),
		Duration:    plan.Duration,
		Queries:     names,
		Concurrency: plan.Workers,
		Timeout:     plan.Timeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := det.Run(ctx, endpoints, queries)
	if err != nil {
		if errors.Is(err, flake.ErrConfiguration) {
			return cliError{code: exitInvalid, err: err}
		}
		return err
	}
	printer.Summary(reports)

	if f.output != "" {
		if err := export.WriteJSON(f.output, reports); err != nil {
			fmt.Fprintf(out, "\n❌ Failed to write output: %v\n", err)
		} else {
			fmt.Fprintf(out, "\n💾 Results exported to: %s\n", f.output)
		}
	}

	if ctx.Err() != nil {
		fmt.Fprintln(out, "\n⚠ Interrupted: results are partial")
		return nil
	}
	fmt.Fprintln(out, "\n✅ Testing complete!")
	return nil
}

// resolve merges the optional config file with explicitly set flags; flags win.
func resolve(cmd *cobra.Command, f *runFlags) ([]string, []flake.Query, []flake.Option, error) {
	var opts []flake.Option
	var endpoints []string
	var queries []flake.Query

	if f.configPath != "" {
		cfg, err := flake.LoadConfig(f.configPath)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, cfg.Options()...)
		endpoints = cfg.Endpoints
		queries = cfg.Queries
		if f.output == "" {
			f.output = cfg.Output
		}
		if f.logFile == "" {
			f.logFile = cfg.LogFile
		}
	}

	fs := cmd.Flags()
	if fs.Changed("endpoints") || len(endpoints) == 0 {
		endpoints = f.endpoints
	}
	if fs.Changed("queries") || len(queries) == 0 {
		queries = flake.QueriesFromNames(f.queries)
	}
	if fs.Changed("duration") || f.configPath == "" {
		opts = append(opts, flake.WithDuration(time.Duration(f.duration)*time.Second))
	}
	if fs.Changed("concurrency") || f.configPath == "" {
		opts = append(opts, flake.WithWorkers(f.concurrency))
	}
	if fs.Changed("timeout") || f.configPath == "" {
		opts = append(opts, flake.WithTimeout(time.Duration(f.timeout)*time.Second))
	}
	if fs.Changed("interval-ms") || f.configPath == "" {
		opts = append(opts, flake.WithInterval(time.Duration(f.intervalMs)*time.Millisecond))
	}
	if fs.Changed("max-workers") || f.configPath == "" {
		opts = append(opts, flake.WithMaxWorkers(f.maxWorkers))
	}
	if fs.Changed("parallel-queries") {
		opts = append(opts, flake.WithParallelQueries(f.parallelQueries))
	}
	if fs.Changed("parallel-endpoints") {
		opts = append(opts, flake.WithParallelEndpoints(f.parallelEndpoints))
	}

	level, err := parseLogLevel(f.logLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	opts = append(opts, flake.WithLogLevel(level))
	switch {
	case level == flake.LogNone || (!f.logConsole && f.logFile == ""):
		opts = append(opts, flake.DisableLogs())
	default:
		opts = append(opts, flake.LogConsole(f.logConsole))
		if f.logFile != "" {
			opts = append(opts, flake.LogFile(f.logFile))
		}
	}
	return endpoints, queries, opts, nil
}

func parseLogLevel(s string) (flake.LogLevel, error) {
	switch strings.ToLower(s) {
	case "none", "off":
		return flake.LogNone, nil
	case "error":
		return flake.LogError, nil
	case "info":
		return flake.LogInfo, nil
	case "debug":
		return flake.LogDebug, nil
	}
	return 0, &flake.ConfigError{Field: "log-level", Reason: fmt.Sprintf("unknown level %q", s)}
}

func newServeCommand() *cobra.Command {
	var addr string
	var maxDuration, maxRunTime time.Duration
	var retention, maxWorkers int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API that triggers runs on demand",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			gin.SetMode(gin.ReleaseMode)
			srv := server.New(server.Config{
				MaxDuration: maxDuration,
				MaxRunTime:  maxRunTime,
				Retention:   retention,
				Base:        []flake.Option{flake.WithMaxWorkers(maxWorkers)},
			}, logger)

			logger.Info("Server running", zap.String("addr", addr))
			if err := srv.Router().Run(addr); err != nil {
				return fmt.Errorf("start server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 5*time.Minute, "Longest per-query duration a client may request")
	cmd.Flags().DurationVar(&maxRunTime, "max-run-time", 15*time.Minute, "Longest wall time of one run across all endpoints and queries")
	cmd.Flags().IntVar(&retention, "retention", 100, "Number of finished runs kept in memory")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 1000, "Upper bound on simultaneously active workers per run")
	return cmd
}
