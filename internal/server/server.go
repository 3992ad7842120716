// Package server exposes the detector over HTTP: a client posts a run
// description, waits for the bounded run to finish and gets the reports back.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amartya2002/flake-detector/flake"
)

type RunRequest struct {
	Endpoints       []string `json:"endpoints" binding:"required,min=1"`
	Queries         []string `json:"queries,omitempty"`
	DurationSecs    int      `json:"duration_secs,omitempty"`
	Concurrency     int      `json:"concurrency,omitempty"`
	TimeoutSecs     int      `json:"timeout_secs,omitempty"`
	ParallelQueries bool     `json:"parallel_queries,omitempty"`
}

type Run struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Reports   []flake.EndpointReport `json:"reports"`
}

type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Endpoints []string  `json:"endpoints"`
	Worst     float64   `json:"worst_flakiness_score"`
}

type Config struct {
	// MaxDuration bounds the duration a client may request per query.
	MaxDuration time.Duration
	// MaxRunTime bounds the wall time of one run: the per-query duration
	// times the number of query batches that run back to back.
	MaxRunTime time.Duration
	// Retention is the number of finished runs kept in memory.
	Retention int
	// Base options applied to every detector before request overrides.
	Base []flake.Option
}

type Server struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	runs  map[string]Run
	order []string
}

func New(cfg Config, logger *zap.Logger) *Server {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 5 * time.Minute
	}
	if cfg.MaxRunTime <= 0 {
		cfg.MaxRunTime = 15 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger, runs: make(map[string]Run)}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.POST("/runs", s.createRun)
	r.GET("/runs", s.listRuns)
	r.GET("/runs/:id", s.getRun)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func (s *Server) createRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duration := time.Duration(req.DurationSecs) * time.Second
	if duration > s.cfg.MaxDuration {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration exceeds server limit of " + s.cfg.MaxDuration.String()})
		return
	}

	opts := append([]flake.Option{}, s.cfg.Base...)
	opts = append(opts, flake.WithLogger(s.logger))
	if duration > 0 {
		opts = append(opts, flake.WithDuration(duration))
	}
	if req.Concurrency > 0 {
		opts = append(opts, flake.WithWorkers(req.Concurrency))
	}
	if req.TimeoutSecs > 0 {
		opts = append(opts, flake.WithTimeout(time.Duration(req.TimeoutSecs)*time.Second))
	}
	if req.ParallelQueries {
		opts = append(opts, flake.WithParallelQueries(true))
	}

	names := req.Queries
	if len(names) == 0 {
		names = flake.DefaultQueries
	}
	queries := flake.QueriesFromNames(names)

	det := flake.New(opts...)
	if est := estimateRunTime(det, len(req.Endpoints), queries, req.ParallelQueries); est > s.cfg.MaxRunTime {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run would take " + est.String() + ", server limit is " + s.cfg.MaxRunTime.String()})
		return
	}

	reports, err := det.Run(c.Request.Context(), req.Endpoints, queries)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, flake.ErrConfiguration) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	run := Run{ID: reports[0].RunID, CreatedAt: time.Now().UTC(), Reports: reports}
	s.save(run)

	c.JSON(http.StatusCreated, run)
}

func (s *Server) listRuns(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunSummary, 0, len(s.order))
	for _, id := range s.order {
		run := s.runs[id]
		sum := RunSummary{ID: run.ID, CreatedAt: run.CreatedAt}
		for _, r := range run.Reports {
			sum.Endpoints = append(sum.Endpoints, r.Endpoint)
			if r.FlakinessScore > sum.Worst {
				sum.Worst = r.FlakinessScore
			}
		}
		out = append(out, sum)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getRun(c *gin.Context) {
	s.mu.Lock()
	run, ok := s.runs[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// estimateRunTime is the wall time of a run with endpoints probed one after
// another. With parallel queries each endpoint costs its longest query.
func estimateRunTime(det *flake.Detector, endpoints int, queries []flake.Query, parallel bool) time.Duration {
	var perEndpoint time.Duration
	for _, q := range queries {
		d := det.PlanFor(q).Duration
		if parallel {
			if d > perEndpoint {
				perEndpoint = d
			}
			continue
		}
		perEndpoint += d
	}
	return perEndpoint * time.Duration(endpoints)
}

// save stores run and evicts the oldest ones beyond the retention cap.
func (s *Server) save(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	if len(s.order) > s.cfg.Retention {
		for _, id := range s.order[:len(s.order)-s.cfg.Retention] {
			delete(s.runs, id)
		}
		s.order = s.order[len(s.order)-s.cfg.Retention:]
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
