package blogsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Server is the read-only reachability monitor. It runs the checker on an
// interval and serves the latest report as HTML and JSON.
type Server struct {
	Echo *echo.Echo

	cfg      Config
	checker  *Checker
	ledger   *Ledger
	gatherer prometheus.Gatherer
	log      zerolog.Logger

	mu     sync.RWMutex
	latest *CheckReport
}

// NewServer wires middleware and routes. ledger and gatherer may be nil.
func NewServer(cfg Config, checker *Checker, ledger *Ledger, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	s := &Server{
		Echo:     echo.New(),
		cfg:      cfg,
		checker:  checker,
		ledger:   ledger,
		gatherer: gatherer,
		log:      log.With().Str("component", "server").Logger(),
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	e := s.Echo
	e.GET("/", s.handleHome)
	e.GET("/healthz", s.handleHealth)
	e.GET("/api/runs/", s.handleRuns)
	e.GET("/api/checks/latest/", s.handleLatestCheck)
	if s.gatherer != nil {
		e.GET("/metrics", metricsHandler(s.gatherer))
	}
}

// RunCheck loads the content directory and checks it once.
func (s *Server) RunCheck(ctx context.Context) (*CheckReport, error) {
	docs, err := LoadDocuments(s.cfg.ContentDir)
	if err != nil && docs == nil {
		return nil, err
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("some documents could not be parsed")
	}
	report := s.checker.Check(ctx, docs)
	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()
	return report, nil
}

// StartMonitor checks immediately and then every interval until ctx is
// done or the returned stop function is called. Stop waits for an
// in-flight check to finish.
func (s *Server) StartMonitor(ctx context.Context, interval time.Duration) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := s.RunCheck(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled check failed")
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("serving reachability report")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

// latestReport prefers the report held in memory and falls back to the
// newest check stored in the ledger.
func (s *Server) latestReport(ctx context.Context) (*CheckReport, error) {
	s.mu.RLock()
	r := s.latest
	s.mu.RUnlock()
	if r != nil {
		return r, nil
	}
	if s.ledger == nil {
		return nil, ErrNotFound
	}
	rec, results, err := s.ledger.LatestCheck(ctx)
	if err != nil {
		return nil, err
	}
	r = &CheckReport{StartedAt: rec.StartedAt, Results: results, Documents: metricsFromResults(results)}
	if rec.FinishedAt != nil {
		r.Duration = rec.FinishedAt.Sub(rec.StartedAt)
	}
	if len(rec.Summary) > 0 {
		if err := json.Unmarshal(rec.Summary, &r.Summary); err != nil {
			return nil, err
		}
	}
	return r, nil
}
