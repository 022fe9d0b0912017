// Package server exposes the dashboard over HTTP: an embedded single page
// plus a JSON API that re-runs the pipeline on every request.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/KaramelBytes/trialdash/internal/dashboard"
	"github.com/KaramelBytes/trialdash/internal/export"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Config holds the HTTP settings.
type Config struct {
	Listen      string
	CORSOrigins []string
	// RateLimitPerMinute enables a per-IP limit on the API when positive.
	RateLimitPerMinute int
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that sets those headers.
	TrustProxy bool
	DownloadName       string
	IncludeStartMonth  bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Listen:            ":8501",
		DownloadName:      export.DefaultFileName,
		IncludeStartMonth: true,
	}
}

// Server exposes the dashboard HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	Addr() string
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        Config
	pipeline   *dashboard.Pipeline
	limiter    *rateLimiterMap
	httpServer *http.Server
	addr       string
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a dashboard server over pipeline.
func NewServer(log logrus.FieldLogger, cfg Config, pipeline *dashboard.Pipeline) Server {
	if cfg.DownloadName == "" {
		cfg.DownloadName = export.DefaultFileName
	}
	return &server{
		log:      log.WithField("component", "server"),
		cfg:      cfg,
		pipeline: pipeline,
		done:     make(chan struct{}),
	}
}

// Start loads and cleans the dataset, then starts serving. A dataset that
// cannot be loaded aborts startup.
func (s *server) Start(ctx context.Context) error {
	tbl, err := s.pipeline.Table(ctx)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	datasetRows.Set(float64(tbl.Len()))

	s.httpServer = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}
	s.addr = ln.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.addr).Info("Dashboard server starting")

		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *server) Addr() string { return s.addr }

// Stop gracefully shuts down the HTTP server. Later calls are no-ops.
func (s *server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.WithError(err).Warn("HTTP server shutdown error")
			}
		}

		s.wg.Wait()
		s.log.Info("Dashboard server stopped")
	})
	return nil
}
