package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-sample-plates-report/internal/config"
	"go-sample-plates-report/internal/connectors/samples"
	"go-sample-plates-report/internal/platedata"
	"go-sample-plates-report/internal/report"
)

// LivePath is where report pages open their websocket.
const LivePath = "/api/v1/live"

var errNotLoaded = errors.New("dataset not loaded")

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer *nethttp.Server
	source     samples.Source
	catalog    *catalog
	hub        *liveHub
	logger     zerolog.Logger
}

// catalog holds the most recently loaded dataset and the coverage derived
// from it. Requests read a snapshot; a reload swaps both at once.
type catalog struct {
	source samples.Source

	mu       sync.RWMutex
	dataset  *platedata.Dataset
	coverage report.CoverageReport
	loadedAt time.Time
}

func newCatalog(source samples.Source) *catalog {
	return &catalog{source: source}
}

// Load reads the dataset from the source and replaces the current snapshot.
func (c *catalog) Load(ctx context.Context) (*platedata.Dataset, error) {
	start := time.Now()
	ds, err := c.source.LoadDataset(ctx)
	recordDBQuery(c.source.Kind(), "LoadDataset", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	cov := report.BuildCoverage(ds.Taxa)

	c.mu.Lock()
	c.dataset = ds
	c.coverage = cov
	c.loadedAt = time.Now()
	c.mu.Unlock()
	return ds, nil
}

type snapshot struct {
	Dataset  *platedata.Dataset
	Coverage report.CoverageReport
	LoadedAt time.Time
}

func (c *catalog) Snapshot() (snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dataset == nil {
		return snapshot{}, errNotLoaded
	}
	return snapshot{Dataset: c.dataset, Coverage: c.coverage, LoadedAt: c.loadedAt}, nil
}

// NewServer creates a configured HTTP server with v1 endpoints. A dataset
// that fails to load at startup leaves the server up but not ready.
func NewServer(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	layout, err := report.LoadLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}
	source, err := samples.OpenSource(cfg, layout.Schema())
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.DataSource, err)
	}

	cat := newCatalog(source)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnTimeout+cfg.DBQueryTimeout)
	defer cancel()
	if ds, err := cat.Load(ctx); err != nil {
		logger.Warn().Err(err).Str("source", source.Kind()).Msg("initial dataset load failed")
	} else {
		logger.Info().Str("source", source.Kind()).Int("plates", len(ds.Plates)).Int("wells", ds.WellCount()).Msg("dataset loaded")
	}

	hub := newLiveHub(cfg, logger)
	httpServer := &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      loggingMiddleware(logger, observabilityMiddleware(routes(cat, layout, hub, logger))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{httpServer: httpServer, source: source, catalog: cat, hub: hub, logger: logger}, nil
}

func routes(cat *catalog, layout report.Layout, hub *liveHub, logger zerolog.Logger) *nethttp.ServeMux {
	var source samples.Source
	if cat != nil {
		source = cat.source
	}

	mux := nethttp.NewServeMux()
	mux.HandleFunc("/", reportPageHandler(cat, layout))
	mux.HandleFunc("/report.html", printPageHandler(cat, layout))
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(cat))
	mux.HandleFunc("/api/v1/plates", platesHandler(cat, layout))
	mux.HandleFunc("/api/v1/plates/table", plateTableHandler(cat, layout))
	mux.HandleFunc("/api/v1/coverage", coverageHandler(cat))
	mux.HandleFunc("/api/v1/layout", layoutHandler(layout))
	mux.HandleFunc("/api/v1/export.xlsx", exportHandler(cat, layout))
	mux.HandleFunc("/api/v1/status/source", sourceStatusHandler(source))
	mux.HandleFunc("/api/v1/reload", reloadHandler(cat, logger))
	mux.HandleFunc(LivePath, hub.handler(cat, layout))
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, closes live sessions and
// releases the data source.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.CloseAll()
	if s.source != nil {
		if cerr := s.source.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("close data source")
		}
	}
	return err
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(cat *catalog) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if cat == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{"status": "no data source"})
			return
		}
		snap, err := cat.Snapshot()
		if err != nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{"status": "loading"})
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"status":    "ready",
			"loaded_at": snap.LoadedAt.UTC(),
		})
	}
}

func loggingMiddleware(logger zerolog.Logger, next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
