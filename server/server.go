// Package server exposes the unified rental dataset over HTTP: listing
// queries with filters, suburb analytics, and scrape-job control.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"png-rentals/models"
	"png-rentals/pipeline"
	"png-rentals/services"
)

// Runner starts a scrape for a queued job. The server calls it on its own
// goroutine; the runner owns job state transitions from running onward.
type Runner func(job pipeline.Job)

// Server serves the REST API over an in-memory snapshot of the unified
// listings. The snapshot is swapped atomically when a scrape finishes.
type Server struct {
	addr   string
	store  *services.BenchmarkStore
	jobs   *pipeline.JobStore
	runner Runner
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	listings []*models.Listing
}

// New creates a Server. The runner may be nil, in which case the scrape
// trigger endpoint reports the capability as unavailable.
func New(addr string, store *services.BenchmarkStore, jobs *pipeline.JobStore, runner Runner, logger *zap.SugaredLogger) *Server {
	return &Server{
		addr:   addr,
		store:  store,
		jobs:   jobs,
		runner: runner,
		logger: logger,
	}
}

// SetListings replaces the served dataset.
func (s *Server) SetListings(listings []*models.Listing) {
	s.mu.Lock()
	s.listings = listings
	s.mu.Unlock()
	s.logger.Infof("[api] dataset refreshed: %d listings", len(listings))
}

func (s *Server) snapshot() []*models.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listings
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/listings", s.handleListings).Methods(http.MethodGet)
	api.HandleFunc("/suburbs", s.handleSuburbs).Methods(http.MethodGet)
	api.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)

	api.HandleFunc("/analytics/overview", s.handleOverview).Methods(http.MethodGet)
	api.HandleFunc("/analytics/heatmap", s.handleHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/analytics/trends", s.handleTrends).Methods(http.MethodGet)
	api.HandleFunc("/analytics/supply-demand", s.handleSupplyDemand).Methods(http.MethodGet)
	api.HandleFunc("/analytics/sources", s.handleSourceStats).Methods(http.MethodGet)
	api.HandleFunc("/analytics/middleman-flags", s.handleMiddlemanFlags).Methods(http.MethodGet)

	api.HandleFunc("/scrape/trigger", s.handleScrapeTrigger).Methods(http.MethodPost)
	api.HandleFunc("/scrape/status/{job_id}", s.handleScrapeStatus).Methods(http.MethodGet)
	api.HandleFunc("/scrape/jobs", s.handleScrapeJobs).Methods(http.MethodGet)

	r.Use(s.logRequests)
	return r
}

// Start runs the HTTP server until it fails or the process exits.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Infof("[api] listening on %s", s.addr)
	return srv.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("[api] %s %s (%s)", r.Method, r.URL.Path, time.Since(t0).Round(time.Millisecond))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
