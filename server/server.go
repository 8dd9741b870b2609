// Package server exposes the HTTP control surface: crawl-window status,
// run triggering, job state, and persisted results.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"tmabaso28/pnpscraper/internal/scraper"
	"tmabaso28/pnpscraper/internal/sink"
	"tmabaso28/pnpscraper/internal/window"
	"tmabaso28/pnpscraper/logger"
	"tmabaso28/pnpscraper/services/jobs"
)

// RunFunc executes one crawl run and returns its result. The server calls
// it from a detached background goroutine.
type RunFunc func(ctx context.Context) (*scraper.RunResult, error)

// Server handles the control API.
type Server struct {
	win            window.CrawlWindow
	store          jobs.Store
	run            RunFunc
	dataFile       string
	metricsHandler http.Handler
	now            func() time.Time
	log            *logger.Logger
}

// New creates a control server
func New(win window.CrawlWindow, store jobs.Store, run RunFunc, dataFile string) *Server {
	return &Server{
		win:      win,
		store:    store,
		run:      run,
		dataFile: dataFile,
		now:      time.Now,
		log:      logger.ForServer(),
	}
}

// WithMetricsHandler mounts a /metrics exposition handler
func (s *Server) WithMetricsHandler(h http.Handler) *Server {
	s.metricsHandler = h
	return s
}

// WithClock overrides the server's clock, for tests
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /scrape/status", s.handleStatus)
	mux.HandleFunc("POST /scrape/start", s.handleStart)
	mux.HandleFunc("GET /scrape/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /scrape/results", s.handleResults)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return s.recoverMiddleware(mux)
}

// recoverMiddleware keeps the control surface alive when a handler panics.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Pick n Pay Scraper API is running!",
		"status":  "active",
		"endpoints": map[string]string{
			"status":         "/scrape/status",
			"start_scraping": "/scrape/start (POST)",
			"get_results":    "/scrape/results",
			"jobs":           "/scrape/jobs/{id}",
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	allowed, message := s.win.Describe(now)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scraping_allowed": allowed,
		"message":          message,
		"window_utc":       s.win.LabelUTC(),
		"window_sast":      s.win.LabelSAST(),
		"current_utc":      window.FormatUTC(now),
		"current_sast":     window.FormatSAST(now),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	allowed, message := s.win.Describe(now)
	if !allowed {
		// HTTP 423 Locked: the window gate refused the run
		writeError(w, http.StatusLocked, fmt.Sprintf("Scraping not allowed: %s", message))
		return
	}

	jobID := now.Format("20060102_150405")
	job := jobs.Job{
		ID:        jobID,
		Status:    jobs.StatusRunning,
		StartTime: now,
	}
	if err := s.store.Create(job); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	go s.runJob(jobID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "started",
		"message":   "Scraping initiated within allowed window",
		"task_id":   jobID,
		"timestamp": now.Format(time.RFC3339),
	})
}

// runJob executes one crawl in the background. The context deliberately is
// not tied to the triggering request; a panic or error moves the job to
// Failed instead of crashing the service.
func (s *Server) runJob(jobID string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("job", jobID).Msg("Crawl run panicked")
			s.finishJob(jobID, 0, fmt.Errorf("panic: %v", rec))
		}
	}()

	s.log.Info().Str("job", jobID).Msg("Starting background crawl run")

	result, err := s.run(context.Background())
	products := 0
	if result != nil {
		products = result.Products
	}
	s.finishJob(jobID, products, err)
}

func (s *Server) finishJob(jobID string, products int, runErr error) {
	end := time.Now()
	err := s.store.Update(jobID, func(j *jobs.Job) {
		j.EndTime = &end
		j.ProductsScraped = products
		if runErr != nil {
			j.Status = jobs.StatusFailed
			j.Error = runErr.Error()
		} else {
			j.Status = jobs.StatusCompleted
		}
	})
	if err != nil {
		s.log.Error().Err(err).Str("job", jobID).Msg("Updating job state failed")
	}
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	products, err := sink.ReadProducts(s.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "No results found. Run scraper first.")
			return
		}
		s.log.Error().Err(err).Msg("Reading results file failed")
		writeError(w, http.StatusInternalServerError, "reading results failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(products),
		"products": products,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.ForServer().Error().Err(err).Msg("Encoding response failed")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
