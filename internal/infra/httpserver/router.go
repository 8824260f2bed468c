package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ajy0127/soc2-report-reviewer/internal/application/pipeline"
	domai "github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
	"github.com/ajy0127/soc2-report-reviewer/internal/middleware"
)

// Pipeline is the part of the orchestrator the HTTP surface drives.
type Pipeline interface {
	HandleRequest(ctx context.Context, req report.AnalysisRequest, runID string) pipeline.Outcome
}

type Options struct {
	Pipeline    Pipeline
	Runs        runs.Repository // optional
	Metrics     *middleware.Metrics
	Checkers    map[string]middleware.HealthChecker
	APIKeys     map[string]string
	CORSOrigins []string
	RateLimiter *middleware.RateLimiter // optional
	Logger      *slog.Logger
	// RunTimeout bounds background runs started with ?async=true.
	RunTimeout time.Duration
}

type Router struct {
	pipeline   Pipeline
	runs       runs.Repository
	log        *slog.Logger
	runTimeout time.Duration
	wg         sync.WaitGroup
}

func NewRouter(opts Options) (*Router, http.Handler) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := &Router{pipeline: opts.Pipeline, runs: opts.Runs, log: log, runTimeout: opts.RunTimeout}
	if r.runTimeout <= 0 {
		r.runTimeout = 15 * time.Minute
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(log), metrics.Middleware)

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Method(http.MethodGet, "/metrics", metrics.Handler())

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		if opts.RateLimiter != nil {
			rt.With(middleware.RateLimit(opts.RateLimiter)).Post("/analyze", r.wrap(r.handleAnalyze))
		} else {
			rt.Post("/analyze", r.wrap(r.handleAnalyze))
		}
		rt.Get("/runs/latest", r.wrap(r.handleLatest))
	})

	return r, mux
}

// Wait blocks until background runs have finished.
func (r *Router) Wait() { r.wg.Wait() }

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequest struct{ error }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var bad badRequest
			switch {
			case errors.As(err, &bad):
				http.Error(w, bad.Error(), http.StatusBadRequest)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			default:
				r.log.Error("http.handler.error", "path", req.URL.Path, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/analyze[?async=true]
// Body: {"bucket": "...", "key": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body report.AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	body.Bucket = middleware.SanitizeString(body.Bucket)
	if err := middleware.ValidateBucket(body.Bucket); err != nil {
		return badRequest{err}
	}
	if err := middleware.ValidateObjectKey(body.Key); err != nil {
		return badRequest{err}
	}

	runID := uuid.NewString()
	async, _ := strconv.ParseBool(req.URL.Query().Get("async"))
	if !async {
		out := r.pipeline.HandleRequest(req.Context(), body, runID)
		return writeJSON(w, out.StatusCode(), out.Body())
	}

	// jalankan di background, request tidak menunggu
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), r.runTimeout)
		defer cancel()
		out := r.pipeline.HandleRequest(ctx, body, runID)
		r.log.Info("http.analyze.background.done", "run_id", runID, "status", out.Status)
	}()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"run_id":   runID,
		"bucket":   body.Bucket,
		"key":      body.Key,
		"queuedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /v1/runs/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	if r.runs == nil {
		http.Error(w, "run ledger not configured", http.StatusNotImplemented)
		return nil
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.runs.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*runs.Run{}
	}
	return writeJSON(w, http.StatusOK, list)
}
