package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/invopop/jsonschema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/reviewinsights/internal/database"
	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/internal/pipeline"
	"github.com/zombar/reviewinsights/internal/service"
	"github.com/zombar/reviewinsights/pkg/logging"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

const maxBodyBytes = 32 << 20

// Handler handles HTTP requests
type Handler struct {
	service  *service.Service
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   chi.Router

	schemaOnce sync.Once
	schema     []byte
	schemaErr  error
}

// analyzeRequest is the body of POST /api/analyze
type analyzeRequest struct {
	Reviews       []models.RawReview `json:"reviews"`
	KnownVersions []string           `json:"known_versions,omitempty"`
	Options       models.Options     `json:"options"`
	Async         bool               `json:"async"`
}

// NewHandler creates the API router with CORS support and metrics.
// A nil gatherer serves the default Prometheus registry.
func NewHandler(svc *service.Service, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	return newHandler(svc, gatherer, logger)
}

func newHandler(svc *service.Service, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{
		service:  svc,
		gatherer: gatherer,
		logger:   logger,
	}
	h.setupRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.handleAnalyze)
		r.Get("/jobs/{id}", h.handleJob)
		r.Get("/jobs/{id}/export", h.handleExport)
		r.Get("/schema", h.handleSchema)
	})

	h.router = r
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"async":  h.service.AsyncEnabled(),
	}, http.StatusOK)
}

// handleAnalyze runs an analysis inline or submits it as a job
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tracing.SetSpanAttributes(ctx,
		attribute.Int("reviews.count", len(req.Reviews)),
		attribute.Bool("analysis.async", req.Async))

	preq := pipeline.Request{
		Reviews:       req.Reviews,
		KnownVersions: req.KnownVersions,
		Options:       req.Options,
	}

	if req.Async {
		job, err := h.service.Submit(ctx, preq)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, map[string]interface{}{
			"job_id":  job.ID,
			"task_id": job.TaskID,
			"status":  job.Status,
		}, http.StatusAccepted)
		return
	}

	result, cached, err := h.service.Analyze(ctx, preq)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	respondJSON(w, result, http.StatusOK)
}

// handleJob reports a job's status, progress and, once completed, its result
func (h *Handler) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tracing.SetSpanAttributes(r.Context(), attribute.String("job.id", id))

	job, err := h.service.Job(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if job.Status != jobs.StatusCompleted {
		job.Result = nil
	}
	respondJSON(w, job, http.StatusOK)
}

// handleExport downloads the csv or json export of a completed job
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := r.URL.Query().Get("format")
	tracing.SetSpanAttributes(r.Context(),
		attribute.String("job.id", id),
		attribute.String("export.format", format))

	exp, err := h.service.Export(r.Context(), id, format)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(exp.Body))
}

// handleSchema serves the JSON Schema of an analysis result
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	h.schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: true,
			DoNotReference:            true,
		}
		schema := reflector.Reflect(&models.AggregatedResult{})
		h.schema, h.schemaErr = json.MarshalIndent(schema, "", "  ")
	})
	if h.schemaErr != nil {
		h.respondServiceError(w, r, h.schemaErr)
		return
	}

	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.schema)
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidOptions), errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrJobNotReady):
		return http.StatusConflict
	case errors.Is(err, service.ErrAsyncUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.HTTPErrorLogger(h.logger, status, err, r)
	}
	respondError(w, err.Error(), status)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]string{"error": message}, statusCode)
}
