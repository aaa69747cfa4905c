package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	wsadapter "just3sec/adapters/websocket"
	"just3sec/analytics"
	"just3sec/core"
	"just3sec/engine"
	"just3sec/realtime"
)

// MetricsReporter serves the analytics summary.
type MetricsReporter interface {
	Report(limit int) analytics.Report
}

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Metrics, if set, is served on {prefix}{MetricsPath}.
	Metrics MetricsReporter
	// MetricsPath defaults to /metrics.
	MetricsPath string
	// MetricsTop is the number of achievements listed when ?top is absent.
	MetricsTop int
	Logger     *slog.Logger
}

// NewMux builds an http.Handler exposing the game REST API and WebSocket stream.
// Routes:
//   - GET    {prefix}/healthz
//   - GET    {prefix}/achievements?reveal=true
//   - GET    {prefix}/users/{id}
//   - GET    {prefix}/users/{id}/chart
//   - GET    {prefix}/users/{id}/achievements
//   - POST   {prefix}/users/{id}/start
//   - POST   {prefix}/users/{id}/stop
//   - POST   {prefix}/users/{id}/attempts?error_ms=120
//   - DELETE {prefix}/users/{id}/history?confirm=true
//   - GET    {prefix}/metrics
//   - WS     {prefix}/ws?user={id}
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, metrics: opts.Metrics, metricsTop: opts.MetricsTop, logger: logger}
	if h.metricsTop <= 0 {
		h.metricsTop = 5
	}
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.AllowCORSOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{opts.AllowCORSOrigin},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
			MaxAge:         300,
		}))
	}
	if len(opts.APIKeys) > 0 {
		r.Use(apiKeyAuth(opts.APIKeys))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(rateLimit(opts.RateLimitRPM, opts.RateLimitBurst))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	routes := func(r chi.Router) {
		r.Get("/healthz", h.healthCheck)
		r.Get("/achievements", h.catalogue)
		if opts.Metrics != nil {
			r.Get(metricsPath, h.metricsReport)
		}
		if hub != nil {
			r.Handle("/ws", wsadapter.Handler(hub))
		}
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", h.profile)
			r.Get("/chart", h.chart)
			r.Get("/achievements", h.achievements)
			r.Post("/start", h.start)
			r.Post("/stop", h.stop)
			r.Post("/attempts", h.recordAttempt)
			r.Delete("/history", h.clearHistory)
		})
	}
	if prefix := normalizePrefix(opts.PathPrefix); prefix != "" {
		r.Route(prefix, routes)
	} else {
		routes(r)
	}
	return r
}

type handlers struct {
	svc        *engine.Service
	metrics    MetricsReporter
	metricsTop int
	logger     *slog.Logger
}

// healthCheck verifies the service is working properly
func (h *handlers) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	code := http.StatusOK
	if err := h.svc.Healthy(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}
	writeJSONStatus(w, code, status)
}

func (h *handlers) catalogue(w http.ResponseWriter, r *http.Request) {
	reveal, _ := strconv.ParseBool(r.URL.Query().Get("reveal"))
	writeJSON(w, h.svc.Catalogue(reveal))
}

func (h *handlers) metricsReport(w http.ResponseWriter, r *http.Request) {
	limit := h.metricsTop
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_top", "top must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	writeJSON(w, h.metrics.Report(limit))
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), userParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, p)
}

func (h *handlers) chart(w http.ResponseWriter, r *http.Request) {
	samples, err := h.svc.Chart(r.Context(), userParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"samples": samples})
}

func (h *handlers) achievements(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Achievements(r.Context(), userParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, views)
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	started, err := h.svc.Start(r.Context(), userParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"started": started})
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	res, recorded, err := h.svc.Stop(r.Context(), userParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	if !recorded {
		writeJSON(w, map[string]any{"recorded": false})
		return
	}
	writeJSON(w, attemptResponse{Recorded: true, AttemptResult: res})
}

func (h *handlers) recordAttempt(w http.ResponseWriter, r *http.Request) {
	errorMs, err := strconv.ParseInt(r.URL.Query().Get("error_ms"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_error_ms", "error_ms must be an integer", nil)
		return
	}
	res, err := h.svc.Record(r.Context(), userParam(r), errorMs)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, attemptResponse{Recorded: true, AttemptResult: res})
}

func (h *handlers) clearHistory(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.svc.Clear(r.Context(), userParam(r), confirmed); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

type attemptResponse struct {
	Recorded bool `json:"recorded"`
	engine.AttemptResult
}

// fail maps service errors onto API errors.
func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrAnonymous):
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
	case errors.Is(err, engine.ErrNegativeError):
		writeError(w, http.StatusBadRequest, "invalid_error_ms", err.Error(), nil)
	case errors.Is(err, engine.ErrConfirmationRequired):
		writeError(w, http.StatusBadRequest, "confirmation_required", err.Error(), map[string]any{"hint": "repeat with confirm=true"})
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}

func userParam(r *http.Request) core.UserID {
	return core.UserID(chi.URLParam(r, "id"))
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	return prefix
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
