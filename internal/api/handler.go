package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pavkata12/app/internal/auth"
	"github.com/pavkata12/app/internal/events"
	"github.com/pavkata12/app/internal/ledger"
	"github.com/pavkata12/app/internal/metrics"
)

// Handler serves the billing REST API
type Handler struct {
	ledger         *ledger.Ledger
	hub            *events.Hub
	jwtManager     *auth.JWTManager
	authEnabled    bool
	metricsEnabled bool
}

// Option is a functional option for configuring the handler
type Option func(*Handler)

// WithAuth requires an operator token on /api/v1 routes
func WithAuth(jwtManager *auth.JWTManager) Option {
	return func(h *Handler) {
		h.jwtManager = jwtManager
		h.authEnabled = jwtManager != nil
	}
}

// WithEvents serves the websocket event stream from hub
func WithEvents(hub *events.Hub) Option {
	return func(h *Handler) {
		h.hub = hub
	}
}

// WithMetrics exposes /metrics and records HTTP metrics
func WithMetrics(enabled bool) Option {
	return func(h *Handler) {
		h.metricsEnabled = enabled
	}
}

func NewHandler(l *ledger.Ledger, opts ...Option) *Handler {
	h := &Handler{ledger: l}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the HTTP routes
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger)
	if h.metricsEnabled {
		r.Use(metrics.HTTPMiddleware)
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/auth/token", h.IssueToken).Methods(http.MethodPost)

	protected := v1.NewRoute().Subrouter()
	if h.authEnabled {
		protected.Use(h.jwtManager.Middleware)
	}

	protected.HandleFunc("/computers", h.ListComputers).Methods(http.MethodGet)
	protected.HandleFunc("/computers", h.RegisterComputer).Methods(http.MethodPost)
	protected.HandleFunc("/computers/heartbeat", h.Heartbeat).Methods(http.MethodPost)
	protected.HandleFunc("/computers/{id:[0-9]+}", h.GetComputer).Methods(http.MethodGet)
	protected.HandleFunc("/computers/{id:[0-9]+}/status", h.UpdateComputerStatus).Methods(http.MethodPut)
	protected.HandleFunc("/computers/{id:[0-9]+}/session", h.GetActiveSession).Methods(http.MethodGet)
	protected.HandleFunc("/computers/{id:[0-9]+}/usage", h.ComputerUsageReport).Methods(http.MethodGet)

	protected.HandleFunc("/tariffs", h.ListTariffs).Methods(http.MethodGet)
	protected.HandleFunc("/tariffs", h.CreateTariff).Methods(http.MethodPost)
	protected.HandleFunc("/tariffs/{id:[0-9]+}", h.GetTariff).Methods(http.MethodGet)
	protected.HandleFunc("/tariffs/{id:[0-9]+}", h.UpdateTariff).Methods(http.MethodPut)
	protected.HandleFunc("/tariffs/{id:[0-9]+}/deactivate", h.DeactivateTariff).Methods(http.MethodPost)
	protected.HandleFunc("/tariffs/{id:[0-9]+}/activate", h.ActivateTariff).Methods(http.MethodPost)

	protected.HandleFunc("/sessions", h.ListSessions).Methods(http.MethodGet)
	protected.HandleFunc("/sessions", h.OpenSession).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id:[0-9]+}", h.GetSession).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{id:[0-9]+}/close", h.CloseSession).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id:[0-9]+}/cancel", h.CancelSession).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id:[0-9]+}/payments", h.ListPayments).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{id:[0-9]+}/payments", h.RecordPayment).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id:[0-9]+}/summary", h.PaymentSummary).Methods(http.MethodGet)

	protected.HandleFunc("/settings", h.ListSettings).Methods(http.MethodGet)
	protected.HandleFunc("/settings/{key}", h.GetSetting).Methods(http.MethodGet)
	protected.HandleFunc("/settings/{key}", h.SetSetting).Methods(http.MethodPut)

	protected.HandleFunc("/reports/daily", h.DailyReport).Methods(http.MethodGet)

	if h.hub != nil {
		protected.HandleFunc("/events", h.hub.ServeWS).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: "not_found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "method_not_allowed"})
	})

	return addCORS(r)
}

// HealthCheck reports whether the database answers
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := h.ledger.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type tokenRequest struct {
	Operator string `json:"operator"`
	Key      string `json:"key"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken exchanges the operator key for a signed token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if !h.authEnabled {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "authentication is disabled", Code: "not_found"})
		return
	}

	var req tokenRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Operator == "" {
		req.Operator = "operator"
	}

	if !h.jwtManager.CheckOperatorKey(req.Key) {
		log.Warn().Str("operator", req.Operator).Str("remote_addr", r.RemoteAddr).Msg("Rejected operator key")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid operator key", Code: "unauthorized"})
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(req.Operator)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("operator", req.Operator).Time("expires_at", expiresAt).Msg("Issued operator token")
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

// CORS middleware to handle web clients
func addCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
