// Package httpapi serves the delivery handler over HTTP for local runs and
// container hosts.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	customsender "github.com/goliatone/go-custom-sender"
	"github.com/goliatone/go-custom-sender/core"
)

const (
	DeliveriesPath = "/v1/deliveries"
	HealthPath     = "/healthz"
	MetricsPath    = "/metrics"

	maxEventBytes  = 256 << 10
	requestTimeout = 30 * time.Second
)

type Handler struct {
	facade  *customsender.Facade
	metrics http.Handler
	logger  glog.Logger
}

type Option func(*Handler)

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(handler *Handler) {
		handler.metrics = h
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(handler *Handler) {
		handler.logger = logger
	}
}

func New(facade *customsender.Facade, opts ...Option) *Handler {
	h := &Handler{facade: facade}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.logger = glog.Ensure(h.logger)
	return h
}

// Router returns a chi router with every route registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Get(HealthPath, h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, MetricsPath, h.metrics)
	}
	r.Post(DeliveriesPath, h.handleDeliver)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDeliver echoes the request body on success, matching the bytes a
// Lambda host would get back.
func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		h.writeError(ctx, w, requestID, goerrors.Wrap(err, goerrors.CategoryBadInput, "request body could not be read").
			WithCode(http.StatusRequestEntityTooLarge).
			WithTextCode(core.DeliveryErrorMalformedEvent))
		return
	}
	event, err := core.ParseEvent(raw)
	if err != nil {
		h.writeError(ctx, w, requestID, err)
		return
	}

	if _, err := h.facade.Deliver(ctx, event); err != nil {
		h.writeError(ctx, w, requestID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Category  string         `json:"category"`
	TextCode  string         `json:"text_code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, requestID string, err error) {
	envelope := core.ToServiceError(err)
	status := envelope.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	h.logger.WithContext(ctx).Warn("delivery request failed",
		"request_id", requestID,
		"status_code", status,
		"text_code", envelope.TextCode,
	)
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Category:  fmt.Sprint(envelope.Category),
		TextCode:  envelope.TextCode,
		Message:   envelope.Message,
		RequestID: requestID,
		Metadata:  core.RedactSensitiveMap(envelope.Metadata),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
