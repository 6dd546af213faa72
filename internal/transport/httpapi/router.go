// Package httpapi serves the read-only status API of the bot.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/usecase/orders"
)

type OrderReader interface {
	ListOrders(ctx context.Context, filter orders.OrderFilter) ([]order.Record, error)
	PreviewAlerts(ctx context.Context) ([]order.AlertBatch, error)
	FormatAlert(batch order.AlertBatch) string
}

// Instrumenter wraps a named handler with request metrics.
type Instrumenter interface {
	Instrument(name string, next http.Handler) http.Handler
	Handler() http.Handler
}

type OrdersResponse struct {
	Orders []order.Record `json:"orders"`
}

type AlertPreview struct {
	order.AlertBatch
	Text string `json:"text"`
}

type AlertsResponse struct {
	Batches []AlertPreview `json:"batches"`
}

type Handler struct {
	reader  OrderReader
	metrics Instrumenter
}

func NewHandler(reader OrderReader, metrics Instrumenter) *Handler {
	return &Handler{reader: reader, metrics: metrics}
}

// Router mounts every route with request id and panic recovery.
func (h *Handler) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/healthz", h.instrument("healthz", h.handleHealth))
	router.Method(http.MethodGet, "/orders", h.instrument("orders", h.handleListOrders))
	router.Method(http.MethodGet, "/alerts/preview", h.instrument("alerts_preview", h.handlePreviewAlerts))
	if h.metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
}

func (h *Handler) instrument(name string, fn http.HandlerFunc) http.Handler {
	if h.metrics == nil {
		return fn
	}
	return h.metrics.Instrument(name, fn)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := orders.OrderFilter{}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	if r.URL.Query().Get("open") == "true" {
		filter.OpenOnly = true
	}

	records, err := h.reader.ListOrders(r.Context(), filter)
	if err != nil {
		h.respondWithFailure(r.Context(), w, "list orders failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, OrdersResponse{Orders: records})
}

func (h *Handler) handlePreviewAlerts(w http.ResponseWriter, r *http.Request) {
	batches, err := h.reader.PreviewAlerts(r.Context())
	if err != nil {
		h.respondWithFailure(r.Context(), w, "preview alerts failed", err)
		return
	}

	out := AlertsResponse{Batches: make([]AlertPreview, 0, len(batches))}
	for _, batch := range batches {
		out.Batches = append(out.Batches, AlertPreview{AlertBatch: batch, Text: h.reader.FormatAlert(batch)})
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) respondWithFailure(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	logging.Error(ctx, msg, slog.Any("err", errs.Loggable(err)))
	code := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusServiceUnavailable
	}
	respondWithError(w, code, msg)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
