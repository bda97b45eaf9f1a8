// Package httpapi exposes the purchase listing and tracking services over
// REST. Routes mirror the commerce backend so existing clients keep working.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/internal/app/domain/stepper"
	"github.com/dvimperial/tracking_service/internal/app/metrics"
	"github.com/dvimperial/tracking_service/internal/app/services/purchases"
	"github.com/dvimperial/tracking_service/internal/app/services/tracking"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

// Handler bundles the HTTP endpoints for the application services.
type Handler struct {
	purchases *purchases.Service
	tracking  *tracking.Service
	log       *logger.Logger
}

// NewHandler wires the services into a handler. A nil log falls back to a
// default logger.
func NewHandler(purchasesSvc *purchases.Service, trackingSvc *tracking.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{purchases: purchasesSvc, tracking: trackingSvc, log: log}
}

// Router returns the instrumented route tree. A nil limiter disables rate
// limiting.
func (h *Handler) Router(limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	if limiter != nil {
		r.Use(limiter.Handler)
	}

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/clients/{clientID}", func(r chi.Router) {
		r.Get("/documents", h.listDocuments)
		r.Get("/documents/{number}/tracking", h.trackDocument)
		// Static "documents" wins over the wildcard, so the legacy
		// folio/type route stays reachable. The first segment is the
		// folio there, bound to the same clientID param.
		r.Get("/{type}", h.legacyLookup)
	})

	return metrics.InstrumentHandler(r)
}

// listedDocument is a purchase optionally enriched with its stepper snapshot.
type listedDocument struct {
	purchase.Purchase
	Steps []stepper.Step `json:"pasos,omitempty"`
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")
	search := r.URL.Query().Get("buscar")

	var (
		listing purchase.Listing
		err     error
	)
	if search != "" {
		listing, err = h.purchases.Search(r.Context(), clientID, search, page, limit)
	} else {
		listing, err = h.purchases.List(r.Context(), clientID, page, limit)
	}
	if err != nil {
		h.log.WithError(err).WithField("client_id", clientID).Error("list documents")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	withTracking, _ := strconv.ParseBool(r.URL.Query().Get("tracking"))
	if !withTracking {
		writeJSON(w, http.StatusOK, listing)
		return
	}

	docs := make([]listedDocument, 0, len(listing.Purchases))
	for _, p := range listing.Purchases {
		doc := listedDocument{Purchase: p}
		if steps, err := h.purchases.Snapshot(r.Context(), clientID, p.DocumentNumber); err == nil {
			doc.Steps = steps
		}
		docs = append(docs, doc)
	}
	writeJSON(w, http.StatusOK, struct {
		User       string           `json:"usuario,omitempty"`
		Documents  []listedDocument `json:"compras"`
		Total      int              `json:"total"`
		Page       int              `json:"page"`
		PerPage    int              `json:"perPage"`
		TotalPages int              `json:"totalPages"`
	}{listing.User, docs, listing.Total, listing.Page, listing.PerPage, listing.TotalPages})
}

func (h *Handler) trackDocument(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	number := chi.URLParam(r, "number")

	view, err := h.tracking.Track(r.Context(), clientID, number)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.log.WithError(err).WithField("client_id", clientID).Error("track document")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) legacyLookup(w http.ResponseWriter, r *http.Request) {
	folio := chi.URLParam(r, "clientID")
	docType := chi.URLParam(r, "type")

	view, err := h.tracking.Lookup(r.Context(), folio, docType)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.log.WithError(err).WithField("folio", folio).Error("legacy lookup")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
