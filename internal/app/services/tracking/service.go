// Package tracking builds the single-document tracking view: the reconciled
// stepper plus the document header, falling back to the legacy upstream API
// when the local store cannot serve the request.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvimperial/tracking_service/internal/app/domain/document"
	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/internal/app/domain/stepper"
	"github.com/dvimperial/tracking_service/internal/app/metrics"
	"github.com/dvimperial/tracking_service/internal/app/storage"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

// ErrNotFound is returned when neither the local store nor the legacy API
// knows the document.
var ErrNotFound = errors.New("document not found")

// inRouteLabel is the stage hidden for store pickups: a picked-up order is
// never "en ruta".
const inRouteLabel = "pedido en ruta"

// LegacyAPI is the slice of the upstream client the tracking service needs.
type LegacyAPI interface {
	LegacyTracking(ctx context.Context, folio, typeCode string) (purchase.Purchase, bool, error)
}

// View is the rendering-ready tracking response for one document.
type View struct {
	DocumentType       string                       `json:"tipoDocumento"`
	DocumentNumber     string                       `json:"numeroDocumento"`
	PurchaseDate       string                       `json:"fechaCompra"`
	DeliveryType       string                       `json:"tipoEntrega,omitempty"`
	DeliveryAddress    string                       `json:"direccionEntrega,omitempty"`
	Total              float64                      `json:"total"`
	Dimensioned        bool                         `json:"esDimensionado"`
	Steps              []stepper.Step               `json:"pasos"`
	Products           []purchase.Product           `json:"productos,omitempty"`
	AssociatedInvoices []purchase.AssociatedInvoice `json:"facturasAsociadas,omitempty"`
	Pickup             *purchase.Pickup             `json:"pickup,omitempty"`
	Seller             *purchase.Seller             `json:"seller,omitempty"`
}

// Service resolves tracking views from the local store with a legacy API
// fallback.
type Service struct {
	store      storage.PurchaseStore
	legacy     LegacyAPI
	reconciler *stepper.Reconciler
	log        *logger.Logger
}

// New constructs a tracking service. legacy may be nil when no upstream
// fallback is configured.
func New(store storage.PurchaseStore, legacy LegacyAPI, reconciler *stepper.Reconciler, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tracking")
	}
	if reconciler == nil {
		reconciler = stepper.NewReconciler(nil, nil, nil)
	}
	return &Service{
		store:      store,
		legacy:     legacy,
		reconciler: reconciler,
		log:        log,
	}
}

// Track builds the tracking view for one of a client's documents. A document
// with no traceability still renders: every stage pending.
func (s *Service) Track(ctx context.Context, clientID, documentNumber string) (View, error) {
	p, err := s.store.GetPurchase(ctx, clientID, strings.TrimSpace(documentNumber))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.RecordTrackingLookup("miss")
			return View{}, ErrNotFound
		}
		return View{}, fmt.Errorf("get purchase: %w", err)
	}
	metrics.RecordTrackingLookup("local")
	return s.view(p), nil
}

// Lookup resolves a document by folio and legacy type code. The local store
// is consulted first; a miss, or a local hit without traceability, falls
// through to the legacy API when one is configured.
func (s *Service) Lookup(ctx context.Context, folio, typeCode string) (View, error) {
	code := strings.ToUpper(strings.TrimSpace(typeCode))
	if code == "" {
		code = document.CodeBoleta
	}

	local, err := s.store.FindPurchase(ctx, folio, code)
	switch {
	case err == nil && local.HasTraceability():
		metrics.RecordTrackingLookup("local")
		return s.view(local), nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return View{}, fmt.Errorf("find purchase: %w", err)
	}

	if s.legacy != nil {
		remote, ok, lerr := s.legacy.LegacyTracking(ctx, folio, code)
		if lerr != nil {
			s.log.WithError(lerr).WithField("folio", folio).Warn("legacy tracking fallback failed")
		} else if ok {
			metrics.RecordTrackingLookup("legacy")
			return s.view(remote), nil
		}
	}

	// A local hit without traceability still beats a hard miss.
	if err == nil {
		metrics.RecordTrackingLookup("local")
		return s.view(local), nil
	}

	metrics.RecordTrackingLookup("miss")
	return View{}, ErrNotFound
}

func (s *Service) view(p purchase.Purchase) View {
	steps := s.reconciler.Reconcile(p.Traceability, p.Products)
	if isStorePickup(p) {
		steps = dropInRoute(steps)
	}
	correctDeliveredIcon(steps)

	return View{
		DocumentType:       p.DocumentType,
		DocumentNumber:     p.DocumentNumber,
		PurchaseDate:       document.FormatSpanish(p.PurchaseDate),
		DeliveryType:       p.DeliveryType,
		DeliveryAddress:    p.DeliveryAddress,
		Total:              p.Total,
		Dimensioned:        p.Dimensioned,
		Steps:              steps,
		Products:           p.Products,
		AssociatedInvoices: p.AssociatedInvoices,
		Pickup:             p.Pickup,
		Seller:             p.Seller,
	}
}

func isStorePickup(p purchase.Purchase) bool {
	for _, v := range []string{p.DeliveryType, pickupTitle(p)} {
		if strings.Contains(strings.ToLower(v), "retiro") {
			return true
		}
	}
	return false
}

func pickupTitle(p purchase.Purchase) string {
	if p.Pickup == nil {
		return ""
	}
	return p.Pickup.Title
}

// dropInRoute removes the "Pedido en Ruta" step for store pickups. The stage
// only appears when the configured stage table carries it as its own entry.
// The pending-adjacency flags are recomputed so the new neighbors across the
// splice point describe each other, not the removed step.
func dropInRoute(steps []stepper.Step) []stepper.Step {
	out := steps[:0]
	for _, step := range steps {
		if strings.EqualFold(strings.TrimSpace(step.Label), inRouteLabel) {
			continue
		}
		out = append(out, step)
	}
	if len(out) != len(steps) {
		stepper.MarkContinuity(out)
	}
	return out
}

// correctDeliveredIcon fixes the final stage of payloads that mark a
// delivered order with the in-transit icon.
func correctDeliveredIcon(steps []stepper.Step) {
	if len(steps) == 0 {
		return
	}
	last := &steps[len(steps)-1]
	if last.Completed() && last.Icon == stepper.IconInProgress {
		last.Icon = stepper.IconComplete
	}
}
