// Package purchases serves the customer purchase listing: pagination, search
// and the per-document stepper snapshots the listing rows render.
package purchases

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvimperial/tracking_service/internal/app/domain/document"
	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/internal/app/domain/stepper"
	"github.com/dvimperial/tracking_service/internal/app/metrics"
	"github.com/dvimperial/tracking_service/internal/app/storage"
	"github.com/dvimperial/tracking_service/pkg/logger"
)

// DefaultPerPage matches the page size the storefront requests.
const DefaultPerPage = 10

// Service manages the purchase listing for clients.
type Service struct {
	store      storage.PurchaseStore
	reconciler *stepper.Reconciler
	snapshots  *stepper.Cache
	log        *logger.Logger
}

// New constructs a purchases service. A nil reconciler uses the default stage
// table.
func New(store storage.PurchaseStore, reconciler *stepper.Reconciler, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("purchases")
	}
	if reconciler == nil {
		reconciler = stepper.NewReconciler(nil, nil, nil)
	}
	return &Service{
		store:      store,
		reconciler: reconciler,
		snapshots:  stepper.NewCache(),
		log:        log,
	}
}

// List returns one page of a client's purchases, newest first. Fetching a
// page replaces the rendered rows, so the snapshot cache is reset; snapshots
// are then computed lazily per row via Snapshot.
func (s *Service) List(ctx context.Context, clientID string, page, perPage int) (purchase.Listing, error) {
	return s.page(ctx, clientID, "", page, perPage)
}

// Search filters the client's purchases by document number or product
// description. Display prefixes and folio padding in the query are stripped
// before matching.
func (s *Service) Search(ctx context.Context, clientID, query string, page, perPage int) (purchase.Listing, error) {
	return s.page(ctx, clientID, sanitizeQuery(query), page, perPage)
}

func (s *Service) page(ctx context.Context, clientID, query string, page, perPage int) (purchase.Listing, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return purchase.Listing{}, fmt.Errorf("client id is required")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	var (
		items []purchase.Purchase
		total int
		err   error
	)
	if query == "" {
		items, total, err = s.store.ListPurchases(ctx, clientID, page, perPage)
	} else {
		items, total, err = s.store.SearchPurchases(ctx, clientID, query, page, perPage)
	}
	if err != nil {
		return purchase.Listing{}, fmt.Errorf("list purchases: %w", err)
	}

	s.snapshots.Invalidate()
	metrics.RecordListing(query != "")

	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	return purchase.Listing{
		Purchases:  items,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// Snapshot returns the reconciled stepper for one listed document, memoized
// until the next page fetch.
func (s *Service) Snapshot(ctx context.Context, clientID, documentNumber string) ([]stepper.Step, error) {
	p, err := s.store.GetPurchase(ctx, clientID, documentNumber)
	if err != nil {
		return nil, err
	}
	return s.snapshotFor(p), nil
}

// snapshotFor memoizes per (client, document) so repeated renders of the same
// row reconcile once.
func (s *Service) snapshotFor(p purchase.Purchase) []stepper.Step {
	key := p.ClientID + "/" + p.DocumentNumber
	return s.snapshots.GetOrCompute(key, func() []stepper.Step {
		metrics.RecordSnapshotCompute()
		return s.reconciler.Reconcile(p.Traceability, p.Products)
	})
}

// sanitizeQuery reduces a number-like query ("N° 0001234") to its bare folio
// digits; free-text queries pass through for product matching.
func sanitizeQuery(query string) string {
	q := strings.TrimSpace(query)
	if strings.ContainsAny(q, "0123456789") {
		return document.FolioDigits(q)
	}
	return q
}
