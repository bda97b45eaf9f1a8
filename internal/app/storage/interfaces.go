package storage

import (
	"context"
	"errors"

	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
)

// ErrNotFound is returned when a requested record does not exist. Backends
// wrap it, so callers check with errors.Is.
var ErrNotFound = errors.New("record not found")

// PurchaseStore persists purchase documents synced from the commerce backend.
// Records are keyed by (client, document number); UpsertPurchase replaces the
// stored record so repeated syncs converge on the latest upstream state.
type PurchaseStore interface {
	UpsertPurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error)
	GetPurchase(ctx context.Context, clientID, documentNumber string) (purchase.Purchase, error)

	// FindPurchase looks a document up by number and legacy type code across
	// clients, serving the folio endpoint.
	FindPurchase(ctx context.Context, documentNumber, typeCode string) (purchase.Purchase, error)

	// ListPurchases returns one page of a client's documents, newest purchase
	// first, along with the total count. Pages are 1-based.
	ListPurchases(ctx context.Context, clientID string, page, perPage int) ([]purchase.Purchase, int, error)

	// SearchPurchases filters a client's documents by document number or
	// product description before paginating.
	SearchPurchases(ctx context.Context, clientID, query string, page, perPage int) ([]purchase.Purchase, int, error)

	DeletePurchases(ctx context.Context, clientID string) error
}
