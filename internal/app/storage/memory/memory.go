package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dvimperial/tracking_service/internal/app/domain/document"
	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	purchases map[string]map[string]purchase.Purchase // clientID -> documentNumber -> record
}

var _ storage.PurchaseStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:    1,
		purchases: make(map[string]map[string]purchase.Purchase),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func (s *Store) UpsertPurchase(_ context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	if p.ClientID == "" {
		return purchase.Purchase{}, fmt.Errorf("client id required")
	}
	if strings.TrimSpace(p.DocumentNumber) == "" {
		return purchase.Purchase{}, fmt.Errorf("document number required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byNumber, ok := s.purchases[p.ClientID]
	if !ok {
		byNumber = make(map[string]purchase.Purchase)
		s.purchases[p.ClientID] = byNumber
	}

	now := time.Now().UTC()
	if existing, ok := byNumber[p.DocumentNumber]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		if p.ID == "" {
			p.ID = s.nextIDLocked()
		}
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	byNumber[p.DocumentNumber] = clonePurchase(p)
	return p, nil
}

func (s *Store) GetPurchase(_ context.Context, clientID, documentNumber string) (purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[clientID][documentNumber]
	if !ok {
		return purchase.Purchase{}, fmt.Errorf("purchase %s/%s: %w", clientID, documentNumber, storage.ErrNotFound)
	}
	return clonePurchase(p), nil
}

func (s *Store) FindPurchase(_ context.Context, documentNumber, typeCode string) (purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	number := document.StripLeadingZeros(document.SanitizeNumber(documentNumber))
	for _, byNumber := range s.purchases {
		for _, p := range byNumber {
			if document.StripLeadingZeros(p.DocumentNumber) != number {
				continue
			}
			if typeCode != "" && document.TypeCode(p.DocumentType) != strings.ToUpper(typeCode) {
				continue
			}
			return clonePurchase(p), nil
		}
	}
	return purchase.Purchase{}, fmt.Errorf("purchase %s: %w", documentNumber, storage.ErrNotFound)
}

func (s *Store) ListPurchases(_ context.Context, clientID string, page, perPage int) ([]purchase.Purchase, int, error) {
	return s.collect(clientID, "", page, perPage)
}

func (s *Store) SearchPurchases(_ context.Context, clientID, query string, page, perPage int) ([]purchase.Purchase, int, error) {
	return s.collect(clientID, query, page, perPage)
}

func (s *Store) DeletePurchases(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.purchases, clientID)
	return nil
}

func (s *Store) collect(clientID, query string, page, perPage int) ([]purchase.Purchase, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []purchase.Purchase
	for _, p := range s.purchases[clientID] {
		if query == "" || matches(p, query) {
			all = append(all, clonePurchase(p))
		}
	}
	sortNewestFirst(all)

	total := len(all)
	start, end := pageBounds(total, page, perPage)
	return all[start:end], total, nil
}

// matches reports whether the query hits the document number or any product
// description, case-insensitively.
func matches(p purchase.Purchase, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.DocumentNumber), q) {
		return true
	}
	for _, item := range p.Products {
		if strings.Contains(strings.ToLower(item.Description), q) {
			return true
		}
	}
	return false
}

func sortNewestFirst(purchases []purchase.Purchase) {
	sort.SliceStable(purchases, func(i, j int) bool {
		a, aok := document.ParseDate(purchases[i].PurchaseDate)
		b, bok := document.ParseDate(purchases[j].PurchaseDate)
		if aok != bok {
			return aok
		}
		if !a.Equal(b) {
			return a.After(b)
		}
		return purchases[i].DocumentNumber > purchases[j].DocumentNumber
	})
}

func pageBounds(total, page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = total
		if perPage == 0 {
			return 0, 0
		}
	}
	start := (page - 1) * perPage
	if start > total {
		return total, total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return start, end
}

func clonePurchase(p purchase.Purchase) purchase.Purchase {
	out := p
	out.Traceability = append([]purchase.TraceEntry(nil), p.Traceability...)
	out.Products = append([]purchase.Product(nil), p.Products...)
	out.AssociatedInvoices = append([]purchase.AssociatedInvoice(nil), p.AssociatedInvoices...)
	if p.Pickup != nil {
		pickup := *p.Pickup
		out.Pickup = &pickup
	}
	if p.Seller != nil {
		seller := *p.Seller
		out.Seller = &seller
	}
	return out
}
