package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvimperial/tracking_service/internal/app/domain/document"
	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.PurchaseStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const purchaseColumns = `
	id, client_id, document_type, document_number, purchase_date,
	delivery_type, delivery_address, total, dimensioned,
	traceability, products, associated_invoices, pickup, seller,
	created_at, updated_at`

func (s *Store) UpsertPurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	if p.ClientID == "" {
		return purchase.Purchase{}, errors.New("client id required")
	}
	if strings.TrimSpace(p.DocumentNumber) == "" {
		return purchase.Purchase{}, errors.New("document number required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	traceJSON, err := json.Marshal(p.Traceability)
	if err != nil {
		return purchase.Purchase{}, fmt.Errorf("marshal traceability: %w", err)
	}
	productsJSON, err := json.Marshal(p.Products)
	if err != nil {
		return purchase.Purchase{}, fmt.Errorf("marshal products: %w", err)
	}
	associatedJSON, err := json.Marshal(p.AssociatedInvoices)
	if err != nil {
		return purchase.Purchase{}, fmt.Errorf("marshal associated invoices: %w", err)
	}
	pickupJSON, err := marshalNullable(p.Pickup)
	if err != nil {
		return purchase.Purchase{}, fmt.Errorf("marshal pickup: %w", err)
	}
	sellerJSON, err := marshalNullable(p.Seller)
	if err != nil {
		return purchase.Purchase{}, fmt.Errorf("marshal seller: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tracking_purchases (
			id, client_id, document_type, document_number, purchase_date,
			delivery_type, delivery_address, total, dimensioned,
			traceability, products, associated_invoices, pickup, seller,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (client_id, document_number) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			purchase_date = EXCLUDED.purchase_date,
			delivery_type = EXCLUDED.delivery_type,
			delivery_address = EXCLUDED.delivery_address,
			total = EXCLUDED.total,
			dimensioned = EXCLUDED.dimensioned,
			traceability = EXCLUDED.traceability,
			products = EXCLUDED.products,
			associated_invoices = EXCLUDED.associated_invoices,
			pickup = EXCLUDED.pickup,
			seller = EXCLUDED.seller,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, p.ID, p.ClientID, p.DocumentType, p.DocumentNumber, p.PurchaseDate,
		p.DeliveryType, p.DeliveryAddress, p.Total, p.Dimensioned,
		traceJSON, productsJSON, associatedJSON, pickupJSON, sellerJSON, now)

	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return purchase.Purchase{}, err
	}
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, clientID, documentNumber string) (purchase.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM tracking_purchases
		WHERE client_id = $1 AND document_number = $2
	`, clientID, documentNumber)

	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return purchase.Purchase{}, fmt.Errorf("purchase %s/%s: %w", clientID, documentNumber, storage.ErrNotFound)
	}
	return p, err
}

func (s *Store) FindPurchase(ctx context.Context, documentNumber, typeCode string) (purchase.Purchase, error) {
	number := document.StripLeadingZeros(document.SanitizeNumber(documentNumber))

	// Stored numbers are already sanitized at ingestion, so stripping padding
	// on both sides makes padded folios resolve.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM tracking_purchases
		WHERE ltrim(document_number, '0') = $1
		ORDER BY updated_at DESC
	`, number)
	if err != nil {
		return purchase.Purchase{}, err
	}
	defer rows.Close()

	code := strings.ToUpper(strings.TrimSpace(typeCode))
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return purchase.Purchase{}, err
		}
		if code == "" || document.TypeCode(p.DocumentType) == code {
			return p, nil
		}
	}
	if err := rows.Err(); err != nil {
		return purchase.Purchase{}, err
	}
	return purchase.Purchase{}, fmt.Errorf("purchase %s: %w", documentNumber, storage.ErrNotFound)
}

func (s *Store) ListPurchases(ctx context.Context, clientID string, page, perPage int) ([]purchase.Purchase, int, error) {
	return s.query(ctx, clientID, "", page, perPage)
}

func (s *Store) SearchPurchases(ctx context.Context, clientID, query string, page, perPage int) ([]purchase.Purchase, int, error) {
	return s.query(ctx, clientID, query, page, perPage)
}

func (s *Store) DeletePurchases(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tracking_purchases WHERE client_id = $1
	`, clientID)
	return err
}

func (s *Store) query(ctx context.Context, clientID, query string, page, perPage int) ([]purchase.Purchase, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	where := `client_id = $1`
	args := []any{clientID}
	if q := strings.TrimSpace(query); q != "" {
		where += ` AND (document_number ILIKE $2 OR products::text ILIKE $2)`
		args = append(args, "%"+escapeLike(q)+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_purchases WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+purchaseColumns+`
		FROM tracking_purchases
		WHERE `+where+`
		ORDER BY purchase_date DESC, document_number DESC
		LIMIT $%d OFFSET $%d
	`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []purchase.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	return result, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row scanner) (purchase.Purchase, error) {
	var (
		p              purchase.Purchase
		traceRaw       []byte
		productsRaw    []byte
		associatedRaw  []byte
		pickupRaw      []byte
		sellerRaw      []byte
	)

	err := row.Scan(&p.ID, &p.ClientID, &p.DocumentType, &p.DocumentNumber, &p.PurchaseDate,
		&p.DeliveryType, &p.DeliveryAddress, &p.Total, &p.Dimensioned,
		&traceRaw, &productsRaw, &associatedRaw, &pickupRaw, &sellerRaw,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return purchase.Purchase{}, err
	}

	if len(traceRaw) > 0 {
		if err := json.Unmarshal(traceRaw, &p.Traceability); err != nil {
			return purchase.Purchase{}, fmt.Errorf("unmarshal traceability: %w", err)
		}
		restorePresence(p.Traceability)
	}
	if len(productsRaw) > 0 {
		if err := json.Unmarshal(productsRaw, &p.Products); err != nil {
			return purchase.Purchase{}, fmt.Errorf("unmarshal products: %w", err)
		}
	}
	if len(associatedRaw) > 0 {
		if err := json.Unmarshal(associatedRaw, &p.AssociatedInvoices); err != nil {
			return purchase.Purchase{}, fmt.Errorf("unmarshal associated invoices: %w", err)
		}
	}
	if len(pickupRaw) > 0 {
		_ = json.Unmarshal(pickupRaw, &p.Pickup)
	}
	if len(sellerRaw) > 0 {
		_ = json.Unmarshal(sellerRaw, &p.Seller)
	}
	return p, nil
}

// restorePresence rebuilds the presence booleans the JSON round trip drops.
// Stored entries with omitted flags were absent upstream, so a non-nil
// pointer is the only present signal after a reload; present-null distinctions
// only matter at ingestion time, before the record is persisted.
func restorePresence(entries []purchase.TraceEntry) {
	for i := range entries {
		if entries[i].ProcessedFlag != nil {
			entries[i].ProcessedFlagSet = true
		}
		if entries[i].Date != nil {
			entries[i].DateSet = true
		}
	}
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *purchase.Pickup:
		if val == nil {
			return nil, nil
		}
	case *purchase.Seller:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func escapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}
