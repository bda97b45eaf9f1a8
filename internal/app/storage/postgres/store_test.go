package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"

	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
	"github.com/dvimperial/tracking_service/internal/app/storage"
)

var purchaseCols = []string{
	"id", "client_id", "document_type", "document_number", "purchase_date",
	"delivery_type", "delivery_address", "total", "dimensioned",
	"traceability", "products", "associated_invoices", "pickup", "seller",
	"created_at", "updated_at",
}

func purchaseRow(number string) []driver.Value {
	now := time.Now().UTC()
	return []driver.Value{
		"id-1", "11222333", "Boleta", number, "02-01-2024",
		"Despacho a domicilio", "Av. Siempre Viva 742", 59990.0, false,
		[]byte(`[{"glosa":"Pedido Ingresado","indProcesado":1}]`),
		[]byte(`[{"cantidad":1,"codigo":"SKU1","descripcion":"Taladro","estado":"Pendiente"}]`),
		[]byte(`[]`), nil, nil,
		now, now,
	}
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return New(db), mock, func() { db.Close() }
}

func TestUpsertPurchase(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	created := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO tracking_purchases").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("id-1", created))

	p, err := store.UpsertPurchase(context.Background(), purchase.Purchase{
		ClientID:       "11222333",
		DocumentType:   "Boleta",
		DocumentNumber: "123456",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.ID != "id-1" {
		t.Fatalf("id = %q, want id-1", p.ID)
	}
	if !p.CreatedAt.Equal(created) {
		t.Fatal("created_at not taken from returning clause")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertPurchaseValidation(t *testing.T) {
	store, _, done := newMock(t)
	defer done()

	if _, err := store.UpsertPurchase(context.Background(), purchase.Purchase{DocumentNumber: "1"}); err == nil {
		t.Fatal("expected error for missing client id")
	}
	if _, err := store.UpsertPurchase(context.Background(), purchase.Purchase{ClientID: "1"}); err == nil {
		t.Fatal("expected error for missing document number")
	}
}

func TestGetPurchase(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM tracking_purchases").
		WithArgs("11222333", "123456").
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(purchaseRow("123456")...))

	p, err := store.GetPurchase(context.Background(), "11222333", "123456")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.DocumentNumber != "123456" {
		t.Fatalf("number = %q", p.DocumentNumber)
	}
	if len(p.Traceability) != 1 || !p.Traceability[0].ProcessedFlagSet {
		t.Fatalf("presence flags not restored: %+v", p.Traceability)
	}
	if len(p.Products) != 1 || p.Products[0].Description != "Taladro" {
		t.Fatalf("unexpected products: %+v", p.Products)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetPurchaseNotFound(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM tracking_purchases").
		WithArgs("11222333", "999").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetPurchase(context.Background(), "11222333", "999")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPurchases(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tracking_purchases").
		WithArgs("11222333").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT (.+) FROM tracking_purchases").
		WithArgs("11222333", 2, 0).
		WillReturnRows(sqlmock.NewRows(purchaseCols).
			AddRow(purchaseRow("300")...).
			AddRow(purchaseRow("200")...))

	page, total, err := store.ListPurchases(context.Background(), "11222333", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(page) != 2 {
		t.Fatalf("page len = %d, want 2", len(page))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSearchPurchases(t *testing.T) {
	store, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tracking_purchases").
		WithArgs("11222333", "%taladro%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM tracking_purchases").
		WithArgs("11222333", "%taladro%", 10, 0).
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(purchaseRow("123456")...))

	result, total, err := store.SearchPurchases(context.Background(), "11222333", "taladro", 1, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(result) != 1 {
		t.Fatalf("unexpected result: total %d len %d", total, len(result))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	created, err := store.UpsertPurchase(ctx, purchase.Purchase{
		ClientID:       "11222333",
		DocumentType:   "Nota de Venta",
		DocumentNumber: "445566",
		PurchaseDate:   "05-03-2024",
		Total:          45990,
		Traceability: []purchase.TraceEntry{
			{StageLabel: "Pedido Ingresado", RecordedAt: "2024-03-05T10:00:00"},
		},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	defer func() {
		if err := store.DeletePurchases(ctx, "11222333"); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	}()

	got, err := store.GetPurchase(ctx, "11222333", "445566")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("id mismatch: %q vs %q", got.ID, created.ID)
	}

	if _, err := store.FindPurchase(ctx, "0000445566", "NVV"); err != nil {
		t.Fatalf("find by padded folio: %v", err)
	}

	_, total, err := store.ListPurchases(ctx, "11222333", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
}
