// Package purchase defines the purchase document model shared across the
// service: one record per boleta, factura or nota de venta, carrying the
// traceability events and product lines reported by the commerce backend.
package purchase

import (
	"encoding/json"
	"time"
)

// StepTitle is backend-precomputed display styling for a traceability event.
type StepTitle struct {
	Text  string `json:"text"`
	Color string `json:"color"`
	Bold  bool   `json:"isBold"`
}

// TraceEntry is one raw traceability event. The upstream schema went through
// several revisions, so almost every field is optional; ingestion normalizes
// all revisions to this single shape before any matching logic runs.
type TraceEntry struct {
	// Stage is the canonical stage field ("etapa") of newer payloads.
	// StageLabel is the free-text label ("glosa") every revision carries.
	Stage      string `json:"etapa,omitempty"`
	StageLabel string `json:"glosa"`

	Note         string `json:"observacion,omitempty"`
	RecordedAt   string `json:"fechaRegistro,omitempty"`
	LegacyStatus string `json:"estado,omitempty"`

	// Order is an explicit sequencing hint. When any entry of a list carries
	// one, the list is sorted ascending by it before matching.
	Order *int `json:"orden,omitempty"`

	// ProcessedFlag is the tri-state completion indicator: 1 completed,
	// 0 in progress, null pending. ProcessedFlagSet records whether the
	// field appeared in the payload at all; a present null is authoritative
	// while an absent field falls back to LegacyStatus interpretation.
	ProcessedFlag    *int `json:"indProcesado,omitempty"`
	ProcessedFlagSet bool `json:"-"`

	// Backend-precomputed display fields. When present they take precedence
	// over locally derived styling. Description distinguishes absent from
	// empty; Date distinguishes absent from present-but-null via DateSet.
	Title       *StepTitle `json:"title,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Description *string    `json:"description,omitempty"`
	Date        *string    `json:"date,omitempty"`
	DateSet     bool       `json:"-"`

	// Machinable carries dimensioned-order (custom cut) sub-process detail
	// through unmodified.
	Machinable json.RawMessage `json:"machinable,omitempty"`
}

// Product is one line item of the purchase.
type Product struct {
	Quantity    int    `json:"cantidad"`
	Code        string `json:"codigo"`
	Unit        string `json:"unidadMedida,omitempty"`
	Image       string `json:"imagen,omitempty"`
	Description string `json:"descripcion"`
	Status      string `json:"estado"`
}

// AssociatedInvoice links a sales note to the invoices issued against it.
type AssociatedInvoice struct {
	Number   string `json:"numeroFactura"`
	IssuedAt string `json:"fechaEmision"`
	ID       int64  `json:"idFactura"`
}

// Pickup is the delivery or store-pickup detail block.
type Pickup struct {
	Title     string `json:"title,omitempty"`
	Text      string `json:"text,omitempty"`
	DateTitle string `json:"title_date,omitempty"`
	Date      string `json:"date,omitempty"`
	Icon      string `json:"icon,omitempty"`
}

// Seller is the sales contact attached to a document.
type Seller struct {
	Title string `json:"title,omitempty"`
	Name  string `json:"name,omitempty"`
	Mail  string `json:"mail,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Purchase is one customer document with its traceability and products.
type Purchase struct {
	ID                 string              `json:"-"`
	ClientID           string              `json:"-"`
	DocumentType       string              `json:"tipoDocumento"`
	DocumentNumber     string              `json:"numeroDocumento"`
	PurchaseDate       string              `json:"fechaCompra"`
	DeliveryType       string              `json:"tipoEntrega"`
	DeliveryAddress    string              `json:"direccionEntrega"`
	Total              float64             `json:"total"`
	Dimensioned        bool                `json:"esDimensionado"`
	Traceability       []TraceEntry        `json:"trazabilidad"`
	Products           []Product           `json:"productos,omitempty"`
	AssociatedInvoices []AssociatedInvoice `json:"facturasAsociadas,omitempty"`
	Pickup             *Pickup             `json:"pickup,omitempty"`
	Seller             *Seller             `json:"seller,omitempty"`
	CreatedAt          time.Time           `json:"-"`
	UpdatedAt          time.Time           `json:"-"`
}

// Listing is one page of purchases for a client.
type Listing struct {
	User       string     `json:"usuario,omitempty"`
	Purchases  []Purchase `json:"compras"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	TotalPages int        `json:"totalPages"`
}

// HasTraceability reports whether the document carries at least one event.
func (p Purchase) HasTraceability() bool {
	return len(p.Traceability) > 0
}

// IsSalesNote reports whether associated invoices may attach to the document.
// Only sales notes carry them per the backend contract.
func (p Purchase) IsSalesNote() bool {
	return containsFold(p.DocumentType, "nota") && containsFold(p.DocumentType, "venta")
}
