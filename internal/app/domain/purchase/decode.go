package purchase

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dvimperial/tracking_service/internal/app/domain/document"
)

// The upstream documents API went through three incompatible payload
// revisions: Spanish field names, English field names and the legacy
// `traceability.steps` shape. Everything here normalizes those to the single
// canonical Purchase shape at the ingestion boundary so no downstream code
// has to care which revision produced a record.

// DecodeListing parses a documents-API response body. Malformed or partial
// payloads yield an empty listing rather than an error; the listing endpoint
// treats "nothing decoded" as an empty page.
func DecodeListing(raw []byte) Listing {
	root := gjson.ParseBytes(raw)

	var purchases []Purchase
	list := firstOf(root, "compras", "documents")
	list.ForEach(func(_, doc gjson.Result) bool {
		p := decodePurchase(doc)
		if strings.TrimSpace(p.DocumentNumber) != "" {
			purchases = append(purchases, p)
		}
		return true
	})

	listing := Listing{
		User:       firstOf(root, "usuario", "user").String(),
		Purchases:  purchases,
		Total:      int(root.Get("total").Int()),
		Page:       int(root.Get("page").Int()),
		PerPage:    int(root.Get("perPage").Int()),
		TotalPages: int(root.Get("totalPages").Int()),
	}
	if listing.Total == 0 {
		listing.Total = len(purchases)
	}
	if listing.Page == 0 {
		listing.Page = 1
	}
	if listing.PerPage == 0 {
		listing.PerPage = len(purchases)
	}
	if listing.TotalPages == 0 {
		listing.TotalPages = 1
	}
	return listing
}

// DecodeLegacyInvoice parses the legacy single-document shape
// (number_printed, traceability.steps, DetailsProduct). The second return is
// false when the payload does not describe a document.
func DecodeLegacyInvoice(raw []byte) (Purchase, bool) {
	doc := gjson.ParseBytes(raw)
	if !doc.Get("number_printed").Exists() && !doc.Get("type_document").Exists() {
		return Purchase{}, false
	}
	number := document.StripLeadingZeros(document.SanitizeNumber(doc.Get("number_printed").String()))
	if number == "" {
		return Purchase{}, false
	}

	p := Purchase{
		DocumentType:   legacyTypeLabel(doc),
		DocumentNumber: number,
		PurchaseDate:   doc.Get("date_issue").String(),
		Total:          doc.Get("total").Float(),
	}

	doc.Get("traceability.steps").ForEach(func(_, step gjson.Result) bool {
		p.Traceability = append(p.Traceability, decodeLegacyStep(step))
		return true
	})

	doc.Get("DetailsProduct").ForEach(func(_, item gjson.Result) bool {
		p.Products = append(p.Products, decodeProduct(item))
		return true
	})

	if pickup := doc.Get("pickup"); pickup.Exists() {
		p.Pickup = decodePickup(pickup)
		p.DeliveryType = p.Pickup.Title
		p.DeliveryAddress = p.Pickup.Text
	}
	if seller := doc.Get("seller"); seller.Exists() {
		p.Seller = &Seller{
			Title: seller.Get("title").String(),
			Name:  seller.Get("name").String(),
			Mail:  seller.Get("mail").String(),
			Phone: seller.Get("phone").String(),
		}
	}
	if p.IsSalesNote() {
		p.AssociatedInvoices = decodeAssociated(doc)
	}
	p.Dimensioned = hasMachinable(p.Traceability)
	return p, true
}

func decodePurchase(doc gjson.Result) Purchase {
	p := Purchase{
		DocumentType:    firstOf(doc, "tipoDocumento", "documentType").String(),
		DocumentNumber:  document.SanitizeNumber(firstOf(doc, "numeroDocumento", "number").String()),
		PurchaseDate:    firstOf(doc, "fechaCompra", "purchaseDate").String(),
		DeliveryType:    firstOf(doc, "tipoEntrega", "deliveryType").String(),
		DeliveryAddress: firstOf(doc, "direccionEntrega", "deliveryAddress").String(),
		Total:           firstOf(doc, "total", "amount").Float(),
	}

	trace := firstOf(doc, "trazabilidad", "traceability.steps", "traceability")
	trace.ForEach(func(_, entry gjson.Result) bool {
		p.Traceability = append(p.Traceability, decodeTraceEntry(entry))
		return true
	})

	firstOf(doc, "productos", "items").ForEach(func(_, item gjson.Result) bool {
		p.Products = append(p.Products, decodeProduct(item))
		return true
	})

	if p.IsSalesNote() {
		p.AssociatedInvoices = decodeAssociated(doc)
	}

	if pickup := doc.Get("pickup"); pickup.Exists() {
		p.Pickup = decodePickup(pickup)
	}

	p.Dimensioned = firstOf(doc, "esDimensionado", "dimensionado").Bool() || hasMachinable(p.Traceability)
	return p
}

func decodeTraceEntry(t gjson.Result) TraceEntry {
	entry := TraceEntry{
		Stage:        firstOf(t, "etapa", "stage", "scope").String(),
		StageLabel:   firstOf(t, "glosa", "label", "title.text").String(),
		Note:         firstOf(t, "observacion", "observation", "descripcion").String(),
		RecordedAt:   firstOf(t, "fechaRegistro", "date").String(),
		LegacyStatus: firstOf(t, "estado", "state").String(),
	}

	if orden := firstOf(t, "orden", "order"); orden.Type == gjson.Number {
		n := int(orden.Int())
		entry.Order = &n
	}

	if flag := t.Get("indProcesado"); flag.Exists() {
		entry.ProcessedFlagSet = true
		if flag.Type == gjson.Number {
			n := int(flag.Int())
			entry.ProcessedFlag = &n
		}
	}

	if title := t.Get("title"); title.IsObject() {
		text := title.Get("text").String()
		if text == "" {
			text = entry.Stage
		}
		entry.Title = &StepTitle{
			Text:  text,
			Color: title.Get("color").String(),
			Bold:  title.Get("isBold").Bool(),
		}
	}

	if desc := t.Get("description"); desc.Exists() {
		s := desc.String()
		entry.Description = &s
	}

	if date := t.Get("date"); date.Exists() {
		entry.DateSet = true
		if date.Type != gjson.Null {
			s := date.String()
			entry.Date = &s
		}
	}

	if icon := strings.TrimSpace(t.Get("icon").String()); icon != "" {
		entry.Icon = icon
	}

	if machinable := t.Get("machinable"); machinable.IsObject() && len(machinable.Get("orders").Array()) > 0 {
		entry.Machinable = []byte(machinable.Raw)
	}

	return entry
}

// decodeLegacyStep maps one legacy traceability.steps element. The legacy API
// never sent indProcesado; a dated step counts as completed and an undated
// one stays pending, which is how the storefront interpreted it.
func decodeLegacyStep(step gjson.Result) TraceEntry {
	entry := decodeTraceEntry(step)
	title := step.Get("title.text").String()
	entry.Stage = title
	entry.StageLabel = title
	entry.Note = step.Get("description").String()
	entry.RecordedAt = step.Get("date").String()
	entry.ProcessedFlagSet = true
	if entry.RecordedAt != "" {
		one := 1
		entry.ProcessedFlag = &one
	}
	if strings.Contains(step.Get("icon").String(), "complete") {
		entry.LegacyStatus = "activo"
	} else {
		entry.LegacyStatus = "pendiente"
	}
	return entry
}

func decodeProduct(item gjson.Result) Product {
	qty := int(firstOf(item, "cantidad", "quantity").Int())
	if qty == 0 {
		qty = 1
	}
	return Product{
		Quantity:    qty,
		Code:        firstOf(item, "codigo", "code").String(),
		Unit:        firstOf(item, "unidadMedida", "description_unimed", "code_unimed").String(),
		Image:       firstOf(item, "imagen", "image").String(),
		Description: firstOf(item, "name", "nombre", "product_name", "titulo", "title", "descripcion", "description").String(),
		Status:      firstOf(item, "estado", "state_description").String(),
	}
}

func decodePickup(pickup gjson.Result) *Pickup {
	return &Pickup{
		Title:     pickup.Get("title").String(),
		Text:      pickup.Get("text").String(),
		DateTitle: pickup.Get("title_date").String(),
		Date:      pickup.Get("date").String(),
		Icon:      pickup.Get("icon").String(),
	}
}

func decodeAssociated(doc gjson.Result) []AssociatedInvoice {
	var out []AssociatedInvoice
	firstOf(doc, "facturasAsociadas", "associatedInvoices").ForEach(func(_, f gjson.Result) bool {
		inv := AssociatedInvoice{
			Number:   document.SanitizeNumber(firstOf(f, "numeroFactura", "number").String()),
			IssuedAt: strings.TrimSpace(firstOf(f, "fechaEmision", "fecha").String()),
			ID:       firstOf(f, "idFactura", "id").Int(),
		}
		if inv.Number != "" || inv.IssuedAt != "" {
			out = append(out, inv)
		}
		return true
	})
	SortAssociated(out)
	return out
}

// SortAssociated orders associated invoices the way the listing shows them:
// invoices with a real number first, then newest issue date, then id.
func SortAssociated(invoices []AssociatedInvoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		aReal := a.Number != "" && a.Number != "0"
		bReal := b.Number != "" && b.Number != "0"
		if aReal != bReal {
			return aReal
		}
		at, _ := document.ParseDate(a.IssuedAt)
		bt, _ := document.ParseDate(b.IssuedAt)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.ID > b.ID
	})
}

func legacyTypeLabel(doc gjson.Result) string {
	if code := doc.Get("type_document").String(); code != "" {
		return document.TypeLabel(code)
	}
	return doc.Get("label_document").String()
}

func hasMachinable(entries []TraceEntry) bool {
	for _, e := range entries {
		if len(e.Machinable) > 0 {
			return true
		}
	}
	return false
}

// firstOf returns the first path present on the result.
func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
