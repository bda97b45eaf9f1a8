// Package document holds helpers for retail document identity: type codes,
// folio formatting and the date formats the commerce backend emits.
package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Document type codes used by the legacy tracking API.
const (
	CodeBoleta    = "BLV"
	CodeFactura   = "FCV"
	CodeSalesNote = "NVV"
)

// FolioWidth is the zero-padded width the legacy API expects.
const FolioWidth = 10

var (
	numberPrefix = regexp.MustCompile(`^[Nn][°º]?\s*`)
	dmyPattern   = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})`)
	digitRuns    = regexp.MustCompile(`\d+`)
)

// SanitizeNumber strips display prefixes ("N°", "Nº") and surrounding
// whitespace from a document number.
func SanitizeNumber(raw string) string {
	return strings.TrimSpace(numberPrefix.ReplaceAllString(strings.TrimSpace(raw), ""))
}

// StripLeadingZeros removes folio padding for display. Non-numeric input is
// returned unchanged.
func StripLeadingZeros(number string) string {
	trimmed := strings.TrimLeft(number, "0")
	if trimmed == "" && number != "" {
		return "0"
	}
	return trimmed
}

// PadFolio left-pads a folio to the legacy API width.
func PadFolio(folio string) string {
	folio = SanitizeNumber(folio)
	if len(folio) >= FolioWidth {
		return folio
	}
	return strings.Repeat("0", FolioWidth-len(folio)) + folio
}

// FolioDigits extracts the numeric folio from free text ("N° 0001234" → "1234").
func FolioDigits(raw string) string {
	joined := strings.Join(digitRuns.FindAllString(raw, -1), "")
	return StripLeadingZeros(joined)
}

// TypeCode maps a human-readable document label to its legacy code. Unknown
// labels default to boleta, matching historical behavior.
func TypeCode(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "factura"):
		return CodeFactura
	case strings.Contains(l, "nota") && strings.Contains(l, "venta"):
		return CodeSalesNote
	default:
		return CodeBoleta
	}
}

// TypeLabel maps a legacy code back to its display label.
func TypeLabel(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case CodeFactura:
		return "Factura"
	case CodeSalesNote:
		return "Nota de Venta"
	case CodeBoleta:
		return "Boleta"
	default:
		return code
	}
}

// ParseDate accepts the two upstream date formats, dd-MM-yyyy (optionally
// followed by a time) and ISO-8601. The second return is false when the value
// cannot be interpreted as a date.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("02-01-2006", m[1]+"-"+m[2]+"-"+m[3])
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var spanishMonths = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// FormatSpanish renders a date as the storefront does: "02 de Enero del 2006".
// Unparseable input is returned as-is so the UI still shows something.
func FormatSpanish(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return fmt.Sprintf("%02d de %s del %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
