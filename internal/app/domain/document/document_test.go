package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeNumber(t *testing.T) {
	cases := map[string]string{
		"N° 123456":     "123456",
		"Nº123456":      "123456",
		"n° 123456":     "123456",
		"N 123456":      "123456",
		"  123456  ":    "123456",
		"123456":        "123456",
		"NV 123":        "V 123", // only the number prefix is stripped
		"":              "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, SanitizeNumber(raw), "raw=%q", raw)
	}
}

func TestStripLeadingZeros(t *testing.T) {
	assert.Equal(t, "12345", StripLeadingZeros("0000012345"))
	assert.Equal(t, "12345", StripLeadingZeros("12345"))
	assert.Equal(t, "0", StripLeadingZeros("0000"))
	assert.Equal(t, "", StripLeadingZeros(""))
}

func TestPadFolio(t *testing.T) {
	assert.Equal(t, "0000012345", PadFolio("12345"))
	assert.Equal(t, "0000012345", PadFolio("N° 12345"))
	assert.Equal(t, "1234567890", PadFolio("1234567890"))
	assert.Equal(t, "12345678901", PadFolio("12345678901"))
}

func TestFolioDigits(t *testing.T) {
	assert.Equal(t, "1234", FolioDigits("N° 0001234"))
	assert.Equal(t, "1234", FolioDigits("folio 12-34"))
	assert.Equal(t, "", FolioDigits("sin folio"))
}

func TestTypeCode(t *testing.T) {
	assert.Equal(t, CodeFactura, TypeCode("Factura Electrónica"))
	assert.Equal(t, CodeSalesNote, TypeCode("Nota de Venta"))
	assert.Equal(t, CodeBoleta, TypeCode("Boleta"))
	assert.Equal(t, CodeBoleta, TypeCode("algo desconocido"))
	assert.Equal(t, CodeBoleta, TypeCode(""))
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "Factura", TypeLabel("FCV"))
	assert.Equal(t, "Nota de Venta", TypeLabel("nvv"))
	assert.Equal(t, "Boleta", TypeLabel("BLV"))
	assert.Equal(t, "XYZ", TypeLabel("XYZ"))
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("02-01-2024")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-02", got.Format("2006-01-02"))

	got, ok = ParseDate("02-01-2024 15:04:05")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-02", got.Format("2006-01-02"))

	got, ok = ParseDate("2024-01-02T15:04:05")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-02", got.Format("2006-01-02"))

	got, ok = ParseDate("2024-01-02")
	assert.True(t, ok)
	assert.Equal(t, "2024-01-02", got.Format("2006-01-02"))

	_, ok = ParseDate("")
	assert.False(t, ok)
	_, ok = ParseDate("no es fecha")
	assert.False(t, ok)
}

func TestFormatSpanish(t *testing.T) {
	assert.Equal(t, "02 de Enero del 2024", FormatSpanish("02-01-2024"))
	assert.Equal(t, "15 de Septiembre del 2023", FormatSpanish("2023-09-15T08:30:00"))
	assert.Equal(t, "texto libre", FormatSpanish("  texto libre "))
}
