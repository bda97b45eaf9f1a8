package stepper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFolding(t *testing.T) {
	n := NewNormalizer(nil)

	cases := map[string]string{
		"Pedido Ingresado":       "pedido ingresado",
		"  pedido   ingresado  ": "pedido ingresado",
		"Preparación de Pedido":  "preparacion de pedido",
		"PREPARACIÓN DE PEDIDO":  "preparacion de pedido",
		"Pedido Entregado":       "pedido entregado",
		"":                       "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, n.Normalize(raw), "raw=%q", raw)
	}
}

func TestNormalizeAliases(t *testing.T) {
	n := NewNormalizer(nil)

	assert.Equal(t, "pedido aprobado", n.Normalize("Pedido Pagado"))
	assert.Equal(t, "disponible para retiro", n.Normalize("Pendiente de Envío"))
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(nil)

	for _, raw := range []string{"Pedido Pagado", "Preparación de Pedido", "disponible para retiro", ""} {
		once := n.Normalize(raw)
		assert.Equal(t, once, n.Normalize(once), "raw=%q", raw)
	}
}

func TestNormalizeCustomAliasTableMayCarryAccents(t *testing.T) {
	n := NewNormalizer(AliasTable{"Pedido en Ruta": "Preparación de pedido"})

	assert.Equal(t, "preparacion de pedido", n.Normalize("pedido en ruta"))
}
