package stepper

// Stage is one point of the canonical shipment lifecycle. The order of the
// stage table is the lifecycle order; it is configuration, never derived
// from data.
type Stage struct {
	Key          string
	DisplayLabel string
	Aliases      []string
}

// AliasTable maps historical stage spellings to their canonical key. Both
// sides are compared in normalized form; values should themselves be
// canonical keys so normalization stays idempotent.
type AliasTable map[string]string

// StatusMap maps a canonical stage key to the product status strings that
// place a line item at that stage. Entries reflect the backend status
// vocabulary as it drifted across revisions and are expected to grow.
type StatusMap map[string][]string

// DefaultStages is the five-stage lifecycle the storefront renders.
func DefaultStages() []Stage {
	return []Stage{
		{Key: "pedido ingresado", DisplayLabel: "Pedido Ingresado"},
		{Key: "pedido aprobado", DisplayLabel: "Pedido Aprobado", Aliases: []string{"pedido pagado"}},
		{Key: "preparacion de pedido", DisplayLabel: "Preparación de pedido", Aliases: []string{"proceso de fabricacion", "pedido en ruta"}},
		{Key: "disponible para retiro", DisplayLabel: "Disponible para retiro", Aliases: []string{"pendiente de envio"}},
		{Key: "pedido entregado", DisplayLabel: "Pedido Entregado"},
	}
}

// DefaultAliases covers the synonym pairs observed across backend payload
// revisions.
func DefaultAliases() AliasTable {
	return AliasTable{
		"pedido pagado":      "pedido aprobado",
		"pendiente de envio": "disponible para retiro",
	}
}

// DefaultStatusMap carries the per-stage allowed product statuses, including
// the historical spellings retired stages still report against.
func DefaultStatusMap() StatusMap {
	return StatusMap{
		"pedido ingresado":       {"Pendiente", "Pendiente de despacho"},
		"pedido aprobado":        {},
		"pedido pagado":          {"Pendiente", "Pendiente de despacho"},
		"preparacion de pedido":  {"Pendiente"},
		"proceso de fabricacion": {"Pendiente"},
		"pendiente de envio":     {"Pendiente de despacho"},
		"pedido en ruta":         {"En Ruta"},
		"disponible para retiro": {"Producto Listo para Retiro"},
		"pedido entregado":       {"Entregado", "Producto Entregado"},
	}
}
