package stepper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func flagged(label string, flag int) purchase.TraceEntry {
	return purchase.TraceEntry{StageLabel: label, ProcessedFlag: intPtr(flag), ProcessedFlagSet: true}
}

func states(steps []Step) []State {
	out := make([]State, len(steps))
	for i, s := range steps {
		out[i] = s.State
	}
	return out
}

func TestReconcileFixedLength(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	for _, entries := range [][]purchase.TraceEntry{
		nil,
		{},
		{flagged("Pedido Ingresado", 1)},
		{
			flagged("Pedido Ingresado", 1),
			flagged("Pedido Aprobado", 1),
			flagged("Preparación de pedido", 1),
			flagged("Disponible para retiro", 1),
			flagged("Pedido Entregado", 1),
			flagged("Etapa Desconocida", 1),
		},
	} {
		steps := r.Reconcile(entries, nil)
		require.Len(t, steps, 5)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	r := NewReconciler(nil, nil, nil)
	entries := []purchase.TraceEntry{
		flagged("Pedido Ingresado", 1),
		flagged("Pedido Aprobado", 0),
	}
	products := []purchase.Product{{Code: "A", Status: "Pendiente"}}

	first := r.Reconcile(entries, products)
	second := r.Reconcile(entries, products)
	assert.Equal(t, first, second)
}

func TestReconcileLabelCanonicalization(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	// Accent drift, case drift and alias spellings all land on the same
	// canonical stages, and the output labels are the display labels.
	steps := r.Reconcile([]purchase.TraceEntry{
		flagged("PEDIDO INGRESADO", 1),
		flagged("Pedido Pagado", 1),
		flagged("preparacion   de pedido", 1),
		flagged("Pendiente de Envío", 1),
	}, nil)

	assert.Equal(t, StateCompleted, steps[0].State)
	assert.Equal(t, StateCompleted, steps[1].State)
	assert.Equal(t, StateCompleted, steps[2].State)
	assert.Equal(t, StateCompleted, steps[3].State)
	assert.Equal(t, StatePending, steps[4].State)

	assert.Equal(t, "Pedido Ingresado", steps[0].Label)
	assert.Equal(t, "Pedido Aprobado", steps[1].Label)
	assert.Equal(t, "Preparación de pedido", steps[2].Label)
	assert.Equal(t, "Disponible para retiro", steps[3].Label)
	assert.Equal(t, "Pedido Entregado", steps[4].Label)
}

func TestReconcileFirstMatchWins(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true, Note: "first"},
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(0), ProcessedFlagSet: true, Note: "second"},
	}, nil)

	assert.Equal(t, StateCompleted, steps[0].State)
	assert.Equal(t, "first", steps[0].Note)
}

func TestReconcileCanonicalKeyBeatsAlias(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	// An alias entry appearing before the canonical one must not shadow it:
	// the canonical-key pass runs before any alias pass.
	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Proceso de Fabricación", ProcessedFlag: intPtr(0), ProcessedFlagSet: true},
		{StageLabel: "Preparación de pedido", ProcessedFlag: intPtr(1), ProcessedFlagSet: true},
	}, nil)

	assert.Equal(t, StateCompleted, steps[2].State)
}

func TestReconcileProcessedFlagAuthoritative(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	// A present flag wins even when the legacy status text says otherwise; a
	// present null means pending, not "consult the fallback".
	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(0), ProcessedFlagSet: true, LegacyStatus: "Finalizado"},
		{StageLabel: "Pedido Aprobado", ProcessedFlag: nil, ProcessedFlagSet: true, LegacyStatus: "Finalizado"},
		{StageLabel: "Preparación de pedido", LegacyStatus: "Finalizado"},
		{StageLabel: "Disponible para retiro", LegacyStatus: "algo raro"},
	}, nil)

	assert.Equal(t, StateInProgress, steps[0].State)
	assert.Equal(t, StatePending, steps[1].State)
	assert.Equal(t, StateCompleted, steps[2].State)
	assert.Equal(t, StatePending, steps[3].State)
}

func TestReconcileOrderHint(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	// The hinted entry sorts ahead of the unhinted duplicate, so it is the
	// one the first-match scan sees.
	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(0), ProcessedFlagSet: true},
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true, Order: intPtr(1)},
	}, nil)

	assert.Equal(t, StateCompleted, steps[0].State)
}

func TestReconcileContinuityFlags(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	// Completed, then four pending: the gap flag fires only at the boundary
	// and the downstream flag propagates through the whole pending run.
	steps := r.Reconcile([]purchase.TraceEntry{
		flagged("Pedido Ingresado", 1),
	}, nil)

	require.Equal(t, []State{StateCompleted, StatePending, StatePending, StatePending, StatePending}, states(steps))

	assert.True(t, steps[0].HasPendingAfter)
	for i := 1; i < len(steps); i++ {
		assert.False(t, steps[i].HasPendingAfter, "step %d", i)
		assert.True(t, steps[i].HasPendingFrom, "step %d", i)
	}
	assert.False(t, steps[0].HasPendingFrom)
}

func TestReconcileContinuityAfterInProgress(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	steps := r.Reconcile([]purchase.TraceEntry{
		flagged("Pedido Ingresado", 1),
		flagged("Pedido Aprobado", 0),
	}, nil)

	require.Equal(t, []State{StateCompleted, StateInProgress, StatePending, StatePending, StatePending}, states(steps))

	// No completed-then-pending boundary exists, but the in-progress step
	// still seeds the downstream run.
	for _, s := range steps {
		assert.False(t, s.HasPendingAfter)
	}
	assert.False(t, steps[1].HasPendingFrom)
	assert.True(t, steps[2].HasPendingFrom)
	assert.True(t, steps[3].HasPendingFrom)
	assert.True(t, steps[4].HasPendingFrom)
}

func TestReconcileAllPendingNoFlags(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	for _, s := range r.Reconcile(nil, nil) {
		assert.False(t, s.HasPendingAfter)
		assert.False(t, s.HasPendingFrom)
	}
}

func TestReconcileDatePrecedence(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true,
			Date: strPtr("02 de Enero del 2024"), DateSet: true, RecordedAt: "2024-01-02T10:00:00"},
		// Present-but-null date: render no date, never the raw timestamp.
		{StageLabel: "Pedido Aprobado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true,
			Date: nil, DateSet: true, RecordedAt: "2024-01-03T10:00:00"},
		{StageLabel: "Preparación de pedido", ProcessedFlag: intPtr(1), ProcessedFlagSet: true,
			RecordedAt: "2024-01-04T10:00:00"},
	}, nil)

	assert.Equal(t, "02 de Enero del 2024", steps[0].Date)
	assert.Equal(t, "", steps[1].Date)
	assert.Equal(t, "2024-01-04T10:00:00", steps[2].Date)
}

func TestReconcilePendingStepCarriesNoDate(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: nil, ProcessedFlagSet: true,
			Date: strPtr("02 de Enero del 2024"), DateSet: true, RecordedAt: "2024-01-02T10:00:00"},
	}, nil)

	assert.Equal(t, StatePending, steps[0].State)
	assert.Equal(t, "", steps[0].Date)
}

func TestReconcileDescriptionPrecedence(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true,
			Description: strPtr("Recibimos tu pedido"), Note: "obs"},
		// Present-but-empty description still wins over the observation.
		{StageLabel: "Pedido Aprobado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true,
			Description: strPtr(""), Note: "obs"},
		{StageLabel: "Preparación de pedido", ProcessedFlag: intPtr(1), ProcessedFlagSet: true, Note: "obs"},
	}, nil)

	assert.Equal(t, "Recibimos tu pedido", steps[0].Note)
	assert.Equal(t, "", steps[1].Note)
	assert.Equal(t, "obs", steps[2].Note)
}

func TestReconcileIconPrecedence(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true,
			Icon: "https://cdn.example.com/custom.svg"},
		{StageLabel: "Pedido Aprobado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true, Icon: "null"},
		{StageLabel: "Preparación de pedido", ProcessedFlag: intPtr(0), ProcessedFlagSet: true, Icon: ""},
	}, nil)

	assert.Equal(t, "https://cdn.example.com/custom.svg", steps[0].Icon)
	assert.Equal(t, IconComplete, steps[1].Icon)
	assert.Equal(t, IconInProgress, steps[2].Icon)
	assert.Equal(t, IconPending, steps[3].Icon)
}

func TestReconcileTitlePrecedence(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true,
			Title: &purchase.StepTitle{Text: "Pedido Ingresado", Color: "#123456", Bold: false}},
		{StageLabel: "Pedido Aprobado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true},
		{StageLabel: "Preparación de pedido", ProcessedFlag: intPtr(0), ProcessedFlagSet: true},
	}, nil)

	assert.Equal(t, "#123456", steps[0].Color)
	assert.False(t, steps[0].Bold)

	assert.Equal(t, colorCompleted, steps[1].Color)
	assert.True(t, steps[1].Bold)

	assert.Equal(t, colorInProgress, steps[2].Color)
	assert.True(t, steps[2].Bold)

	assert.Equal(t, colorPending, steps[3].Color)
	assert.False(t, steps[3].Bold)
}

func TestReconcileProductBadges(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	products := []purchase.Product{
		{Code: "A", Status: "Pendiente"},
		{Code: "B", Status: "Pendiente"},
		{Code: "C", Status: "Entregado"},
		{Code: "D", Status: "pendiente"}, // product statuses compare exactly
	}

	steps := r.Reconcile([]purchase.TraceEntry{
		flagged("Pedido Ingresado", 1),
		flagged("Preparación de pedido", 0),
	}, products)

	assert.Equal(t, 2, steps[0].ProductCount)
	assert.Equal(t, 2, steps[2].ProductCount)

	// Pending steps never carry a badge even when products would match.
	assert.Equal(t, 0, steps[4].ProductCount)
}

func TestReconcileAliasSpellingsKeepOwnStatusLists(t *testing.T) {
	products := []purchase.Product{{Code: "A", Status: "Pendiente"}}
	entries := []purchase.TraceEntry{flagged("Pedido Aprobado", 1)}

	// "pedido aprobado" and its alias spelling "pedido pagado" each carry
	// their own allowed-status list in the default map. The aprobado list is
	// empty, so the badge stays zero no matter how the map iterates; repeat
	// with fresh reconcilers to pin that down.
	for i := 0; i < 50; i++ {
		steps := Reconcile(entries, products, nil, nil)
		require.Len(t, steps, 5)
		assert.Equal(t, 0, steps[1].ProductCount)
	}

	// A stage whose own key is absent from the map still falls back to an
	// alias spelling's list.
	statuses := StatusMap{"pendiente de envio": {"Pendiente"}}
	steps := Reconcile([]purchase.TraceEntry{flagged("Disponible para retiro", 1)}, products, nil, statuses)
	assert.Equal(t, 1, steps[3].ProductCount)
}

func TestMarkContinuityClearsStaleFlags(t *testing.T) {
	steps := []Step{
		{State: StateCompleted, HasPendingAfter: true},
		{State: StateCompleted},
		{State: StatePending},
	}

	MarkContinuity(steps)

	assert.False(t, steps[0].HasPendingAfter)
	assert.True(t, steps[1].HasPendingAfter)
	assert.True(t, steps[2].HasPendingFrom)
}

func TestReconcilePackageFunctionDefaults(t *testing.T) {
	steps := Reconcile([]purchase.TraceEntry{flagged("Pedido Ingresado", 1)}, nil, nil, nil)

	require.Len(t, steps, 5)
	assert.Equal(t, StateCompleted, steps[0].State)
}

func TestReconcileMissingOptionalFields(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	// Entries carrying nothing but a label must still reconcile cleanly.
	steps := r.Reconcile([]purchase.TraceEntry{
		{StageLabel: "Pedido Ingresado"},
		{Stage: "pedido aprobado"},
		{},
	}, nil)

	require.Len(t, steps, 5)
	for _, s := range steps {
		assert.Equal(t, StatePending, s.State)
	}
}

func TestReconcileInputNotMutated(t *testing.T) {
	r := NewReconciler(nil, nil, nil)

	entries := []purchase.TraceEntry{
		{StageLabel: "Pedido Aprobado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true, Order: intPtr(2)},
		{StageLabel: "Pedido Ingresado", ProcessedFlag: intPtr(1), ProcessedFlagSet: true, Order: intPtr(1)},
	}

	r.Reconcile(entries, nil)

	assert.Equal(t, "Pedido Aprobado", entries[0].StageLabel)
	assert.Equal(t, "Pedido Ingresado", entries[1].StageLabel)
}
