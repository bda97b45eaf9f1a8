package stepper

import (
	"sort"

	"github.com/dvimperial/tracking_service/internal/app/domain/purchase"
)

// Reconciler maps raw traceability events onto the canonical stage table.
// It holds only configuration; Reconcile itself is a pure function over its
// arguments and may be shared freely.
type Reconciler struct {
	norm     *Normalizer
	stages   []Stage
	statuses map[string][]string
}

// NewReconciler builds a reconciler. Nil arguments select the default stage
// table, alias table and status map.
func NewReconciler(stages []Stage, aliases AliasTable, statuses StatusMap) *Reconciler {
	if stages == nil {
		stages = DefaultStages()
	}
	if statuses == nil {
		statuses = DefaultStatusMap()
	}
	norm := NewNormalizer(aliases)

	// Status-map keys may use historical spellings, each carrying its own
	// allowed-status list. Fold for accent and case drift only; resolving
	// aliases here would collapse distinct spellings onto one key and make
	// the surviving list depend on map iteration order.
	folded := make(map[string][]string, len(statuses))
	for key, allowed := range statuses {
		folded[fold(key)] = allowed
	}

	return &Reconciler{norm: norm, stages: stages, statuses: folded}
}

// Reconcile derives one rendering-ready Step per canonical stage. The output
// always has exactly len(stages) elements in lifecycle order, regardless of
// how many input entries match, and re-invocation on the same input yields
// identical output.
func Reconcile(entries []purchase.TraceEntry, products []purchase.Product, stages []Stage, statuses StatusMap) []Step {
	return NewReconciler(stages, nil, statuses).Reconcile(entries, products)
}

// Reconcile implements the full pipeline: sort by explicit order hints,
// match entries to stages, derive per-step state, compute continuity flags,
// then count product badges.
func (r *Reconciler) Reconcile(entries []purchase.TraceEntry, products []purchase.Product) []Step {
	ordered := sortEntries(entries)

	steps := make([]Step, len(r.stages))
	for i, stage := range r.stages {
		steps[i] = r.deriveStep(r.findMatch(ordered, stage), stage)
	}

	MarkContinuity(steps)

	for i, stage := range r.stages {
		steps[i].ProductCount = r.countProducts(products, stage, steps[i])
	}

	return steps
}

// MarkContinuity recomputes the pending-adjacency flags in place, clearing
// stale values first. hasPendingFrom must be a single forward pass so the
// flag propagates through runs of consecutive pending steps. Callers that
// splice steps out of a reconciled snapshot use it to restore neighbor flags.
func MarkContinuity(steps []Step) {
	for i := range steps {
		steps[i].HasPendingAfter = i+1 < len(steps) && steps[i].Completed() && steps[i+1].Pending()
		steps[i].HasPendingFrom = false
		if i > 0 && steps[i].Pending() {
			prev := steps[i-1]
			steps[i].HasPendingFrom = prev.Completed() || prev.InProgress() || prev.HasPendingFrom
		}
	}
}

// sortEntries applies the explicit order hint when any entry carries one.
// Entries without a hint sort last; the sort is stable so backend order is
// otherwise preserved. The input slice is never mutated.
func sortEntries(entries []purchase.TraceEntry) []purchase.TraceEntry {
	hinted := false
	for _, e := range entries {
		if e.Order != nil {
			hinted = true
			break
		}
	}
	if !hinted {
		return entries
	}
	sorted := make([]purchase.TraceEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := sorted[i].Order, sorted[j].Order
		switch {
		case oi == nil:
			return false
		case oj == nil:
			return true
		default:
			return *oi < *oj
		}
	})
	return sorted
}

// findMatch returns the first entry naming the stage, scanning once for the
// canonical key and then once per alias. First match wins; a duplicate raw
// entry for the same stage is silently ignored.
func (r *Reconciler) findMatch(entries []purchase.TraceEntry, stage Stage) *purchase.TraceEntry {
	keys := make([]string, 0, 1+len(stage.Aliases))
	keys = append(keys, r.norm.Normalize(stage.Key))
	for _, alias := range stage.Aliases {
		keys = append(keys, r.norm.Normalize(alias))
	}

	for _, key := range keys {
		for i := range entries {
			if r.entryMatches(&entries[i], key) {
				return &entries[i]
			}
		}
	}
	return nil
}

func (r *Reconciler) entryMatches(entry *purchase.TraceEntry, key string) bool {
	if entry.Stage != "" && r.norm.Normalize(entry.Stage) == key {
		return true
	}
	return entry.StageLabel != "" && r.norm.Normalize(entry.StageLabel) == key
}

// deriveStep computes the snapshot for one stage. Backend-precomputed
// display fields win over local derivation; the label is always the
// canonical one.
func (r *Reconciler) deriveStep(match *purchase.TraceEntry, stage Stage) Step {
	step := Step{
		Label: stage.DisplayLabel,
		State: StatePending,
		Color: colorPending,
		Icon:  IconPending,
	}
	if match == nil {
		return step
	}

	step.State = deriveState(match)

	// A precomputed date field is authoritative even when null: null means
	// "no date", never "fall back to the recorded timestamp".
	if step.State != StatePending {
		switch {
		case match.DateSet:
			if match.Date != nil {
				step.Date = *match.Date
			}
		case match.RecordedAt != "":
			step.Date = match.RecordedAt
		}
	}

	if match.Description != nil {
		step.Note = *match.Description
	} else {
		step.Note = match.Note
	}

	if icon := match.Icon; icon != "" && icon != "null" {
		step.Icon = icon
	} else {
		switch step.State {
		case StateCompleted:
			step.Icon = IconComplete
		case StateInProgress:
			step.Icon = IconInProgress
		}
	}

	if match.Title != nil {
		step.Color = match.Title.Color
		step.Bold = match.Title.Bold
	} else {
		switch step.State {
		case StateCompleted:
			step.Color = colorCompleted
			step.Bold = true
		case StateInProgress:
			step.Color = colorInProgress
			step.Bold = true
		}
	}

	return step
}

// deriveState applies the processed-flag contract: when the field appeared
// in the payload it is authoritative, including a present null, and the
// legacy status text is consulted only when the field was entirely absent.
func deriveState(entry *purchase.TraceEntry) State {
	if entry.ProcessedFlagSet {
		if entry.ProcessedFlag == nil {
			return StatePending
		}
		switch *entry.ProcessedFlag {
		case 1:
			return StateCompleted
		case 0:
			return StateInProgress
		default:
			return StatePending
		}
	}
	return stateFromLegacyStatus(entry.LegacyStatus)
}

var completedStatuses = map[string]struct{}{
	"activo":     {},
	"finalizado": {},
	"completado": {},
	"entregado":  {},
}

func stateFromLegacyStatus(status string) State {
	if _, ok := completedStatuses[fold(status)]; ok {
		return StateCompleted
	}
	return StatePending
}

// countProducts counts line items whose status places them at this stage.
// Pending steps never carry a badge. The canonical key is consulted first;
// alias spellings only when the map has no entry for it, so a stage whose
// own list is empty stays at zero.
func (r *Reconciler) countProducts(products []purchase.Product, stage Stage, step Step) int {
	if step.Pending() {
		return 0
	}

	allowed, ok := r.statuses[fold(stage.Key)]
	for _, alias := range stage.Aliases {
		if ok {
			break
		}
		allowed, ok = r.statuses[fold(alias)]
	}
	if !ok || len(allowed) == 0 {
		return 0
	}

	count := 0
	for _, p := range products {
		for _, status := range allowed {
			if p.Status == status {
				count++
				break
			}
		}
	}
	return count
}
