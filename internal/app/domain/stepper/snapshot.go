// Package stepper reconciles a purchase's raw traceability events onto the
// fixed canonical shipment stepper the storefront renders. The whole package
// is a deterministic, side-effect-free transform: same input list, same
// output snapshot, and malformed or partial input never produces an error,
// only pending steps.
package stepper

import "encoding/json"

// State is the derived completion state of one step.
type State int

const (
	StatePending State = iota
	StateInProgress
	StateCompleted
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateInProgress:
		return "in_progress"
	default:
		return "pending"
	}
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the state from its wire name, inverting MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "completed":
		*s = StateCompleted
	case "in_progress":
		*s = StateInProgress
	default:
		*s = StatePending
	}
	return nil
}

// Icon references handed to the rendering layer. IconPending is a sentinel,
// not a URL: it tells the renderer to draw the empty dot.
const (
	IconPending    = "pending"
	IconComplete   = "https://dvimperial.blob.core.windows.net/traceability/timeline_complete_icon.svg"
	IconInProgress = "https://dvimperial.blob.core.windows.net/traceability/timeline_in_progress_icon.svg"
)

// Default styling applied when the backend did not precompute a title.
const (
	colorCompleted  = "#4d4f57"
	colorInProgress = "#eb414a"
	colorPending    = "#b5b7bd"
)

// Step is one rendering-ready snapshot of a canonical stage. The label is
// always the canonical display label, never the raw backend wording, so the
// UI stays stable as the backend vocabulary drifts.
type Step struct {
	Label string `json:"label"`
	State State  `json:"estado"`
	Date  string `json:"fecha,omitempty"`
	Note  string `json:"observacion,omitempty"`

	Color string `json:"color"`
	Bold  bool   `json:"isBold"`
	Icon  string `json:"icon"`

	// Continuity flags drive the connecting-line styling between steps.
	// HasPendingAfter marks a completed step immediately followed by a
	// pending one; HasPendingFrom marks a pending step that follows a
	// completed or in-progress run, propagated through consecutive
	// pending steps.
	HasPendingAfter bool `json:"hasPendingAfter"`
	HasPendingFrom  bool `json:"hasPendingFrom"`

	// ProductCount is the number of line items currently sitting at this
	// stage. Always zero for pending steps.
	ProductCount int `json:"productCount"`
}

// Completed reports full completion. In-progress steps deliberately do not
// count: the tri-state State exists so callers never have to infer progress
// from icon contents.
func (s Step) Completed() bool { return s.State == StateCompleted }

// InProgress reports partial completion.
func (s Step) InProgress() bool { return s.State == StateInProgress }

// Pending reports that the stage has not been reached.
func (s Step) Pending() bool { return s.State == StatePending }
