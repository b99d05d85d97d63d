package domain

import "encoding/json"

// Outcome is the tri-state result of a coordinated request. Callers are
// expected to render Queued ("offline, will sync later") differently
// from a hard failure.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeQueued  Outcome = "queued"
	OutcomeFailed  Outcome = "failed"
)

// Result is what the coordinator hands back to domain controllers.
type Result struct {
	Outcome Outcome         `json:"outcome"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Err     error           `json:"-"`

	// FromCache marks a GET served from the cache fallback; such data
	// is stale by definition.
	FromCache bool `json:"fromCache,omitempty"`
	// Mutation is set on Queued outcomes.
	Mutation *Mutation `json:"mutation,omitempty"`
	// Attempts counts network attempts made before settling.
	Attempts int `json:"attempts,omitempty"`
}

// OK reports whether the request produced usable data.
func (r *Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Queued reports whether the mutation was buffered for later replay.
func (r *Result) Queued() bool {
	return r.Outcome == OutcomeQueued
}
