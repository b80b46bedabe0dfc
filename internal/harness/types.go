package harness

import (
	"github.com/roach88/docindex/internal/ir"
)

// OutcomeEvent is one ingested version in the reference run.
type OutcomeEvent struct {
	Seq       int      `json:"seq"`
	Batch     int      `json:"batch"`
	DocID     string   `json:"doc_id"`
	VersionID string   `json:"version_id"`
	Kind      string   `json:"kind"`
	Repaired  []string `json:"repaired,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held and every replay converged.
	Pass bool `json:"pass"`

	// Outcomes lists the reference run's per-version outcomes in order.
	Outcomes []OutcomeEvent `json:"outcomes"`

	// Records is the final state, ordered by DocID.
	Records []ir.CanonicalRecord `json:"records"`

	// Linked is every linked version id, sorted.
	Linked []string `json:"linked"`

	// Digest is ir.StateDigest of Records.
	Digest string `json:"digest"`

	// Orderings counts the replays compared against the reference run,
	// the reference run included.
	Orderings int `json:"orderings"`

	// Errors contains assertion and convergence failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Outcomes: []OutcomeEvent{},
		Linked:   []string{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record returns the canonical record for docID.
func (r *Result) record(docID string) (ir.CanonicalRecord, bool) {
	for _, rec := range r.Records {
		if rec.DocID == docID {
			return rec, true
		}
	}
	return ir.CanonicalRecord{}, false
}
