package model

import (
	"time"

	"loanKit/internal/tracker"
)

// IntentRecord is the stored lifecycle of one submitted operation, keyed by
// the intent id or transaction hash returned by the transport.
type IntentRecord struct {
	ID          string    `json:"id"`
	Method      string    `json:"method,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Account     string    `json:"account,omitempty"`
	Target      string    `json:"target,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	Outcome     string    `json:"outcome,omitempty"`
	Status      string    `json:"status,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ApplyResult copies the final state of a tracking session into r.
func (r *IntentRecord) ApplyResult(res tracker.Result, at time.Time) {
	r.Outcome = res.Outcome.String()
	r.Status = string(res.Status.Code)
	r.Attempts = res.Attempts
	if res.Status.Receipt != nil {
		r.TxHash = res.Status.Receipt.TxHash
	}
	r.Error = ""
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	r.UpdatedAt = at.UTC()
}
