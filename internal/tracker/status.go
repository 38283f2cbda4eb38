package tracker

import (
	"context"
	"fmt"
	"strings"
)

// Code is the relay-side lifecycle state of an intent or transaction.
type Code string

const (
	StatusUnknown  Code = "unknown"
	StatusPending  Code = "pending"
	StatusSettling Code = "settling"
	StatusSettled  Code = "settled"
	StatusFailed   Code = "failed"
	StatusCanceled Code = "canceled"
)

// ParseCode maps a relay status string to a Code.
func ParseCode(s string) (Code, error) {
	switch c := Code(strings.ToLower(strings.TrimSpace(s))); c {
	case StatusUnknown, StatusPending, StatusSettling, StatusSettled, StatusFailed, StatusCanceled:
		return c, nil
	default:
		return StatusUnknown, fmt.Errorf("unknown status code %q", s)
	}
}

// Receipt is the on-chain execution record attached to a status once the
// relay has broadcast the intent.
type Receipt struct {
	TxHash        string `json:"tx_hash"`
	BlockNumber   uint64 `json:"block_number"`
	Confirmations uint64 `json:"confirmations"`
	Success       bool   `json:"success"`
}

// Status is one observation of a tracked id.
type Status struct {
	ID      string   `json:"id"`
	Code    Code     `json:"code"`
	Receipt *Receipt `json:"receipt,omitempty"`
}

// StatusSource resolves the current status of an id.
type StatusSource interface {
	Status(ctx context.Context, id string) (Status, error)
}

// StatusFunc adapts a function to StatusSource.
type StatusFunc func(ctx context.Context, id string) (Status, error)

func (f StatusFunc) Status(ctx context.Context, id string) (Status, error) {
	return f(ctx, id)
}

// Predicate decides whether a status ends tracking.
type Predicate func(Status) bool

// CodeIs matches any of the given codes.
func CodeIs(codes ...Code) Predicate {
	return func(s Status) bool {
		for _, c := range codes {
			if s.Code == c {
				return true
			}
		}
		return false
	}
}

// DefaultPredicate stops at the first Settling observation. Settling is a
// checkpoint, not final settlement; use WithPredicate to wait longer.
var DefaultPredicate = CodeIs(StatusSettling)
