package storage

import (
	"context"

	"loanKit/internal/model"
)

// Storage defines a sink for decoded protocol events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.EventRecord) error
}

// IntentStore persists tracked operations.
type IntentStore interface {
	SaveIntent(ctx context.Context, rec model.IntentRecord) error
	UpdateIntentOutcome(ctx context.Context, rec model.IntentRecord) error
}
