package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"loanKit/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS loan_events (
	chain_id BIGINT NOT NULL,
	tx_hash TEXT NOT NULL,
	log_index BIGINT NOT NULL,
	contract TEXT NOT NULL,
	address TEXT NOT NULL,
	event_name TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	block_hash TEXT NOT NULL,
	removed BOOLEAN NOT NULL DEFAULT false,
	block_timestamp BIGINT NOT NULL DEFAULT 0,
	args JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, tx_hash, log_index)
);

CREATE INDEX IF NOT EXISTS loan_events_name_block_idx ON loan_events (event_name, block_number);

CREATE TABLE IF NOT EXISTS tracked_intents (
	id TEXT PRIMARY KEY,
	method TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	account TEXT NOT NULL DEFAULT '',
	target TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ NOT NULL,
	outcome TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	tx_hash TEXT NOT NULL DEFAULT '',
	attempts INT NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for protocol events and tracked
// operations.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEventBatch inserts or updates decoded events. A log seen again after a
// reorg overwrites its previous row.
func (s *Store) PutEventBatch(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		args, err := json.Marshal(ev.Args)
		if err != nil {
			return fmt.Errorf("marshal args %s: %w", ev.Key(), err)
		}
		batch.Queue(`
			INSERT INTO loan_events (
				chain_id, tx_hash, log_index, contract, address, event_name,
				block_number, block_hash, removed, block_timestamp, args, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, now(), now())
			ON CONFLICT (chain_id, tx_hash, log_index)
			DO UPDATE SET
				block_number = EXCLUDED.block_number,
				block_hash = EXCLUDED.block_hash,
				removed = EXCLUDED.removed,
				block_timestamp = EXCLUDED.block_timestamp,
				args = EXCLUDED.args,
				updated_at = now()
		`,
			int64(ev.ChainID),
			ev.TxHash,
			int64(ev.LogIndex),
			ev.Contract,
			ev.Address,
			ev.EventName,
			int64(ev.BlockNumber),
			ev.BlockHash,
			ev.Removed,
			int64(ev.Timestamp),
			string(args),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveIntent records a submitted operation. Saving an id twice keeps the
// first submission.
func (s *Store) SaveIntent(ctx context.Context, rec model.IntentRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("intent id required")
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracked_intents (
			id, method, mode, account, target, submitted_at, outcome, status, tx_hash, attempts, error, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING
	`,
		rec.ID,
		rec.Method,
		rec.Mode,
		rec.Account,
		rec.Target,
		rec.SubmittedAt,
		rec.Outcome,
		rec.Status,
		rec.TxHash,
		rec.Attempts,
		rec.Error,
		updated,
	)
	return err
}

// UpdateIntentOutcome stores the final tracking state of an operation,
// inserting it when it was never saved.
func (s *Store) UpdateIntentOutcome(ctx context.Context, rec model.IntentRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("intent id required")
	}
	submitted := rec.SubmittedAt
	if submitted.IsZero() {
		submitted = rec.UpdatedAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracked_intents (id, submitted_at, outcome, status, tx_hash, attempts, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			status = EXCLUDED.status,
			tx_hash = EXCLUDED.tx_hash,
			attempts = EXCLUDED.attempts,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`,
		rec.ID,
		submitted,
		rec.Outcome,
		rec.Status,
		rec.TxHash,
		rec.Attempts,
		rec.Error,
		rec.UpdatedAt,
	)
	return err
}

// LoadIntent returns the stored record for id.
func (s *Store) LoadIntent(ctx context.Context, id string) (model.IntentRecord, bool, error) {
	var rec model.IntentRecord
	row := s.pool.QueryRow(ctx, `
		SELECT id, method, mode, account, target, submitted_at, outcome, status, tx_hash, attempts, error, updated_at
		FROM tracked_intents WHERE id = $1
	`, id)
	err := row.Scan(
		&rec.ID,
		&rec.Method,
		&rec.Mode,
		&rec.Account,
		&rec.Target,
		&rec.SubmittedAt,
		&rec.Outcome,
		&rec.Status,
		&rec.TxHash,
		&rec.Attempts,
		&rec.Error,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.IntentRecord{}, false, nil
		}
		return model.IntentRecord{}, false, err
	}
	return rec, true, nil
}
