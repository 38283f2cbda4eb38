package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loanKit/internal/events"
	"loanKit/internal/model"
	"loanKit/internal/storage"
)

// RunConfig holds runtime settings for a backfill.
type RunConfig struct {
	Contract          string
	EventName         string
	Filter            map[string]interface{}
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Timestamps        bool
}

// Chain is the node access the runner needs besides the event manager.
type Chain interface {
	ChainIDUint64(ctx context.Context) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Runner exports decoded events of one contract to storage, range by range.
type Runner struct {
	cfg        RunConfig
	chain      Chain
	events     *events.Manager
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainClient Chain, manager *events.Manager, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		events:     manager,
		storage:    storageSink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the backfill loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.events == nil {
		return fmt.Errorf("event manager is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.EventName == "" {
		return fmt.Errorf("event name is required")
	}

	chainID, err := r.chain.ChainIDUint64(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	scope := checkpointScope(chainID, r.events.Address(), r.cfg.EventName)
	var exported uint64
	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load(scope)
		if err != nil {
			return err
		}
		if !ok && cp.Scope != "" {
			r.logger.Warn("ignore checkpoint of another stream", zap.String("scope", cp.Scope), zap.String("want", scope))
		}
		if ok {
			exported = cp.Events
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := events.SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch events", zap.String("event", r.cfg.EventName), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		decoded, err := r.getLogsWithRetry(ctx, blockRange)
		if err != nil {
			return fmt.Errorf("get logs: %w", err)
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.EventRecord, 0, len(decoded))
		for _, ev := range decoded {
			if r.isDuplicate(ev) {
				continue
			}

			var ts uint64
			if r.cfg.Timestamps {
				ts, err = r.blockTimestampWithRetry(ctx, ev.BlockNumber)
				if err != nil {
					return fmt.Errorf("block timestamp %d: %w", ev.BlockNumber, err)
				}
			}
			records = append(records, buildEventRecord(chainID, r.cfg.Contract, ev, ts, ingestedAt))
		}

		if err := r.storage.PutEventBatch(ctx, records); err != nil {
			return fmt.Errorf("store events: %w", err)
		}

		exported += uint64(len(records))
		if r.checkpoint != nil {
			if err := r.checkpoint.Save(Checkpoint{Scope: scope, LastProcessedBlock: blockRange.To, Events: exported}); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete", zap.Int("events", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

func (r *Runner) getLogsWithRetry(ctx context.Context, blockRange events.BlockRange) ([]events.DecodedLogEvent[events.Args], error) {
	var decoded []events.DecodedLogEvent[events.Args]
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		decoded, err = r.events.GetLogs(ctx, r.cfg.EventName, blockRange, r.cfg.Filter)
		if err != nil {
			r.logger.Warn("get logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return decoded, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(ev events.DecodedLogEvent[events.Args]) bool {
	id := fmt.Sprintf("%d:%s:%d", ev.BlockNumber, ev.TransactionHash.Hex(), ev.LogIndex)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
