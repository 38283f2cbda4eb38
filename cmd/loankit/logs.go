package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loanKit/internal/events"
	"loanKit/internal/indexer"
	"loanKit/internal/model"
)

func runLogs(cmd *cobra.Command, _ []string) error {
	ctx, a, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	manager, err := a.eventManager()
	if err != nil {
		return err
	}
	filter, err := indexer.ParseWhere(a.cfg.Where)
	if err != nil {
		return err
	}

	to := a.cfg.ToBlock
	if to == 0 {
		latest, err := a.chain.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	chainID, err := a.chain.ChainIDUint64(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	decoded, err := manager.GetLogs(ctx, a.cfg.Event, events.BlockRange{From: a.cfg.FromBlock, To: to}, filter)
	if err != nil {
		return err
	}

	now := time.Now()
	records := make([]model.EventRecord, 0, len(decoded))
	for _, ev := range decoded {
		records = append(records, model.NewEventRecord(chainID, a.cfg.Contract, ev, now))
	}

	sink, err := a.eventSink(ctx)
	if err != nil {
		return err
	}
	if err := sink.PutEventBatch(ctx, records); err != nil {
		return fmt.Errorf("store events: %w", err)
	}

	a.logger.Info("logs exported",
		zap.String("event", a.cfg.Event),
		zap.Uint64("from", a.cfg.FromBlock),
		zap.Uint64("to", to),
		zap.Int("count", len(records)),
	)
	return nil
}
