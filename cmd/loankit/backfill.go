package main

import (
	"github.com/spf13/cobra"

	"loanKit/internal/indexer"
)

func runBackfill(cmd *cobra.Command, _ []string) error {
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
	sink, err := a.eventSink(ctx)
	if err != nil {
		return err
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		Contract:          a.cfg.Contract,
		EventName:         a.cfg.Event,
		Filter:            filter,
		FromBlock:         a.cfg.FromBlock,
		ToBlock:           a.cfg.ToBlock,
		BatchSize:         a.cfg.BatchSize,
		CheckpointPath:    a.cfg.Checkpoint,
		CheckpointEnabled: a.cfg.CheckpointEnabled,
		MaxRetries:        a.cfg.MaxRetries,
		RetryBackoff:      a.cfg.RetryBackoff,
		Timestamps:        a.cfg.Timestamps,
	}, a.chain, manager, sink, a.logger.Named("backfill"))

	return runner.Run(ctx)
}
