package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loanKit/internal/events"
	"loanKit/internal/indexer"
	"loanKit/internal/model"
	"loanKit/internal/storage"
)

func runWatch(cmd *cobra.Command, _ []string) error {
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
	chainID, err := a.chain.ChainIDUint64(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	var sink storage.Storage
	if a.cfg.PgDSN != "" {
		if sink, err = a.eventSink(ctx); err != nil {
			return err
		}
	}

	var mu sync.Mutex
	enc := json.NewEncoder(os.Stdout)
	failed := make(chan error, 1)

	token, err := manager.Subscribe(ctx, a.cfg.Event, filter, func(ev events.DecodedLogEvent[events.Args], err error) {
		if err != nil {
			select {
			case failed <- err:
			default:
			}
			return
		}
		rec := model.NewEventRecord(chainID, a.cfg.Contract, ev, time.Now())

		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(rec); err != nil {
			a.logger.Warn("write event failed", zap.String("key", rec.Key()), zap.Error(err))
		}
		if sink != nil {
			if err := sink.PutEventBatch(ctx, []model.EventRecord{rec}); err != nil {
				a.logger.Warn("store event failed", zap.String("key", rec.Key()), zap.Error(err))
			}
		}
	}, a.cfg.Verbose)
	if err != nil {
		return err
	}
	defer manager.Unsubscribe(token)

	a.logger.Info("watching",
		zap.String("contract", manager.Address()),
		zap.String("event", a.cfg.Event),
		zap.String("subscription", token),
	)

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		return fmt.Errorf("subscription failed: %w", err)
	}
}
