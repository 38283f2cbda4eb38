package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loanKit/internal/model"
	"loanKit/internal/tracker"
)

func runTrack(cmd *cobra.Command, _ []string) error {
	ctx, a, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	id := strings.TrimSpace(a.cfg.ID)
	if id == "" {
		return fmt.Errorf("id is required")
	}

	store, err := a.intentStore(ctx)
	if err != nil {
		return err
	}
	rec := model.IntentRecord{
		ID:          id,
		Method:      "track",
		Mode:        a.cfg.Mode,
		SubmittedAt: time.Now().UTC(),
	}
	if a.cfg.AccountKey != "" {
		rec.Account = a.client.Account().Hex()
	}
	if err := store.SaveIntent(ctx, rec); err != nil {
		return fmt.Errorf("save intent: %w", err)
	}

	session := a.client.Track(ctx, id,
		tracker.WithPeriod(a.cfg.Track.Period),
		tracker.WithAttempts(a.cfg.Track.Attempts),
	)
	res, err := session.Wait(ctx)
	if err != nil {
		<-session.Done()
		res, _ = session.Result()
	}

	rec.ApplyResult(res, time.Now())
	// ctx may already be canceled here; the outcome is still worth keeping.
	if err := store.UpdateIntentOutcome(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("update intent: %w", err)
	}

	a.logger.Info("tracking finished",
		zap.String("id", id),
		zap.String("outcome", rec.Outcome),
		zap.String("status", rec.Status),
		zap.Int("attempts", rec.Attempts),
	)

	switch res.Outcome {
	case tracker.OutcomeTerminal:
		return nil
	case tracker.OutcomeFailed:
		return fmt.Errorf("%s: %s", id, rec.Error)
	default:
		return fmt.Errorf("%s: %s", id, rec.Outcome)
	}
}
