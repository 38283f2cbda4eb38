package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "loankit",
		Short:        "Loan protocol event and operation toolkit",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment")

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Query historical protocol events once",
		RunE:  runLogs,
	}
	addConnectionFlags(logsCmd)
	addEventFlags(logsCmd)
	logsCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	logsCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	logsCmd.Flags().Uint64("max-block-span", 0, "split queries into spans of at most this many blocks")
	logsCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	logsCmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces JSONL output when set")
	root.AddCommand(logsCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live protocol events as JSON lines",
		RunE:  runWatch,
	}
	addConnectionFlags(watchCmd)
	addEventFlags(watchCmd)
	watchCmd.Flags().Bool("verbose", false, "log every delivered event")
	watchCmd.Flags().Duration("poll-interval", 2*time.Second, "polling interval when the node cannot push logs")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN, also stores streamed events when set")
	root.AddCommand(watchCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Export a block range of protocol events with checkpoints",
		RunE:  runBackfill,
	}
	addConnectionFlags(backfillCmd)
	addEventFlags(backfillCmd)
	backfillCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	backfillCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	backfillCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	backfillCmd.Flags().Uint64("max-block-span", 0, "split each batch into node queries of at most this many blocks")
	backfillCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	backfillCmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces JSONL output when set")
	backfillCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	backfillCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	backfillCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	backfillCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	backfillCmd.Flags().Bool("timestamps", false, "attach block timestamps to records")
	root.AddCommand(backfillCmd)

	trackCmd := &cobra.Command{
		Use:   "track",
		Short: "Poll an intent id or transaction hash until it is accepted",
		RunE:  runTrack,
	}
	addConnectionFlags(trackCmd)
	trackCmd.Flags().String("id", "", "intent id or transaction hash")
	trackCmd.Flags().Duration("period", time.Second, "delay between status queries")
	trackCmd.Flags().Int("attempts", 640, "status queries before giving up")
	trackCmd.Flags().Uint64("confirmations", 1, "blocks on top of a mined transaction before it counts as settled")
	trackCmd.Flags().String("out", "./data/intents.jsonl", "output JSONL path")
	trackCmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces JSONL output when set")
	root.AddCommand(trackCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "node RPC URL (http, ws or ipc)")
	cmd.Flags().String("mode", "direct", "operation transport (direct, intent)")
	cmd.Flags().String("key", "", "hex private key of the operating account")
	cmd.Flags().String("relay-url", "", "intent relay RPC URL")
	cmd.Flags().Bool("relay-id-lookup", false, "query relay status by intent id")
	cmd.Flags().String("loan-manager", "", "loan manager address")
	cmd.Flags().String("debt-engine", "", "debt engine address")
	cmd.Flags().String("token", "", "token address")
	cmd.Flags().String("model", "", "installments model address")
	cmd.Flags().String("oracle", "", "rate oracle address")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().String("contract", "debt-engine", "contract to read (loan-manager, debt-engine, token)")
	cmd.Flags().String("event", "", "event name, e.g. Paid")
	cmd.Flags().StringSlice("where", nil, "indexed argument filters key=value, alternatives separated by |")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
