package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loanKit/internal/chain"
	"loanKit/internal/config"
	"loanKit/internal/contracts"
	"loanKit/internal/events"
	"loanKit/internal/intent"
	"loanKit/internal/lending"
	"loanKit/internal/loan"
	"loanKit/internal/metrics"
	"loanKit/internal/storage"
	"loanKit/internal/storage/postgres"
	"loanKit/internal/tracker"
)

// app is the wiring shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Registry
	chain   *chain.Client
	client  *lending.Client
	closers []func()
}

func setup(cmd *cobra.Command) (context.Context, *app, func(), error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.RPCURL == "" {
		return nil, nil, nil, fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewRegistry()}
	cleanup := func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
		stop()
		_ = logger.Sync()
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.chain = chainClient
	a.closers = append(a.closers, chainClient.Close)

	transport, err := a.buildTransport(ctx)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	var model loan.Model
	if cfg.Contracts.Model != "" {
		model = contracts.NewInstallmentsModel(common.HexToAddress(cfg.Contracts.Model), chainClient)
	}

	client, err := lending.New(lending.Config{
		LoanManager: common.HexToAddress(cfg.Contracts.LoanManager),
		DebtEngine:  common.HexToAddress(cfg.Contracts.DebtEngine),
		Token:       common.HexToAddress(cfg.Contracts.Token),
		Currency:    cfg.Currency,
		Track: tracker.Config{
			Period:   cfg.Track.Period,
			Attempts: cfg.Track.Attempts,
		},
	}, lending.Deps{
		Backend:   chainClient,
		Transport: transport,
		Model:     model,
		Oracle:    contracts.StaticOracle{OracleAddress: common.HexToAddress(cfg.Contracts.Oracle)},
		Logger:    logger,
		EventOptions: []events.Option{
			events.WithObserver(a.metrics),
			events.WithPollInterval(cfg.PollInterval),
			events.WithMaxBlockSpan(cfg.MaxBlockSpan),
		},
		TrackerOptions: []tracker.Option{tracker.WithObserver(a.metrics)},
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	a.client = client
	a.closers = append(a.closers, client.Close)

	return ctx, a, cleanup, nil
}

func (a *app) buildTransport(ctx context.Context) (lending.Transport, error) {
	var signer *intent.KeySigner
	if a.cfg.AccountKey != "" {
		s, err := intent.NewKeySigner(a.cfg.AccountKey)
		if err != nil {
			return nil, err
		}
		signer = s
	}

	switch a.cfg.Mode {
	case config.ModeIntent:
		if signer == nil {
			return nil, fmt.Errorf("intent mode requires account.key")
		}
		if a.cfg.Relay.URL == "" {
			return nil, fmt.Errorf("intent mode requires relay.url")
		}
		relay, err := intent.DialRelay(ctx, a.cfg.Relay.URL, a.logger.Named("relay"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, relay.Close)
		status := intent.NewStatusSource(relay, signer, common.HexToAddress(a.cfg.Contracts.Token), a.cfg.Relay.IDLookup)
		return lending.NewIntentTransport(signer, relay, status, lending.DefaultIntentConfig(), a.logger.Named("intent")), nil
	default:
		opts := &bind.TransactOpts{}
		if signer != nil {
			chainID, err := a.chain.ChainID(ctx)
			if err != nil {
				return nil, fmt.Errorf("get chain id: %w", err)
			}
			opts, err = bind.NewKeyedTransactorWithChainID(signer.Key(), chainID)
			if err != nil {
				return nil, fmt.Errorf("build transactor: %w", err)
			}
		}
		return lending.NewDirectTransport(a.chain, opts, a.cfg.Track.Confirmations, a.logger.Named("direct")), nil
	}
}

func (a *app) eventManager() (*events.Manager, error) {
	if a.cfg.Event == "" {
		return nil, fmt.Errorf("event name is required")
	}
	if _, err := a.cfg.ContractAddress(a.cfg.Contract); err != nil {
		return nil, err
	}
	return a.client.Events(contracts.Kind(a.cfg.Contract))
}

func (a *app) eventSink(ctx context.Context) (storage.Storage, error) {
	if a.cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.PgDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return storage.NewJsonlStorage(a.cfg.Out), nil
}

func (a *app) intentStore(ctx context.Context) (storage.IntentStore, error) {
	if a.cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.PgDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return storage.NewJsonlStorage(a.cfg.Out), nil
}
