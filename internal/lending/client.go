package lending

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"loanKit/internal/contracts"
	"loanKit/internal/events"
	"loanKit/internal/loan"
	"loanKit/internal/tracker"
)

// Backend is the node access the client needs besides the transport.
type Backend interface {
	events.Backend
	contracts.Caller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NetworkID(ctx context.Context) (*big.Int, error)
}

// Config holds the protocol addresses and tracking defaults.
type Config struct {
	LoanManager common.Address
	DebtEngine  common.Address
	Token       common.Address
	Currency    string
	Track       tracker.Config
}

// Deps are the collaborators of a Client.
type Deps struct {
	Backend   Backend
	Transport Transport
	Model     loan.Model
	Oracle    loan.Oracle
	Logger    *zap.Logger

	EventOptions   []events.Option
	TrackerOptions []tracker.Option
}

// Client originates and settles loan operations through one transport.
type Client struct {
	cfg       Config
	backend   Backend
	transport Transport
	oracle    loan.Oracle
	assembler *loan.Assembler
	poller    *tracker.Poller
	token     *contracts.ERC20
	managers  map[contracts.Kind]*events.Manager
	logger    *zap.Logger
}

// DefaultTrackAttempts bounds tracking of a submitted operation to roughly
// ten minutes at the default period.
const DefaultTrackAttempts = 640

func New(cfg Config, deps Deps) (*Client, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "ARS"
	}
	if cfg.Track.Attempts <= 0 {
		cfg.Track.Attempts = DefaultTrackAttempts
	}
	oracle := deps.Oracle
	if oracle == nil {
		oracle = contracts.StaticOracle{}
	}

	token := contracts.NewERC20(cfg.Token, deps.Backend)
	c := &Client{
		cfg:       cfg,
		backend:   deps.Backend,
		transport: deps.Transport,
		oracle:    oracle,
		token:     token,
		assembler: loan.NewAssembler(loan.AssemblerConfig{
			Model:    deps.Model,
			Oracle:   oracle,
			Token:    token,
			Spender:  cfg.LoanManager,
			Currency: cfg.Currency,
		}, logger.Named("loan")),
		managers: make(map[contracts.Kind]*events.Manager),
		logger:   logger,
	}

	trackerOpts := append([]tracker.Option{tracker.WithLogger(logger.Named("tracker"))}, deps.TrackerOptions...)
	c.poller = tracker.NewPoller(deps.Transport, cfg.Track, trackerOpts...)

	eventOpts := append([]events.Option{events.WithLogger(logger.Named("events"))}, deps.EventOptions...)
	for kind, address := range map[contracts.Kind]common.Address{
		contracts.KindLoanManager: cfg.LoanManager,
		contracts.KindDebtEngine:  cfg.DebtEngine,
		contracts.KindToken:       cfg.Token,
	} {
		parsed, err := contracts.ABIFor(kind)
		if err != nil {
			return nil, err
		}
		c.managers[kind] = events.NewManager(address, events.NewCodec(parsed), deps.Backend, eventOpts...)
	}
	return c, nil
}

// Operation is a submitted call. Session is nil unless tracking was requested.
type Operation struct {
	ID      string
	Session *tracker.Session
}

type opSettings struct {
	track    bool
	callback tracker.Callback
	opts     []tracker.TrackOption
}

// OpOption configures tracking of one operation.
type OpOption func(*opSettings)

// WithCallback tracks the operation and invokes cb once it is accepted.
func WithCallback(cb tracker.Callback) OpOption {
	return func(s *opSettings) {
		if cb != nil {
			s.track = true
			s.callback = cb
		}
	}
}

// WithTracking tracks the operation without a callback.
func WithTracking(opts ...tracker.TrackOption) OpOption {
	return func(s *opSettings) {
		s.track = true
		s.opts = append(s.opts, opts...)
	}
}

// Account returns the address operations are sent from.
func (c *Client) Account() common.Address { return c.transport.Account() }

// Balance returns the native balance of account, or of the client account
// when account is zero.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	if account == (common.Address{}) {
		account = c.Account()
	}
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// TokenBalance returns the ERC20 balance of account in the configured token.
func (c *Client) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	if account == (common.Address{}) {
		account = c.Account()
	}
	return c.token.BalanceOf(ctx, account)
}

// IsTestnet reports whether the connected network is not mainnet.
func (c *Client) IsTestnet(ctx context.Context) (bool, error) {
	id, err := c.backend.NetworkID(ctx)
	if err != nil {
		return false, fmt.Errorf("network id: %w", err)
	}
	return id.Cmp(big.NewInt(1)) != 0, nil
}

// Events returns the log manager of one protocol contract.
func (c *Client) Events(kind contracts.Kind) (*events.Manager, error) {
	m, ok := c.managers[kind]
	if !ok {
		return nil, fmt.Errorf("no event manager for contract %q", kind)
	}
	return m, nil
}

// Track polls an already submitted id with the client's transport.
func (c *Client) Track(ctx context.Context, id string, opts ...tracker.TrackOption) *tracker.Session {
	opts = append([]tracker.TrackOption{tracker.WithPredicate(c.transport.Reached())}, opts...)
	return c.poller.Track(ctx, id, opts...)
}

// Close stops all event subscriptions.
func (c *Client) Close() {
	for _, m := range c.managers {
		m.Close()
	}
}

// Request submits a loan request. A zero borrower defaults to the account.
func (c *Client) Request(ctx context.Context, p loan.RequestParams, opts ...OpOption) (*Operation, error) {
	if p.Borrower == (common.Address{}) {
		p.Borrower = c.Account()
	}
	params, err := c.assembler.RequestLoanParams(ctx, p)
	if err != nil {
		return nil, err
	}
	data, err := contracts.PackRequestLoan(params)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, Call{Method: "requestLoan", To: c.cfg.LoanManager, Data: data}, opts)
}

func (c *Client) ApproveRequest(ctx context.Context, id common.Hash, opts ...OpOption) (*Operation, error) {
	data, err := contracts.PackApproveRequest(id)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, Call{Method: "approveRequest", To: c.cfg.LoanManager, Data: data}, opts)
}

// Lend funds request id. The account must have approved exactly value
// tokens to the loan manager beforehand.
func (c *Client) Lend(ctx context.Context, id common.Hash, value *big.Int, opts ...OpOption) (*Operation, error) {
	params, err := c.assembler.LendRequestParams(ctx, loan.LendParams{
		ID:      id,
		Value:   value,
		Account: c.Account(),
	})
	if err != nil {
		return nil, err
	}
	data, err := contracts.PackLend(params)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, Call{Method: "lend", To: c.cfg.LoanManager, Data: data}, opts)
}

// PayParams describe a debt payment. A zero Origin defaults to the account.
type PayParams struct {
	ID     common.Hash
	Amount *big.Int
	Origin common.Address
}

// Pay pays Amount expressed in the debt currency.
func (c *Client) Pay(ctx context.Context, p PayParams, opts ...OpOption) (*Operation, error) {
	return c.pay(ctx, "pay", contracts.PackPay, p, opts)
}

// PayToken pays Amount expressed in tokens.
func (c *Client) PayToken(ctx context.Context, p PayParams, opts ...OpOption) (*Operation, error) {
	return c.pay(ctx, "payToken", contracts.PackPayToken, p, opts)
}

func (c *Client) pay(ctx context.Context, method string, pack func(common.Hash, *big.Int, common.Address, []byte) ([]byte, error), p PayParams, opts []OpOption) (*Operation, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive", method)
	}
	if p.Origin == (common.Address{}) {
		p.Origin = c.Account()
	}
	oracleData, err := c.oracle.OracleData(ctx, c.cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("%s: oracle data: %w", method, err)
	}
	data, err := pack(p.ID, p.Amount, p.Origin, oracleData)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, Call{Method: method, To: c.cfg.DebtEngine, Data: data}, opts)
}

// Withdraw moves all funds of debt id to to.
func (c *Client) Withdraw(ctx context.Context, id common.Hash, to common.Address, opts ...OpOption) (*Operation, error) {
	if to == (common.Address{}) {
		to = c.Account()
	}
	data, err := contracts.PackWithdraw(id, to)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, Call{Method: "withdraw", To: c.cfg.DebtEngine, Data: data}, opts)
}

// WithdrawPartial moves amount of the funds of debt id to to.
func (c *Client) WithdrawPartial(ctx context.Context, id common.Hash, to common.Address, amount *big.Int, opts ...OpOption) (*Operation, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("withdrawPartial: amount must be positive")
	}
	if to == (common.Address{}) {
		to = c.Account()
	}
	data, err := contracts.PackWithdrawPartial(id, to, amount)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, Call{Method: "withdrawPartial", To: c.cfg.DebtEngine, Data: data}, opts)
}

func (c *Client) submit(ctx context.Context, call Call, opts []OpOption) (*Operation, error) {
	var settings opSettings
	for _, opt := range opts {
		opt(&settings)
	}

	id, err := c.transport.Submit(ctx, call)
	if err != nil {
		return nil, err
	}
	op := &Operation{ID: id}
	if !settings.track {
		return op, nil
	}

	trackOpts := settings.opts
	if settings.callback != nil {
		trackOpts = append(trackOpts, tracker.WithCallback(settings.callback))
	}
	// Tracking outlives the submitting call; it stops on Session.Cancel.
	op.Session = c.Track(context.WithoutCancel(ctx), id, trackOpts...)
	return op, nil
}
