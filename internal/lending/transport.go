package lending

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"loanKit/internal/intent"
	"loanKit/internal/tracker"
)

// Call is one contract invocation produced by the client.
type Call struct {
	Method string
	To     common.Address
	Data   []byte
	Value  *big.Int
}

// Transport submits calls and reports their status. The id returned by
// Submit is the key accepted by Status.
type Transport interface {
	tracker.StatusSource
	Submit(ctx context.Context, call Call) (string, error)
	Account() common.Address
	// Reached reports whether a status counts as accepted for tracking.
	Reached() tracker.Predicate
}

// TxBackend is what DirectTransport needs from a node.
type TxBackend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// DirectTransport sends signed transactions from the configured account.
type DirectTransport struct {
	backend       TxBackend
	opts          bind.TransactOpts
	confirmations uint64
	logger        *zap.Logger

	mu sync.Mutex
}

// NewDirectTransport builds a transport around opts. A mined receipt with
// fewer than confirmations blocks on top reports Settling, after that
// Settled.
func NewDirectTransport(backend TxBackend, opts *bind.TransactOpts, confirmations uint64, logger *zap.Logger) *DirectTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if confirmations == 0 {
		confirmations = 1
	}
	return &DirectTransport{
		backend:       backend,
		opts:          *opts,
		confirmations: confirmations,
		logger:        logger,
	}
}

func (t *DirectTransport) Account() common.Address { return t.opts.From }

func (t *DirectTransport) Reached() tracker.Predicate {
	return tracker.CodeIs(tracker.StatusSettling, tracker.StatusSettled, tracker.StatusFailed)
}

// Submit signs and broadcasts the call. Submissions are serialized so that
// nonces assigned by the node stay in order.
func (t *DirectTransport) Submit(ctx context.Context, call Call) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	opts := t.opts
	opts.Context = ctx
	opts.Value = call.Value

	contract := bind.NewBoundContract(call.To, abi.ABI{}, t.backend, t.backend, t.backend)
	tx, err := contract.RawTransact(&opts, call.Data)
	if err != nil {
		return "", fmt.Errorf("%s: send transaction: %w", call.Method, err)
	}
	t.logger.Info("transaction sent",
		zap.String("method", call.Method),
		zap.String("to", call.To.Hex()),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
	)
	return tx.Hash().Hex(), nil
}

// Status maps the receipt of a transaction hash to a tracker status.
func (t *DirectTransport) Status(ctx context.Context, id string) (tracker.Status, error) {
	receipt, err := t.backend.TransactionReceipt(ctx, common.HexToHash(id))
	if errors.Is(err, ethereum.NotFound) {
		return tracker.Status{ID: id, Code: tracker.StatusPending}, nil
	}
	if err != nil {
		return tracker.Status{}, fmt.Errorf("transaction receipt %s: %w", id, err)
	}
	head, err := t.backend.BlockNumber(ctx)
	if err != nil {
		return tracker.Status{}, fmt.Errorf("block number: %w", err)
	}

	var mined uint64
	if receipt.BlockNumber != nil {
		mined = receipt.BlockNumber.Uint64()
	}
	var confirmations uint64
	if head >= mined {
		confirmations = head - mined + 1
	}

	status := tracker.Status{
		ID: id,
		Receipt: &tracker.Receipt{
			TxHash:        receipt.TxHash.Hex(),
			BlockNumber:   mined,
			Confirmations: confirmations,
			Success:       receipt.Status == types.ReceiptStatusSuccessful,
		},
	}
	switch {
	case receipt.Status != types.ReceiptStatusSuccessful:
		status.Code = tracker.StatusFailed
	case confirmations < t.confirmations:
		status.Code = tracker.StatusSettling
	default:
		status.Code = tracker.StatusSettled
	}
	return status, nil
}

// Relayer accepts signed intents.
type Relayer interface {
	Relay(ctx context.Context, si intent.SignedIntent) error
}

// IntentConfig tunes the intents built by IntentTransport.
type IntentConfig struct {
	MinGasLimit uint64
	MaxGasPrice *big.Int
	TTL         time.Duration
}

// DefaultIntentConfig mirrors typical relay limits.
func DefaultIntentConfig() IntentConfig {
	return IntentConfig{
		MinGasLimit: 0,
		MaxGasPrice: big.NewInt(9_999_999_999_999),
		TTL:         365 * 24 * time.Hour,
	}
}

// IntentTransport signs calls as intents and hands them to a relay.
type IntentTransport struct {
	signer intent.Signer
	relay  Relayer
	status tracker.StatusSource
	cfg    IntentConfig
	now    func() time.Time
	logger *zap.Logger
}

func NewIntentTransport(signer intent.Signer, relay Relayer, status tracker.StatusSource, cfg IntentConfig, logger *zap.Logger) *IntentTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultIntentConfig().TTL
	}
	return &IntentTransport{
		signer: signer,
		relay:  relay,
		status: status,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

func (t *IntentTransport) Account() common.Address { return t.signer.Address() }

func (t *IntentTransport) Reached() tracker.Predicate { return tracker.DefaultPredicate }

func (t *IntentTransport) Submit(ctx context.Context, call Call) (string, error) {
	var salt common.Hash
	if _, err := rand.Read(salt[:]); err != nil {
		return "", fmt.Errorf("intent salt: %w", err)
	}
	si, err := t.signer.Sign(intent.Intent{
		To:          call.To,
		Value:       call.Value,
		Data:        call.Data,
		MinGasLimit: t.cfg.MinGasLimit,
		MaxGasPrice: t.cfg.MaxGasPrice,
		Salt:        salt,
		Expiration:  uint64(t.now().Add(t.cfg.TTL).Unix()),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", call.Method, err)
	}
	if err := t.relay.Relay(ctx, si); err != nil {
		return "", fmt.Errorf("%s: %w", call.Method, err)
	}
	t.logger.Info("intent relayed",
		zap.String("method", call.Method),
		zap.String("to", call.To.Hex()),
		zap.String("intent", si.ID.Hex()),
	)
	return si.ID.Hex(), nil
}

func (t *IntentTransport) Status(ctx context.Context, id string) (tracker.Status, error) {
	return t.status.Status(ctx, id)
}
