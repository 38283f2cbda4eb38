package intent

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"loanKit/internal/tracker"
)

// RelayIntent is the JSON-RPC form of a signed intent.
type RelayIntent struct {
	ID          common.Hash    `json:"id"`
	Wallet      common.Address `json:"wallet"`
	To          common.Address `json:"to"`
	Value       *hexutil.Big   `json:"value"`
	Data        hexutil.Bytes  `json:"data"`
	MinGasLimit hexutil.Uint64 `json:"minGasLimit"`
	MaxGasPrice *hexutil.Big   `json:"maxGasPrice"`
	Salt        common.Hash    `json:"salt"`
	Expiration  hexutil.Uint64 `json:"expiration"`
	Signer      common.Address `json:"signer"`
	Signature   hexutil.Bytes  `json:"signature"`
}

// RelayReceipt is the JSON-RPC form of an execution receipt.
type RelayReceipt struct {
	TxHash        common.Hash    `json:"txHash"`
	BlockNumber   hexutil.Uint64 `json:"blockNumber"`
	Confirmations hexutil.Uint64 `json:"confirmations"`
	Success       bool           `json:"success"`
}

// RelayStatus is the JSON-RPC form of an intent status.
type RelayStatus struct {
	Code    string        `json:"code"`
	Receipt *RelayReceipt `json:"receipt,omitempty"`
}

func toRelayIntent(si SignedIntent) RelayIntent {
	return RelayIntent{
		ID:          si.ID,
		Wallet:      si.Intent.Wallet,
		To:          si.Intent.To,
		Value:       (*hexutil.Big)(bigOrZero(si.Intent.Value)),
		Data:        si.Intent.Data,
		MinGasLimit: hexutil.Uint64(si.Intent.MinGasLimit),
		MaxGasPrice: (*hexutil.Big)(bigOrZero(si.Intent.MaxGasPrice)),
		Salt:        si.Intent.Salt,
		Expiration:  hexutil.Uint64(si.Intent.Expiration),
		Signer:      si.Signer,
		Signature:   si.Signature,
	}
}

func (s RelayStatus) toStatus(id string, logger *zap.Logger) tracker.Status {
	code, err := tracker.ParseCode(s.Code)
	if err != nil {
		logger.Debug("unrecognized relay status", zap.String("id", id), zap.String("code", s.Code))
	}
	out := tracker.Status{ID: id, Code: code}
	if s.Receipt != nil {
		out.Receipt = &tracker.Receipt{
			TxHash:        s.Receipt.TxHash.Hex(),
			BlockNumber:   uint64(s.Receipt.BlockNumber),
			Confirmations: uint64(s.Receipt.Confirmations),
			Success:       s.Receipt.Success,
		}
	}
	return out
}

// RelayClient talks to a relay node over JSON-RPC.
type RelayClient struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

// DialRelay connects to the relay at url (http, ws or ipc).
func DialRelay(ctx context.Context, url string, logger *zap.Logger) (*RelayClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	return NewRelayClient(c, logger), nil
}

func NewRelayClient(c *rpc.Client, logger *zap.Logger) *RelayClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayClient{rpc: c, logger: logger}
}

// Close closes the underlying RPC client.
func (c *RelayClient) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// Relay submits a signed intent for execution.
func (c *RelayClient) Relay(ctx context.Context, si SignedIntent) error {
	var accepted common.Hash
	if err := c.rpc.CallContext(ctx, &accepted, "relay_submitIntent", toRelayIntent(si)); err != nil {
		return fmt.Errorf("relay intent %s: %w", si.ID.Hex(), err)
	}
	if accepted != (common.Hash{}) && accepted != si.ID {
		return fmt.Errorf("relay intent %s: relay acknowledged %s", si.ID.Hex(), accepted.Hex())
	}
	c.logger.Debug("intent relayed", zap.String("id", si.ID.Hex()), zap.String("to", si.Intent.To.Hex()))
	return nil
}

// Status resolves status from a full signed intent.
func (c *RelayClient) Status(ctx context.Context, si SignedIntent) (tracker.Status, error) {
	var res RelayStatus
	if err := c.rpc.CallContext(ctx, &res, "relay_intentStatus", toRelayIntent(si)); err != nil {
		return tracker.Status{}, fmt.Errorf("intent status %s: %w", si.ID.Hex(), err)
	}
	return res.toStatus(si.ID.Hex(), c.logger), nil
}

// StatusByID resolves status from an intent id alone.
func (c *RelayClient) StatusByID(ctx context.Context, id common.Hash) (tracker.Status, error) {
	var res RelayStatus
	if err := c.rpc.CallContext(ctx, &res, "relay_intentStatusById", id); err != nil {
		return tracker.Status{}, fmt.Errorf("intent status %s: %w", id.Hex(), err)
	}
	return res.toStatus(id.Hex(), c.logger), nil
}
