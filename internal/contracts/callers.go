package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// ERC20 reads token balances and allowances.
type ERC20 struct {
	address common.Address
	caller  Caller
}

func NewERC20(address common.Address, caller Caller) *ERC20 {
	return &ERC20{address: address, caller: caller}
}

// Address returns the token address.
func (t *ERC20) Address() common.Address { return t.address }

// Allowance returns how much spender may move on behalf of owner.
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, t.caller, t.address, parsed, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// BalanceOf returns the token balance of account.
func (t *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, t.caller, t.address, parsed, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// ModelTerms are the installment schedule inputs of encodeData.
type ModelTerms struct {
	Cuota        *big.Int
	InterestRate *big.Int
	Installments uint32
	Duration     uint64
	TimeUnit     uint32
}

// InstallmentsModel wraps the model contract's encoder and validator.
type InstallmentsModel struct {
	address common.Address
	caller  Caller
}

func NewInstallmentsModel(address common.Address, caller Caller) *InstallmentsModel {
	return &InstallmentsModel{address: address, caller: caller}
}

// Address returns the model address.
func (m *InstallmentsModel) Address() common.Address { return m.address }

// EncodeData asks the model to encode the schedule into opaque loan data.
func (m *InstallmentsModel) EncodeData(ctx context.Context, terms ModelTerms) ([]byte, error) {
	if terms.Cuota == nil || terms.InterestRate == nil {
		return nil, fmt.Errorf("cuota and interest rate are required")
	}
	parsed, err := InstallmentsModelABI()
	if err != nil {
		return nil, fmt.Errorf("parse model abi: %w", err)
	}
	values, err := callMethod(ctx, m.caller, m.address, parsed, "encodeData",
		terms.Cuota,
		terms.InterestRate,
		new(big.Int).SetUint64(uint64(terms.Installments)),
		new(big.Int).SetUint64(terms.Duration),
		terms.TimeUnit,
	)
	if err != nil {
		return nil, err
	}
	data, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected encodeData result %T", values[0])
	}
	return data, nil
}

// Validate runs the model's own well-formedness check on loan data.
func (m *InstallmentsModel) Validate(ctx context.Context, data []byte) (bool, error) {
	parsed, err := InstallmentsModelABI()
	if err != nil {
		return false, fmt.Errorf("parse model abi: %w", err)
	}
	values, err := callMethod(ctx, m.caller, m.address, parsed, "validate", data)
	if err != nil {
		return false, err
	}
	ok, isBool := values[0].(bool)
	if !isBool {
		return false, fmt.Errorf("unexpected validate result %T", values[0])
	}
	return ok, nil
}

// StaticOracle returns a fixed oracle address and payload. The zero address
// means the loan is denominated in the token itself.
type StaticOracle struct {
	OracleAddress common.Address
	Data          []byte
}

func (o StaticOracle) Address(context.Context) (common.Address, error) {
	return o.OracleAddress, nil
}

func (o StaticOracle) OracleData(context.Context, string) ([]byte, error) {
	return o.Data, nil
}
