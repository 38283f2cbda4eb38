package loan

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"loanKit/internal/apperr"
	"loanKit/internal/contracts"
)

// SecondsPerYear is the protocol's 360-day financial year.
const SecondsPerYear = 360 * 86400

const rateScale = 10_000_000

// EncodeInterestRate converts a nominal annual rate into the protocol rate:
// floor(10_000_000 / rate) * SecondsPerYear.
func EncodeInterestRate(rate float64) (*big.Int, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInterestRate, rate)
	}
	raw := math.Floor(rateScale / rate)
	if math.IsInf(raw, 0) || math.IsNaN(raw) {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInterestRate, rate)
	}
	rawInt, _ := new(big.Float).SetFloat64(raw).Int(nil)
	return rawInt.Mul(rawInt, big.NewInt(SecondsPerYear)), nil
}

// Model encodes and validates installment loan data.
type Model interface {
	Address() common.Address
	EncodeData(ctx context.Context, terms contracts.ModelTerms) ([]byte, error)
	Validate(ctx context.Context, data []byte) (bool, error)
}

// Oracle supplies the rate oracle address and its per-currency payload.
type Oracle interface {
	Address(ctx context.Context) (common.Address, error)
	OracleData(ctx context.Context, currency string) ([]byte, error)
}

// AllowanceReader reads ERC20 allowances.
type AllowanceReader interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// RequestParams are the caller-facing terms of a loan request.
type RequestParams struct {
	Amount       *big.Int
	Borrower     common.Address
	Salt         *big.Int
	Expiration   uint64
	Cuota        *big.Int
	InterestRate float64
	Installments uint32
	Duration     uint64
	TimeUnit     uint32
}

// LendParams are the caller-facing terms of a lend.
type LendParams struct {
	ID      common.Hash
	Value   *big.Int
	Account common.Address
}

// Assembler turns caller terms into protocol payloads and rejects input the
// protocol would refuse.
type Assembler struct {
	model    Model
	oracle   Oracle
	token    AllowanceReader
	spender  common.Address
	currency string
	logger   *zap.Logger
}

// AssemblerConfig wires an Assembler.
type AssemblerConfig struct {
	Model    Model
	Oracle   Oracle
	Token    AllowanceReader
	Spender  common.Address
	Currency string
}

func NewAssembler(cfg AssemblerConfig, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Oracle == nil {
		cfg.Oracle = contracts.StaticOracle{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "ARS"
	}
	return &Assembler{
		model:    cfg.Model,
		oracle:   cfg.Oracle,
		token:    cfg.Token,
		spender:  cfg.Spender,
		currency: cfg.Currency,
		logger:   logger,
	}
}

// RequestLoanParams builds the requestLoan payload. The model data is
// checked with the model's own validator and rejected with
// ErrInvalidLoanTerms when it fails.
func (a *Assembler) RequestLoanParams(ctx context.Context, p RequestParams) (contracts.RequestLoan, error) {
	if a.model == nil {
		return contracts.RequestLoan{}, fmt.Errorf("model is not configured")
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return contracts.RequestLoan{}, fmt.Errorf("amount must be positive")
	}
	if p.Cuota == nil || p.Cuota.Sign() <= 0 {
		return contracts.RequestLoan{}, fmt.Errorf("cuota must be positive")
	}

	rate, err := EncodeInterestRate(p.InterestRate)
	if err != nil {
		return contracts.RequestLoan{}, err
	}
	oracleAddress, err := a.oracle.Address(ctx)
	if err != nil {
		return contracts.RequestLoan{}, fmt.Errorf("oracle address: %w", err)
	}

	data, err := a.model.EncodeData(ctx, contracts.ModelTerms{
		Cuota:        p.Cuota,
		InterestRate: rate,
		Installments: p.Installments,
		Duration:     p.Duration,
		TimeUnit:     p.TimeUnit,
	})
	if err != nil {
		return contracts.RequestLoan{}, fmt.Errorf("encode model data: %w", err)
	}
	valid, err := a.model.Validate(ctx, data)
	if err != nil {
		return contracts.RequestLoan{}, fmt.Errorf("validate model data: %w", err)
	}
	if !valid {
		a.logger.Info("model rejected loan data",
			zap.String("model", a.model.Address().Hex()),
			zap.String("cuota", p.Cuota.String()),
			zap.Uint32("installments", p.Installments),
		)
		return contracts.RequestLoan{}, apperr.ErrInvalidLoanTerms
	}

	salt := p.Salt
	if salt == nil {
		salt = new(big.Int)
	}
	return contracts.RequestLoan{
		Amount:     p.Amount,
		Model:      a.model.Address(),
		Oracle:     oracleAddress,
		Borrower:   p.Borrower,
		Salt:       salt,
		Expiration: p.Expiration,
		LoanData:   data,
	}, nil
}

// LendRequestParams builds the lend payload after checking that the
// allowance granted by the account to the spender equals the lend value
// exactly.
func (a *Assembler) LendRequestParams(ctx context.Context, p LendParams) (contracts.Lend, error) {
	if a.token == nil {
		return contracts.Lend{}, fmt.Errorf("token is not configured")
	}
	if p.Value == nil || p.Value.Sign() < 0 {
		return contracts.Lend{}, fmt.Errorf("lend value must be non-negative")
	}

	oracleData, err := a.oracle.OracleData(ctx, a.currency)
	if err != nil {
		return contracts.Lend{}, fmt.Errorf("oracle data: %w", err)
	}

	allowance, err := a.token.Allowance(ctx, p.Account, a.spender)
	if err != nil {
		return contracts.Lend{}, fmt.Errorf("allowance: %w", err)
	}
	if allowance.Cmp(p.Value) != 0 {
		return contracts.Lend{}, fmt.Errorf("%w: allowance %s, value %s", apperr.ErrAllowanceMismatch, allowance, p.Value)
	}

	return contracts.Lend{
		ID:            p.ID,
		OracleData:    oracleData,
		Cosigner:      common.Address{},
		CosignerLimit: new(big.Int),
		CosignerData:  []byte{},
	}, nil
}
