package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// RequestLoan is the LoanManager.requestLoan payload.
type RequestLoan struct {
	Amount     *big.Int
	Model      common.Address
	Oracle     common.Address
	Borrower   common.Address
	Salt       *big.Int
	Expiration uint64
	LoanData   []byte
}

// Lend is the LoanManager.lend payload.
type Lend struct {
	ID            common.Hash
	OracleData    []byte
	Cosigner      common.Address
	CosignerLimit *big.Int
	CosignerData  []byte
}

func pack(loader func() (abi.ABI, error), method string, args ...interface{}) ([]byte, error) {
	parsed, err := loader()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func PackRequestLoan(p RequestLoan) ([]byte, error) {
	return pack(LoanManagerABI, "requestLoan",
		orZero(p.Amount), p.Model, p.Oracle, p.Borrower, orZero(p.Salt), p.Expiration, orEmpty(p.LoanData))
}

func PackApproveRequest(id common.Hash) ([]byte, error) {
	return pack(LoanManagerABI, "approveRequest", [32]byte(id))
}

func PackLend(p Lend) ([]byte, error) {
	return pack(LoanManagerABI, "lend",
		[32]byte(p.ID), orEmpty(p.OracleData), p.Cosigner, orZero(p.CosignerLimit), orEmpty(p.CosignerData))
}

func PackPay(id common.Hash, amount *big.Int, origin common.Address, oracleData []byte) ([]byte, error) {
	return pack(DebtEngineABI, "pay", [32]byte(id), orZero(amount), origin, orEmpty(oracleData))
}

func PackPayToken(id common.Hash, amount *big.Int, origin common.Address, oracleData []byte) ([]byte, error) {
	return pack(DebtEngineABI, "payToken", [32]byte(id), orZero(amount), origin, orEmpty(oracleData))
}

func PackWithdraw(id common.Hash, to common.Address) ([]byte, error) {
	return pack(DebtEngineABI, "withdraw", [32]byte(id), to)
}

func PackWithdrawPartial(id common.Hash, to common.Address, amount *big.Int) ([]byte, error) {
	return pack(DebtEngineABI, "withdrawPartial", [32]byte(id), to, orZero(amount))
}

func PackApprove(spender common.Address, value *big.Int) ([]byte, error) {
	return pack(ERC20ABI, "approve", spender, orZero(value))
}
