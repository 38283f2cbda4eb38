package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Typed event arguments. Field names follow the ABI argument names in
// camel case so that abi.UnpackIntoInterface and abi.ParseTopics can fill
// them directly.

// RequestedArgs is the LoanManager Requested event.
type RequestedArgs struct {
	Id         [32]byte
	Amount     *big.Int
	Model      common.Address
	Creator    common.Address
	Oracle     common.Address
	Borrower   common.Address
	Salt       *big.Int
	LoanData   []byte
	Expiration *big.Int
}

// ApprovedArgs is the LoanManager Approved event.
type ApprovedArgs struct {
	Id [32]byte
}

// LentArgs is the LoanManager Lent event.
type LentArgs struct {
	Id     [32]byte
	Lender common.Address
	Tokens *big.Int
}

// CanceledArgs is the LoanManager Canceled event.
type CanceledArgs struct {
	Id       [32]byte
	Canceler common.Address
}

// CosignedArgs is the LoanManager Cosigned event.
type CosignedArgs struct {
	Id       [32]byte
	Cosigner common.Address
	Cost     *big.Int
}

// CreatedArgs is the DebtEngine Created event.
type CreatedArgs struct {
	Id    [32]byte
	Nonce *big.Int
	Data  []byte
}

// PaidArgs is the DebtEngine Paid event.
type PaidArgs struct {
	Id              [32]byte
	Sender          common.Address
	Origin          common.Address
	Requested       *big.Int
	RequestedTokens *big.Int
	Paid            *big.Int
	Tokens          *big.Int
}

// ReadedOracleArgs is the DebtEngine ReadedOracle event.
type ReadedOracleArgs struct {
	Id         [32]byte
	Tokens     *big.Int
	Equivalent *big.Int
}

// WithdrawnArgs is the DebtEngine Withdrawn event.
type WithdrawnArgs struct {
	Id     [32]byte
	Sender common.Address
	To     common.Address
	Amount *big.Int
}

// DebtTransferArgs is the DebtEngine ERC721 Transfer event.
type DebtTransferArgs struct {
	From    common.Address
	To      common.Address
	TokenId *big.Int
}

// TokenTransferArgs is the ERC20 Transfer event.
type TokenTransferArgs struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// ApprovalArgs is the ERC20 Approval event.
type ApprovalArgs struct {
	Owner   common.Address
	Spender common.Address
	Value   *big.Int
}

func errUnknownKind(kind Kind) error {
	return fmt.Errorf("unknown contract kind: %q", kind)
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
