package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const loanManagerABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "uint128", "name": "_amount", "type": "uint128"},
      {"indexed": false, "internalType": "address", "name": "_model", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "_creator", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "_oracle", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "_borrower", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_salt", "type": "uint256"},
      {"indexed": false, "internalType": "bytes", "name": "_loanData", "type": "bytes"},
      {"indexed": false, "internalType": "uint256", "name": "_expiration", "type": "uint256"}
    ],
    "name": "Requested",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"}
    ],
    "name": "Approved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "address", "name": "_lender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_tokens", "type": "uint256"}
    ],
    "name": "Lent",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "address", "name": "_canceler", "type": "address"}
    ],
    "name": "Canceled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "address", "name": "_cosigner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_cost", "type": "uint256"}
    ],
    "name": "Cosigned",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "uint128", "name": "_amount", "type": "uint128"},
      {"internalType": "address", "name": "_model", "type": "address"},
      {"internalType": "address", "name": "_oracle", "type": "address"},
      {"internalType": "address", "name": "_borrower", "type": "address"},
      {"internalType": "uint256", "name": "_salt", "type": "uint256"},
      {"internalType": "uint64", "name": "_expiration", "type": "uint64"},
      {"internalType": "bytes", "name": "_loanData", "type": "bytes"}
    ],
    "name": "requestLoan",
    "outputs": [{"internalType": "bytes32", "name": "id", "type": "bytes32"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "_id", "type": "bytes32"}],
    "name": "approveRequest",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"internalType": "bytes", "name": "_oracleData", "type": "bytes"},
      {"internalType": "address", "name": "_cosigner", "type": "address"},
      {"internalType": "uint256", "name": "_cosignerLimit", "type": "uint256"},
      {"internalType": "bytes", "name": "_cosignerData", "type": "bytes"}
    ],
    "name": "lend",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const debtEngineABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "_nonce", "type": "uint256"},
      {"indexed": false, "internalType": "bytes", "name": "_data", "type": "bytes"}
    ],
    "name": "Created",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "address", "name": "_sender", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "_origin", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_requested", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_requestedTokens", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_paid", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_tokens", "type": "uint256"}
    ],
    "name": "Paid",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "_tokens", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_equivalent", "type": "uint256"}
    ],
    "name": "ReadedOracle",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"indexed": false, "internalType": "address", "name": "_sender", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "_to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_amount", "type": "uint256"}
    ],
    "name": "Withdrawn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "_to", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "_tokenId", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"internalType": "uint256", "name": "_amount", "type": "uint256"},
      {"internalType": "address", "name": "_origin", "type": "address"},
      {"internalType": "bytes", "name": "_oracleData", "type": "bytes"}
    ],
    "name": "pay",
    "outputs": [
      {"internalType": "uint256", "name": "paid", "type": "uint256"},
      {"internalType": "uint256", "name": "paidToken", "type": "uint256"}
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"internalType": "uint256", "name": "_amount", "type": "uint256"},
      {"internalType": "address", "name": "_origin", "type": "address"},
      {"internalType": "bytes", "name": "_oracleData", "type": "bytes"}
    ],
    "name": "payToken",
    "outputs": [
      {"internalType": "uint256", "name": "paid", "type": "uint256"},
      {"internalType": "uint256", "name": "paidToken", "type": "uint256"}
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"internalType": "address", "name": "_to", "type": "address"}
    ],
    "name": "withdraw",
    "outputs": [{"internalType": "uint256", "name": "amount", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "_id", "type": "bytes32"},
      {"internalType": "address", "name": "_to", "type": "address"},
      {"internalType": "uint256", "name": "_amount", "type": "uint256"}
    ],
    "name": "withdrawPartial",
    "outputs": [{"internalType": "bool", "name": "success", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const installmentsModelABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint128", "name": "_cuota", "type": "uint128"},
      {"internalType": "uint256", "name": "_interestRate", "type": "uint256"},
      {"internalType": "uint24", "name": "_installments", "type": "uint24"},
      {"internalType": "uint40", "name": "_duration", "type": "uint40"},
      {"internalType": "uint32", "name": "_timeUnit", "type": "uint32"}
    ],
    "name": "encodeData",
    "outputs": [{"internalType": "bytes", "name": "", "type": "bytes"}],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes", "name": "data", "type": "bytes"}],
    "name": "validate",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "spender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Approval",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "owner", "type": "address"},
      {"internalType": "address", "name": "spender", "type": "address"}
    ],
    "name": "allowance",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "account", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "spender", "type": "address"},
      {"internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "approve",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "to", "type": "address"},
      {"internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "transfer",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	loanManagerABI     abi.ABI
	loanManagerABIOnce sync.Once
	loanManagerABIErr  error

	debtEngineABI     abi.ABI
	debtEngineABIOnce sync.Once
	debtEngineABIErr  error

	installmentsModelABI     abi.ABI
	installmentsModelABIOnce sync.Once
	installmentsModelABIErr  error

	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

// LoanManagerABI returns the parsed LoanManager ABI.
func LoanManagerABI() (abi.ABI, error) {
	loanManagerABIOnce.Do(func() {
		loanManagerABI, loanManagerABIErr = abi.JSON(strings.NewReader(loanManagerABIJSON))
	})
	return loanManagerABI, loanManagerABIErr
}

// DebtEngineABI returns the parsed DebtEngine ABI.
func DebtEngineABI() (abi.ABI, error) {
	debtEngineABIOnce.Do(func() {
		debtEngineABI, debtEngineABIErr = abi.JSON(strings.NewReader(debtEngineABIJSON))
	})
	return debtEngineABI, debtEngineABIErr
}

// InstallmentsModelABI returns the parsed installments model ABI.
func InstallmentsModelABI() (abi.ABI, error) {
	installmentsModelABIOnce.Do(func() {
		installmentsModelABI, installmentsModelABIErr = abi.JSON(strings.NewReader(installmentsModelABIJSON))
	})
	return installmentsModelABI, installmentsModelABIErr
}

// ERC20ABI returns the parsed ERC20 ABI.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// Kind names a protocol contract whose events can be queried.
type Kind string

const (
	KindLoanManager Kind = "loan-manager"
	KindDebtEngine  Kind = "debt-engine"
	KindToken       Kind = "token"
)

// ABIFor returns the ABI of the named contract kind.
func ABIFor(kind Kind) (abi.ABI, error) {
	switch kind {
	case KindLoanManager:
		return LoanManagerABI()
	case KindDebtEngine:
		return DebtEngineABI()
	case KindToken:
		return ERC20ABI()
	default:
		return abi.ABI{}, errUnknownKind(kind)
	}
}
