package contracts

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	calls   int
	respond func(msg ethereum.CallMsg) ([]byte, error)
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	return f.respond(msg)
}

func TestABIsParse(t *testing.T) {
	for _, kind := range []Kind{KindLoanManager, KindDebtEngine, KindToken} {
		parsed, err := ABIFor(kind)
		if err != nil {
			t.Fatalf("abi %s: %v", kind, err)
		}
		if len(parsed.Events) == 0 {
			t.Fatalf("abi %s has no events", kind)
		}
	}
	if _, err := ABIFor("nope"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := InstallmentsModelABI(); err != nil {
		t.Fatalf("model abi: %v", err)
	}
}

func TestERC20Allowance(t *testing.T) {
	parsed, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	spender := common.HexToAddress("0x3333333333333333333333333333333333333333")

	caller := &fakeCaller{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		if *msg.To != token {
			t.Fatalf("unexpected target %s", msg.To.Hex())
		}
		want, _ := parsed.Pack("allowance", owner, spender)
		if !bytes.Equal(msg.Data, want) {
			t.Fatalf("unexpected calldata")
		}
		return parsed.Methods["allowance"].Outputs.Pack(big.NewInt(500))
	}}

	got, err := NewERC20(token, caller).Allowance(context.Background(), owner, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("allowance mismatch: %s", got)
	}
}

func TestInstallmentsModelEncodeAndValidate(t *testing.T) {
	parsed, err := InstallmentsModelABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	encoded := []byte{0x01, 0x02, 0x03}
	caller := &fakeCaller{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		method, err := parsed.MethodById(msg.Data[:4])
		if err != nil {
			t.Fatalf("method: %v", err)
		}
		switch method.Name {
		case "encodeData":
			return method.Outputs.Pack(encoded)
		case "validate":
			return method.Outputs.Pack(false)
		}
		t.Fatalf("unexpected method %s", method.Name)
		return nil, nil
	}}

	model := NewInstallmentsModel(common.HexToAddress("0x4444444444444444444444444444444444444444"), caller)
	data, err := model.EncodeData(context.Background(), ModelTerms{
		Cuota:        big.NewInt(110),
		InterestRate: big.NewInt(31104000000000),
		Installments: 12,
		Duration:     2592000,
		TimeUnit:     86400,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(data, encoded) {
		t.Fatalf("encoded mismatch: %x", data)
	}

	ok, err := model.Validate(context.Background(), data)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok {
		t.Fatalf("expected validate to return false")
	}
	if caller.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.calls)
	}
}

func TestPackCalldataSelectors(t *testing.T) {
	id := common.HexToHash("0x01")
	to := common.HexToAddress("0x5555555555555555555555555555555555555555")

	debt, _ := DebtEngineABI()
	data, err := PackWithdrawPartial(id, to, big.NewInt(7))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !bytes.Equal(data[:4], debt.Methods["withdrawPartial"].ID) {
		t.Fatalf("selector mismatch")
	}

	manager, _ := LoanManagerABI()
	data, err = PackLend(Lend{ID: id})
	if err != nil {
		t.Fatalf("pack lend: %v", err)
	}
	if !bytes.Equal(data[:4], manager.Methods["lend"].ID) {
		t.Fatalf("lend selector mismatch")
	}
}
