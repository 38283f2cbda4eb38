package events

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"loanKit/internal/apperr"
	"loanKit/internal/contracts"
)

func debtEngineCodec(t *testing.T) *Codec {
	t.Helper()
	parsed, err := contracts.DebtEngineABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return NewCodec(parsed)
}

func TestCodecEvents(t *testing.T) {
	codec := debtEngineCodec(t)
	got := codec.Events()
	want := []string{"Created", "Paid", "ReadedOracle", "Transfer", "Withdrawn"}
	if len(got) != len(want) {
		t.Fatalf("events mismatch: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events mismatch: %v", got)
		}
	}
}

func TestFilterLowercasesAddressAndBuildsTopics(t *testing.T) {
	codec := debtEngineCodec(t)
	to := common.HexToAddress("0x00000000000000000000000000000000000000AB")

	filter, err := codec.Filter("0xABCDEFabcdef0000000000000000000000000001", "Transfer", map[string]interface{}{
		"_to":      to.Hex(),
		"_tokenId": nil,
	})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if filter.Address != "0xabcdefabcdef0000000000000000000000000001" {
		t.Fatalf("address not lower-cased: %s", filter.Address)
	}

	q := filter.Query(big.NewInt(1), big.NewInt(2))
	if len(q.Topics) != 3 {
		t.Fatalf("expected trailing wildcard trimmed to 3 topic positions, got %d", len(q.Topics))
	}
	if q.Topics[0][0] != filter.Topic {
		t.Fatalf("topic0 mismatch")
	}
	if len(q.Topics[1]) != 0 {
		t.Fatalf("_from should be a wildcard")
	}
	if q.Topics[2][0] != common.BytesToHash(to.Bytes()) {
		t.Fatalf("_to topic mismatch: %s", q.Topics[2][0].Hex())
	}
	if _, ok := filter.Constraints["_tokenId"]; ok {
		t.Fatalf("nil constraint should not be recorded")
	}
}

func TestFilterCoercesIntegersAndAlternatives(t *testing.T) {
	codec := debtEngineCodec(t)
	filter, err := codec.Filter("0x0000000000000000000000000000000000000001", "Transfer", map[string]interface{}{
		"_tokenId": []interface{}{"0x10", 17, big.NewInt(18)},
	})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	q := filter.Query(nil, nil)
	if len(q.Topics) != 4 || len(q.Topics[3]) != 3 {
		t.Fatalf("unexpected topics: %v", q.Topics)
	}
	for i, want := range []int64{16, 17, 18} {
		if q.Topics[3][i] != common.BigToHash(big.NewInt(want)) {
			t.Fatalf("tokenId %d mismatch: %s", i, q.Topics[3][i].Hex())
		}
	}
}

func TestFilterRejectsBadSchema(t *testing.T) {
	codec := debtEngineCodec(t)
	address := "0x0000000000000000000000000000000000000001"

	cases := []map[string]interface{}{
		{"_sender": "0x0000000000000000000000000000000000000002"},
		{"_id": "not-hex"},
		{"_id": []interface{}{}},
		{"unknown": 1},
	}
	for i, values := range cases {
		eventName := "Paid"
		if _, err := codec.Filter(address, eventName, values); !errors.Is(err, apperr.ErrInvalidFilterSchema) {
			t.Fatalf("case %d: expected invalid filter schema, got %v", i, err)
		}
	}

	if _, err := codec.Filter(address, "Transfer", map[string]interface{}{"_tokenId": "-1"}); !errors.Is(err, apperr.ErrInvalidFilterSchema) {
		t.Fatalf("negative uint should be rejected, got %v", err)
	}
	if _, err := codec.Filter("nope", "Paid", nil); !errors.Is(err, apperr.ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if _, err := codec.Filter(address, "Lent", nil); !errors.Is(err, apperr.ErrInvalidEventName) {
		t.Fatalf("expected invalid event name, got %v", err)
	}
}

func TestDecodeTypedAndUntyped(t *testing.T) {
	codec := debtEngineCodec(t)
	log := paidLog(t, 7, 2, common.HexToHash("0x0a"), big.NewInt(1000))

	typed, err := DecodeAs[contracts.PaidArgs](codec, log)
	if err != nil {
		t.Fatalf("decode typed: %v", err)
	}
	if typed.EventName != "Paid" || typed.BlockNumber != 7 || typed.LogIndex != 2 {
		t.Fatalf("header mismatch: %+v", typed)
	}
	if common.Hash(typed.Args.Id) != common.HexToHash("0x0a") {
		t.Fatalf("id mismatch")
	}
	if typed.Args.Paid.Cmp(big.NewInt(1000)) != 0 || typed.Args.Tokens.Cmp(big.NewInt(1001)) != 0 {
		t.Fatalf("amounts mismatch: %+v", typed.Args)
	}
	if typed.Args.Sender != testSender {
		t.Fatalf("sender mismatch: %s", typed.Args.Sender.Hex())
	}

	untyped, err := codec.Decode(log)
	if err != nil {
		t.Fatalf("decode untyped: %v", err)
	}
	if got, ok := untyped.Args["_paid"].(*big.Int); !ok || got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("untyped _paid mismatch: %v", untyped.Args["_paid"])
	}
	if _, ok := untyped.Args["_id"]; !ok {
		t.Fatalf("untyped args missing indexed _id")
	}
}

func TestDecodeAllIndexedEvent(t *testing.T) {
	codec := debtEngineCodec(t)
	parsed, _ := contracts.DebtEngineABI()
	from := common.HexToAddress("0x0000000000000000000000000000000000000011")
	to := common.HexToAddress("0x0000000000000000000000000000000000000022")

	log := types.Log{
		Topics: []common.Hash{
			parsed.Events["Transfer"].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(99)),
		},
	}
	ev, err := DecodeAs[contracts.DebtTransferArgs](codec, log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Args.From != from || ev.Args.To != to || ev.Args.TokenId.Int64() != 99 {
		t.Fatalf("args mismatch: %+v", ev.Args)
	}
}

func TestDecodeFailures(t *testing.T) {
	codec := debtEngineCodec(t)

	if _, err := codec.Decode(types.Log{}); err == nil {
		t.Fatalf("expected error for log without topics")
	}
	if _, err := codec.Decode(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}}); err == nil {
		t.Fatalf("expected error for unknown topic0")
	}

	log := paidLog(t, 1, 0, common.HexToHash("0x01"), big.NewInt(1))
	log.Data = log.Data[:10]
	if _, err := codec.Decode(log); err == nil {
		t.Fatalf("expected error for truncated data")
	}

	log = paidLog(t, 1, 0, common.HexToHash("0x01"), big.NewInt(1))
	log.Topics = log.Topics[:1]
	if _, err := codec.Decode(log); err == nil {
		t.Fatalf("expected error for topic count mismatch")
	}
}
