package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"loanKit/internal/apperr"
	"loanKit/internal/contracts"
	"loanKit/internal/events"
	"loanKit/internal/model"
)

var debtEngine = common.HexToAddress("0x00000000000000000000000000000000000000a2")

func paidLog(t *testing.T, block uint64, index uint) types.Log {
	t.Helper()
	parsed, err := contracts.DebtEngineABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := parsed.Events["Paid"]
	data, err := event.Inputs.NonIndexed().Pack(
		common.HexToAddress("0x05"),
		common.HexToAddress("0x06"),
		big.NewInt(10),
		big.NewInt(11),
		big.NewInt(12),
		big.NewInt(13),
	)
	if err != nil {
		t.Fatalf("pack paid: %v", err)
	}
	return types.Log{
		Address:     debtEngine,
		Topics:      []common.Hash{event.ID, common.BigToHash(new(big.Int).SetUint64(block))},
		Data:        data,
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
	}
}

type fakeNode struct {
	mu        sync.Mutex
	logs      []types.Log
	failFirst int
	queries   []ethereum.FilterQuery
	head      uint64
}

func (n *fakeNode) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queries = append(n.queries, q)
	if n.failFirst > 0 {
		n.failFirst--
		return nil, errors.New("rate limited")
	}
	var out []types.Log
	for _, log := range n.logs {
		if log.BlockNumber >= q.FromBlock.Uint64() && log.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, log)
		}
	}
	return out, nil
}

func (n *fakeNode) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (n *fakeNode) BlockNumber(context.Context) (uint64, error) { return n.head, nil }

func (n *fakeNode) ChainIDUint64(context.Context) (uint64, error) { return 1337, nil }

func (n *fakeNode) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number, nil
}

type memoryStorage struct {
	batches [][]model.EventRecord
}

func (s *memoryStorage) PutEventBatch(_ context.Context, records []model.EventRecord) error {
	s.batches = append(s.batches, records)
	return nil
}

func (s *memoryStorage) all() []model.EventRecord {
	var out []model.EventRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func newManager(t *testing.T, node *fakeNode) *events.Manager {
	t.Helper()
	parsed, err := contracts.DebtEngineABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return events.NewManager(debtEngine, events.NewCodec(parsed), node)
}

func TestRunnerExportsRangesAndCheckpoints(t *testing.T) {
	node := &fakeNode{
		logs: []types.Log{paidLog(t, 100, 0), paidLog(t, 105, 1), paidLog(t, 111, 0)},
		head: 119,
	}
	sink := &memoryStorage{}
	cpPath := filepath.Join(t.TempDir(), "cp.json")

	runner := NewRunner(RunConfig{
		Contract:          "debt-engine",
		EventName:         "Paid",
		FromBlock:         100,
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
		MaxRetries:        1,
		RetryBackoff:      time.Millisecond,
		Timestamps:        true,
	}, node, newManager(t, node), sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(sink.batches))
	}
	records := sink.all()
	var blocks []uint64
	for _, r := range records {
		blocks = append(blocks, r.BlockNumber)
		if r.ChainID != 1337 || r.Contract != "debt-engine" || r.EventName != "Paid" {
			t.Fatalf("unexpected record envelope: %+v", r)
		}
		if r.Timestamp != 1_700_000_000+r.BlockNumber {
			t.Fatalf("timestamp not attached: %+v", r)
		}
	}
	if !reflect.DeepEqual(blocks, []uint64{100, 105, 111}) {
		t.Fatalf("blocks = %v", blocks)
	}
	if records[0].Args["_paid"] != "12" {
		t.Fatalf("args not normalized: %v", records[0].Args)
	}

	scope := checkpointScope(1337, strings.ToLower(debtEngine.Hex()), "Paid")
	cp, ok, err := NewCheckpointStore(cpPath, true).Load(scope)
	if err != nil || !ok {
		t.Fatalf("checkpoint: %v %v", ok, err)
	}
	if cp.LastProcessedBlock != 119 || cp.Events != 3 {
		t.Fatalf("checkpoint = %+v, want block 119 with 3 events", cp)
	}
	if _, ok, _ := NewCheckpointStore(cpPath, true).Load(checkpointScope(1, "0xother", "Paid")); ok {
		t.Fatalf("checkpoint of another scope must not load")
	}

	// A second run resumes after the checkpoint and finds nothing to do.
	before := len(node.queries)
	if err := NewRunner(RunConfig{
		Contract:          "debt-engine",
		EventName:         "Paid",
		FromBlock:         100,
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}, node, newManager(t, node), sink, nil).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(node.queries) != before {
		t.Fatalf("resumed run should not query the node")
	}
}

func TestRunnerRetriesTransientErrors(t *testing.T) {
	node := &fakeNode{logs: []types.Log{paidLog(t, 5, 0)}, failFirst: 2}
	sink := &memoryStorage{}

	runner := NewRunner(RunConfig{
		EventName:    "Paid",
		FromBlock:    1,
		ToBlock:      9,
		BatchSize:    100,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, node, newManager(t, node), sink, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(node.queries) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(node.queries))
	}
	if got := sink.all(); len(got) != 1 || got[0].Timestamp != 0 {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestRunnerRejectsUnknownEvent(t *testing.T) {
	node := &fakeNode{}
	runner := NewRunner(RunConfig{
		EventName: "Nope",
		FromBlock: 1,
		ToBlock:   2,
		BatchSize: 10,
	}, node, newManager(t, node), &memoryStorage{}, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(node.queries) != 0 {
		t.Fatalf("unknown event should not reach the node")
	}
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, 50*time.Millisecond, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestWithRetrySkipsInputValidation(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return apperr.ErrInvalidBlockRange
	})
	if !errors.Is(err, apperr.ErrInvalidBlockRange) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestCheckpointStoreDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	store := NewCheckpointStore(path, false)
	if err := store.Save(Checkpoint{Scope: "s", LastProcessedBlock: 9}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, err := NewCheckpointStore(path, true).Load("s"); err != nil || ok {
		t.Fatalf("disabled store must not write: %v %v", ok, err)
	}
}

func TestParseWhere(t *testing.T) {
	got, err := ParseWhere([]string{"_id=0x01", " _sender = 0xa|0xb ", "_to=*", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]interface{}{
		"_id":     "0x01",
		"_sender": []string{"0xa", "0xb"},
		"_to":     nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}

	for _, bad := range []string{"novalue", "=x", "k=", "k=|"} {
		if _, err := ParseWhere([]string{bad}); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
