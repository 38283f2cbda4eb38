package chain

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

type fakeEth struct {
	mu          sync.Mutex
	headerCalls int
}

func (f *fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1337))
}

func (f *fakeEth) GetBlockByNumber(number string, _ bool) (*types.Header, error) {
	f.mu.Lock()
	f.headerCalls++
	f.mu.Unlock()

	n, err := hexutil.DecodeUint64(number)
	if err != nil {
		return nil, err
	}
	return &types.Header{
		Number:     new(big.Int).SetUint64(n),
		Difficulty: new(big.Int),
		Time:       1_700_000_000 + n,
	}, nil
}

func newTestClient(t *testing.T) (*Client, *fakeEth) {
	t.Helper()
	eth := &fakeEth{}
	server := rpc.NewServer()
	if err := server.RegisterName("eth", eth); err != nil {
		t.Fatalf("register: %v", err)
	}
	client := newClient(rpc.DialInProc(server))
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client, eth
}

func TestBlockTimestampIsCached(t *testing.T) {
	client, eth := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ts, err := client.BlockTimestamp(ctx, 10)
		if err != nil {
			t.Fatalf("timestamp: %v", err)
		}
		if ts != 1_700_000_010 {
			t.Fatalf("timestamp = %d", ts)
		}
	}
	if eth.headerCalls != 1 {
		t.Fatalf("expected one header fetch, got %d", eth.headerCalls)
	}
}

func TestChainIDUint64(t *testing.T) {
	client, _ := newTestClient(t)
	id, err := client.ChainIDUint64(context.Background())
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if id != 1337 {
		t.Fatalf("chain id = %d", id)
	}
}
