package intent

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"loanKit/internal/tracker"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestKeySignerSignsAndRecovers(t *testing.T) {
	signer, err := NewKeySigner("0x" + testKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	in := Intent{
		To:          common.HexToAddress("0x0000000000000000000000000000000000000011"),
		Value:       big.NewInt(7),
		Data:        []byte{0x01, 0x02},
		MinGasLimit: 21000,
		Salt:        common.HexToHash("0x05"),
	}
	si, err := signer.Sign(in)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if si.Intent.Wallet != signer.Address() {
		t.Fatalf("wallet should default to signer address")
	}
	if si.ID != si.Intent.ID() {
		t.Fatalf("id mismatch")
	}
	got, err := Recover(si)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != signer.Address() {
		t.Fatalf("recovered %s, want %s", got.Hex(), signer.Address().Hex())
	}
}

func TestIntentIDIsDeterministic(t *testing.T) {
	a := Intent{To: common.HexToAddress("0x01"), Data: []byte{0xaa}, Salt: common.HexToHash("0x01")}
	b := a
	if a.ID() != b.ID() {
		t.Fatalf("same intent produced different ids")
	}
	b.Salt = common.HexToHash("0x02")
	if a.ID() == b.ID() {
		t.Fatalf("different salts produced the same id")
	}
	c := a
	c.Value = new(big.Int)
	if a.ID() != c.ID() {
		t.Fatalf("nil and zero value should hash the same")
	}
}

func TestNewKeySignerRejectsGarbage(t *testing.T) {
	if _, err := NewKeySigner("not-a-key"); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeRelay struct {
	mu        sync.Mutex
	submitted []RelayIntent
	queried   []RelayIntent
	byID      []common.Hash
	code      string
}

func (r *fakeRelay) SubmitIntent(in RelayIntent) (common.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, in)
	return in.ID, nil
}

func (r *fakeRelay) IntentStatus(in RelayIntent) (RelayStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queried = append(r.queried, in)
	return RelayStatus{Code: r.code}, nil
}

func (r *fakeRelay) IntentStatusById(id common.Hash) (RelayStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = append(r.byID, id)
	return RelayStatus{
		Code: r.code,
		Receipt: &RelayReceipt{
			TxHash:        common.HexToHash("0xabc"),
			BlockNumber:   12,
			Confirmations: 3,
			Success:       true,
		},
	}, nil
}

func newRelayPair(t *testing.T, code string) (*fakeRelay, *RelayClient) {
	t.Helper()
	relay := &fakeRelay{code: code}
	server := rpc.NewServer()
	if err := server.RegisterName("relay", relay); err != nil {
		t.Fatalf("register: %v", err)
	}
	client := NewRelayClient(rpc.DialInProc(server), nil)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return relay, client
}

func TestRelayClientSubmitsAndQueries(t *testing.T) {
	relay, client := newRelayPair(t, "settling")
	signer, err := NewKeySigner(testKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	si, err := signer.Sign(Intent{To: common.HexToAddress("0x22"), Data: []byte{0x01}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := client.Relay(context.Background(), si); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if len(relay.submitted) != 1 || relay.submitted[0].ID != si.ID || relay.submitted[0].Signer != signer.Address() {
		t.Fatalf("unexpected submission: %+v", relay.submitted)
	}

	status, err := client.StatusByID(context.Background(), si.ID)
	if err != nil {
		t.Fatalf("status by id: %v", err)
	}
	if status.Code != tracker.StatusSettling || status.ID != si.ID.Hex() {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Receipt == nil || status.Receipt.BlockNumber != 12 || status.Receipt.Confirmations != 3 {
		t.Fatalf("unexpected receipt: %+v", status.Receipt)
	}
}

func TestSyntheticStatusSourceOverwritesID(t *testing.T) {
	relay, client := newRelayPair(t, "pending")
	signer, err := NewKeySigner(testKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token := common.HexToAddress("0x0000000000000000000000000000000000000033")
	tracked := crypto.Keccak256Hash([]byte("tracked"))

	src := NewStatusSource(client, signer, token, false)
	status, err := src.Status(context.Background(), tracked.Hex())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Code != tracker.StatusPending || status.ID != tracked.Hex() {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(relay.queried) != 1 {
		t.Fatalf("expected one query, got %d", len(relay.queried))
	}
	q := relay.queried[0]
	if q.ID != tracked || q.To != token || q.Wallet != signer.Address() {
		t.Fatalf("placeholder intent mismatch: %+v", q)
	}
	if len(relay.byID) != 0 {
		t.Fatalf("id lookup should not be used")
	}
}

func TestIDStatusSourceUsesLookup(t *testing.T) {
	relay, client := newRelayPair(t, "settled")
	tracked := crypto.Keccak256Hash([]byte("x"))

	src := NewStatusSource(client, nil, common.Address{}, true)
	status, err := src.Status(context.Background(), tracked.Hex())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Code != tracker.StatusSettled {
		t.Fatalf("unexpected code %s", status.Code)
	}
	if len(relay.byID) != 1 || relay.byID[0] != tracked {
		t.Fatalf("unexpected lookups: %v", relay.byID)
	}
}
