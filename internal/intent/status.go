package intent

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"loanKit/internal/contracts"
	"loanKit/internal/tracker"
)

// StatusClient is the status half of the relay API.
type StatusClient interface {
	Status(ctx context.Context, si SignedIntent) (tracker.Status, error)
	StatusByID(ctx context.Context, id common.Hash) (tracker.Status, error)
}

// IDStatusSource looks status up by intent id.
type IDStatusSource struct {
	Client StatusClient
}

func (s IDStatusSource) Status(ctx context.Context, id string) (tracker.Status, error) {
	return s.Client.StatusByID(ctx, common.HexToHash(id))
}

// SyntheticStatusSource serves relays whose status endpoint only accepts a
// full signed intent. Each query signs a placeholder intent (a zero-value
// token approve to a random spender) and overwrites its id with the tracked
// one before asking the relay.
type SyntheticStatusSource struct {
	Client StatusClient
	Signer Signer
	Token  common.Address
}

func (s SyntheticStatusSource) Status(ctx context.Context, id string) (tracker.Status, error) {
	placeholder, err := s.placeholder()
	if err != nil {
		return tracker.Status{}, err
	}
	placeholder.ID = common.HexToHash(id)
	return s.Client.Status(ctx, placeholder)
}

func (s SyntheticStatusSource) placeholder() (SignedIntent, error) {
	var spender common.Address
	var salt common.Hash
	if _, err := rand.Read(spender[:]); err != nil {
		return SignedIntent{}, fmt.Errorf("random spender: %w", err)
	}
	if _, err := rand.Read(salt[:]); err != nil {
		return SignedIntent{}, fmt.Errorf("random salt: %w", err)
	}
	data, err := contracts.PackApprove(spender, nil)
	if err != nil {
		return SignedIntent{}, err
	}
	return s.Signer.Sign(Intent{
		To:   s.Token,
		Data: data,
		Salt: salt,
	})
}

// NewStatusSource picks the id lookup when byID is set and the placeholder
// workaround otherwise.
func NewStatusSource(client StatusClient, signer Signer, token common.Address, byID bool) tracker.StatusSource {
	if byID {
		return IDStatusSource{Client: client}
	}
	return SyntheticStatusSource{Client: client, Signer: signer, Token: token}
}
