package intent

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Intent is an off-chain description of a call that a relayer executes on
// behalf of Wallet.
type Intent struct {
	Wallet      common.Address
	To          common.Address
	Value       *big.Int
	Data        []byte
	MinGasLimit uint64
	MaxGasPrice *big.Int
	Salt        common.Hash
	Expiration  uint64
}

// ID is the keccak256 digest of the intent fields. It is the join key
// between a submission and its relay status.
func (i Intent) ID() common.Hash {
	return crypto.Keccak256Hash(
		i.Wallet.Bytes(),
		i.To.Bytes(),
		common.LeftPadBytes(bigOrZero(i.Value).Bytes(), 32),
		crypto.Keccak256(i.Data),
		common.LeftPadBytes(new(big.Int).SetUint64(i.MinGasLimit).Bytes(), 32),
		common.LeftPadBytes(bigOrZero(i.MaxGasPrice).Bytes(), 32),
		i.Salt.Bytes(),
		common.LeftPadBytes(new(big.Int).SetUint64(i.Expiration).Bytes(), 32),
	)
}

// SignedIntent is an intent plus the wallet owner's signature over its ID.
type SignedIntent struct {
	ID        common.Hash
	Intent    Intent
	Signer    common.Address
	Signature []byte
}

// Signer signs intents for one wallet.
type Signer interface {
	Address() common.Address
	Sign(in Intent) (SignedIntent, error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex private key, with or without 0x prefix.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeySignerFromKey(key), nil
}

func NewKeySignerFromKey(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *KeySigner) Address() common.Address { return s.address }

// Key returns the private key, for building transaction signers.
func (s *KeySigner) Key() *ecdsa.PrivateKey { return s.key }

// Sign fills Wallet when empty and signs the EIP-191 digest of the ID.
func (s *KeySigner) Sign(in Intent) (SignedIntent, error) {
	if in.Wallet == (common.Address{}) {
		in.Wallet = s.address
	}
	id := in.ID()
	sig, err := crypto.Sign(accounts.TextHash(id.Bytes()), s.key)
	if err != nil {
		return SignedIntent{}, fmt.Errorf("sign intent: %w", err)
	}
	return SignedIntent{ID: id, Intent: in, Signer: s.address, Signature: sig}, nil
}

// Recover returns the address that produced the signature.
func Recover(si SignedIntent) (common.Address, error) {
	pub, err := crypto.SigToPub(accounts.TextHash(si.ID.Bytes()), si.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
