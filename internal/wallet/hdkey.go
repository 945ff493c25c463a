package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"

	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
)

// BIP-44 derivation path constants.
// Full path: m/44'/CoinType'/account'
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeMonero is the registered coin type for Monero (hardened).
	CoinTypeMonero = bip32.FirstHardenedChild + 128
)

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add bip32.FirstHardenedChild to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DeriveAccount derives the key at m/44'/128'/account'.
func (k *HDKey) DeriveAccount(account uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinTypeMonero,
		bip32.FirstHardenedChild+account,
	)
}

// PrivateKeyBytes returns the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 Key.Key is 33 bytes with a leading 0x00 for private keys.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// SpendKey maps this node's private key onto the ed25519 scalar field,
// yielding the wallet's secret spend key.
func (k *HDKey) SpendKey() (mcrypto.SecretKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return mcrypto.SecretKey{}, fmt.Errorf("cannot derive spend key from public-only key")
	}
	return mcrypto.SecretFromSeedBytes(priv), nil
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// SpendKeyFromSeed derives the secret spend key of account at
// m/44'/128'/account' from a 64-byte seed.
func SpendKeyFromSeed(seed []byte, account uint32) (mcrypto.SecretKey, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return mcrypto.SecretKey{}, err
	}
	node, err := master.DeriveAccount(account)
	if err != nil {
		return mcrypto.SecretKey{}, err
	}
	return node.SpendKey()
}
