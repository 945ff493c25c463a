package wallet

import (
	"fmt"

	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
)

// WalletAddress pairs an address with its position in the subaddress grid.
type WalletAddress struct {
	Index   mcrypto.SubaddressIndex
	Address mcrypto.Address
}

// Keyring provides the key material a wallet scans and signs with. A
// view-only keyring reports ok=false from SpendSecret; such wallets can
// still scan incoming outputs but rely on the key image cache to detect
// their own spends.
type Keyring interface {
	// ViewSecret returns the secret view key.
	ViewSecret() mcrypto.SecretKey

	// SpendPublic returns the public spend key of the primary address.
	SpendPublic() mcrypto.PublicKey

	// SpendSecret returns the secret spend key, if present.
	SpendSecret() (mcrypto.SecretKey, bool)

	// Addresses returns the addresses the wallet scans for, primary first.
	Addresses() []WalletAddress

	// Address derives the address at the given subaddress index.
	Address(index mcrypto.SubaddressIndex) (mcrypto.Address, error)
}

// StaticKeyring is a Keyring backed by in-memory key material. The spend
// secret may be zero for a view-only wallet.
type StaticKeyring struct {
	network     mcrypto.Network
	viewSecret  mcrypto.SecretKey
	spendSecret mcrypto.SecretKey
	spendPublic mcrypto.PublicKey
	viewPublic  mcrypto.PublicKey
	viewOnly    bool

	scanSet []WalletAddress
}

// NewKeyring builds a keyring from a secret spend key. The view key is
// derived from the spend key, so a single 32-byte secret restores the
// whole wallet.
func NewKeyring(network mcrypto.Network, spendSecret mcrypto.SecretKey) (*StaticKeyring, error) {
	viewSecret := mcrypto.ViewKeyFromSpend(spendSecret)
	spendPublic, err := mcrypto.PublicFromSecret(spendSecret)
	if err != nil {
		return nil, fmt.Errorf("derive spend public key: %w", err)
	}
	kr, err := newStaticKeyring(network, viewSecret, spendPublic)
	if err != nil {
		return nil, err
	}
	kr.spendSecret = spendSecret
	return kr, nil
}

// NewViewOnlyKeyring builds a keyring from a secret view key and public
// spend key. It can recognize incoming outputs but cannot derive key
// images or sign.
func NewViewOnlyKeyring(network mcrypto.Network, viewSecret mcrypto.SecretKey, spendPublic mcrypto.PublicKey) (*StaticKeyring, error) {
	kr, err := newStaticKeyring(network, viewSecret, spendPublic)
	if err != nil {
		return nil, err
	}
	kr.viewOnly = true
	return kr, nil
}

func newStaticKeyring(network mcrypto.Network, viewSecret mcrypto.SecretKey, spendPublic mcrypto.PublicKey) (*StaticKeyring, error) {
	viewPublic, err := mcrypto.PublicFromSecret(viewSecret)
	if err != nil {
		return nil, fmt.Errorf("derive view public key: %w", err)
	}
	kr := &StaticKeyring{
		network:     network,
		viewSecret:  viewSecret,
		spendPublic: spendPublic,
		viewPublic:  viewPublic,
	}

	// The scan set covers the primary address and the first subaddress,
	// which receivers hand out for incoming payments.
	primary := WalletAddress{
		Address: mcrypto.Address{
			Network:  network,
			SpendKey: spendPublic,
			ViewKey:  viewPublic,
		},
	}
	subIndex := mcrypto.SubaddressIndex{Major: 0, Minor: 1}
	sub, err := kr.Address(subIndex)
	if err != nil {
		return nil, err
	}
	kr.scanSet = []WalletAddress{primary, {Index: subIndex, Address: sub}}
	return kr, nil
}

func (kr *StaticKeyring) ViewSecret() mcrypto.SecretKey  { return kr.viewSecret }
func (kr *StaticKeyring) SpendPublic() mcrypto.PublicKey { return kr.spendPublic }
func (kr *StaticKeyring) Addresses() []WalletAddress     { return kr.scanSet }

func (kr *StaticKeyring) SpendSecret() (mcrypto.SecretKey, bool) {
	if kr.viewOnly {
		return mcrypto.SecretKey{}, false
	}
	return kr.spendSecret, true
}

// Address derives the address at the given subaddress index.
func (kr *StaticKeyring) Address(index mcrypto.SubaddressIndex) (mcrypto.Address, error) {
	if index.IsPrimary() {
		return mcrypto.Address{
			Network:  kr.network,
			SpendKey: kr.spendPublic,
			ViewKey:  kr.viewPublic,
		}, nil
	}
	spend, view, err := mcrypto.SubaddressKeys(kr.viewSecret, kr.spendPublic, index)
	if err != nil {
		return mcrypto.Address{}, fmt.Errorf("derive subaddress %s: %w", index, err)
	}
	return mcrypto.Address{
		Network:    kr.network,
		Subaddress: true,
		SpendKey:   spend,
		ViewKey:    view,
	}, nil
}
