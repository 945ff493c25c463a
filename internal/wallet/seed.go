package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// SeedSize is the length of the wallet seed in bytes. The seed is the
// single secret a wallet file stores; spend and view keys are derived
// from it on unlock.
const SeedSize = 64

// SeedFromMnemonic derives the wallet seed from a recovery mnemonic and
// optional passphrase (BIP-39 PBKDF2-SHA512).
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("derived seed is %d bytes, want %d", len(seed), SeedSize)
	}
	return seed, nil
}
