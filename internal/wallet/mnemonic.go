package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// mnemonicEntropyBits yields 24-word recovery mnemonics.
const mnemonicEntropyBits = 256

// GenerateMnemonic creates a fresh 24-word BIP-39 recovery mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether the mnemonic has a valid word count,
// known words, and a correct checksum.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}
