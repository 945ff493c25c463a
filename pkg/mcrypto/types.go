// Package mcrypto defines the call contract with the external Monero
// cryptography engine and the key/byte types shared across the wallet.
package mcrypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeySize is the length of an ed25519 key (point or scalar) in bytes.
const KeySize = 32

// PublicKey is a compressed ed25519 point.
type PublicKey [KeySize]byte

// SecretKey is an ed25519 scalar.
type SecretKey [KeySize]byte

// Derivation is the shared secret computed from a transaction public key and
// a secret view key. It unlocks stealth outputs and confidential amounts.
type Derivation [KeySize]byte

// KeyImage uniquely marks an owned output as spent when it appears in an input.
type KeyImage [KeySize]byte

// String returns the hex-encoded key.
func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

// String returns the hex-encoded derivation.
func (d Derivation) String() string { return hex.EncodeToString(d[:]) }

// String returns the hex-encoded key image.
func (k KeyImage) String() string { return hex.EncodeToString(k[:]) }

// IsZero returns true if the key is all zeros.
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

// IsZero returns true if the secret key is all zeros.
func (k SecretKey) IsZero() bool { return k == SecretKey{} }

// Bytes returns a copy of the key as a byte slice.
func (k PublicKey) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k[:])
	return b
}

// MarshalJSON encodes the public key as a hex string.
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a hex string into a public key.
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*k = PublicKey{}
		return nil
	}
	decoded, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = PublicKey(decoded)
	return nil
}

// MarshalJSON encodes the key image as a hex string.
func (k KeyImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a hex string into a key image.
func (k *KeyImage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*k = KeyImage{}
		return nil
	}
	decoded, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = KeyImage(decoded)
	return nil
}

// ParseKey converts a 64-character hex string into a 32-byte key.
func ParseKey(s string) ([KeySize]byte, error) {
	var k [KeySize]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid key hex: %w", err)
	}
	if len(b) != KeySize {
		return k, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// ParseHexBytes decodes a hex string of any length.
func ParseHexBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// RctType tags the ring-confidential signature layout of an output.
// Values follow the on-chain rct type byte.
type RctType int

const (
	RctNull            RctType = 0 // plaintext amount (coinbase, pre-rct)
	RctFull            RctType = 1
	RctSimple          RctType = 2
	RctBulletproof     RctType = 3
	RctBulletproof2    RctType = 4
	RctCLSAG           RctType = 5
	RctBulletproofPlus RctType = 6
)

// UsesCompactEcdh reports whether the ecdh info is the 8-byte compact
// encoding introduced with rct type Bulletproof2.
func (t RctType) UsesCompactEcdh() bool {
	return t >= RctBulletproof2
}

// RctInfo carries the confidential-amount fields of a single output, as
// delivered by the node. Amount and mask are hex strings: 8 bytes for the
// compact encoding, 32 bytes otherwise.
type RctInfo struct {
	EcdhAmount string  `json:"ecdhInfoAmount"`
	EcdhMask   string  `json:"ecdhInfoMask,omitempty"`
	OutPk      string  `json:"outPk"`
	Type       RctType `json:"rctType"`
}

// SubaddressIndex addresses a subaddress in the (major, minor) grid.
// The zero value is the primary address.
type SubaddressIndex struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

// IsPrimary returns true for the (0, 0) index.
func (i SubaddressIndex) IsPrimary() bool {
	return i.Major == 0 && i.Minor == 0
}

func (i SubaddressIndex) String() string {
	return fmt.Sprintf("%d/%d", i.Major, i.Minor)
}
