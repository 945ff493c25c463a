package mcrypto

import "errors"

// ErrSpendPrimitivesUnavailable is returned by engines that carry only the
// view-side primitives when a spend-side operation (key image generation) is
// requested. The wallet falls back to its persisted key-image cache.
var ErrSpendPrimitivesUnavailable = errors.New("spend primitives unavailable")

// Engine is the call contract with the external Monero elliptic-curve
// library. The wallet never does curve arithmetic itself; everything it
// needs from the curve goes through this interface.
//
// All operations are deterministic and side-effect free.
type Engine interface {
	// GenerateKeyDerivation computes the shared secret between a
	// transaction public key and a secret view key. This is the only
	// per-transaction operation and requires the view key only.
	GenerateKeyDerivation(txPubKey PublicKey, secretViewKey SecretKey) (Derivation, error)

	// DerivePublicKey derives the one-time output public key for the
	// output at the given index, as seen by the owner of spendPubKey.
	// An output belongs to the wallet iff this equals its target key.
	DerivePublicKey(d Derivation, index uint32, spendPubKey PublicKey) (PublicKey, error)

	// DeriveSecretKey derives the one-time output secret key. Requires
	// the secret spend key; used for key image generation and signing.
	DeriveSecretKey(d Derivation, index uint32, secretSpendKey SecretKey) (SecretKey, error)

	// GenerateKeyImage computes the key image of an owned output from its
	// one-time key pair. Engines without spend-side support return
	// ErrSpendPrimitivesUnavailable.
	GenerateKeyImage(pub PublicKey, sec SecretKey) (KeyImage, error)

	// DecodeRctAmount decrypts the confidential amount of an owned output
	// using the derivation that proved ownership. Only called for
	// non-null rct types.
	DecodeRctAmount(rct RctInfo, index uint32, d Derivation) (uint64, error)
}
