package mcrypto

import (
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"
)

// HashToPointFunc maps a public key onto the curve (Monero's hash_to_ec).
// The map lives in the external signing core next to the ring-signature
// code; engines built without it can still run every view-side operation.
type HashToPointFunc func(PublicKey) (PublicKey, error)

// Ed25519Engine implements Engine on filippo.io/edwards25519. It covers all
// view-side primitives (derivations, one-time keys, confidential amounts)
// natively; key image generation additionally needs a hash-to-point map
// supplied by the signing core.
type Ed25519Engine struct {
	hashToPoint HashToPointFunc
}

// NewEd25519Engine creates an engine. hashToPoint may be nil, in which case
// GenerateKeyImage returns ErrSpendPrimitivesUnavailable and the wallet
// relies on its key-image cache.
func NewEd25519Engine(hashToPoint HashToPointFunc) *Ed25519Engine {
	return &Ed25519Engine{hashToPoint: hashToPoint}
}

func keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// scReduce32 interprets b as a little-endian integer and reduces it mod the
// group order.
func scReduce32(b [32]byte) *edwards25519.Scalar {
	var wide [64]byte
	copy(wide[:], b[:])
	s, _ := edwards25519.NewScalar().SetUniformBytes(wide[:])
	return s
}

// hashToScalar is Monero's Hs: keccak then reduce.
func hashToScalar(data ...[]byte) *edwards25519.Scalar {
	return scReduce32(keccak256(data...))
}

func scalarFromSecret(sec SecretKey) (*edwards25519.Scalar, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(sec[:])
	if err != nil {
		return nil, fmt.Errorf("secret key is not a canonical scalar: %w", err)
	}
	return s, nil
}

func pointFromPublic(pub PublicKey) (*edwards25519.Point, error) {
	p, err := (&edwards25519.Point{}).SetBytes(pub[:])
	if err != nil {
		return nil, fmt.Errorf("public key is not a curve point: %w", err)
	}
	return p, nil
}

// derivationToScalar computes Hs(derivation || varint(index)).
func derivationToScalar(d Derivation, index uint32) *edwards25519.Scalar {
	var varint [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varint[:], uint64(index))
	return hashToScalar(d[:], varint[:n])
}

// GenerateKeyDerivation computes 8·(a·R) for transaction key R and secret
// view key a.
func (e *Ed25519Engine) GenerateKeyDerivation(txPubKey PublicKey, secretViewKey SecretKey) (Derivation, error) {
	point, err := pointFromPublic(txPubKey)
	if err != nil {
		return Derivation{}, fmt.Errorf("tx public key: %w", err)
	}
	view, err := scalarFromSecret(secretViewKey)
	if err != nil {
		return Derivation{}, fmt.Errorf("view key: %w", err)
	}
	shared := (&edwards25519.Point{}).ScalarMult(view, point)
	shared.MultByCofactor(shared)
	var d Derivation
	copy(d[:], shared.Bytes())
	return d, nil
}

// DerivePublicKey computes Hs(derivation || index)·G + B.
func (e *Ed25519Engine) DerivePublicKey(d Derivation, index uint32, spendPubKey PublicKey) (PublicKey, error) {
	base, err := pointFromPublic(spendPubKey)
	if err != nil {
		return PublicKey{}, fmt.Errorf("spend public key: %w", err)
	}
	hs := derivationToScalar(d, index)
	p := (&edwards25519.Point{}).ScalarBaseMult(hs)
	p.Add(p, base)
	var out PublicKey
	copy(out[:], p.Bytes())
	return out, nil
}

// DeriveSecretKey computes Hs(derivation || index) + b.
func (e *Ed25519Engine) DeriveSecretKey(d Derivation, index uint32, secretSpendKey SecretKey) (SecretKey, error) {
	spend, err := scalarFromSecret(secretSpendKey)
	if err != nil {
		return SecretKey{}, fmt.Errorf("spend key: %w", err)
	}
	hs := derivationToScalar(d, index)
	hs.Add(hs, spend)
	var out SecretKey
	copy(out[:], hs.Bytes())
	return out, nil
}

// GenerateKeyImage computes x·Hp(P) for one-time key pair (P, x).
func (e *Ed25519Engine) GenerateKeyImage(pub PublicKey, sec SecretKey) (KeyImage, error) {
	if e.hashToPoint == nil {
		return KeyImage{}, ErrSpendPrimitivesUnavailable
	}
	hp, err := e.hashToPoint(pub)
	if err != nil {
		return KeyImage{}, fmt.Errorf("hash to point: %w", err)
	}
	point, err := pointFromPublic(hp)
	if err != nil {
		return KeyImage{}, fmt.Errorf("hash to point result: %w", err)
	}
	x, err := scalarFromSecret(sec)
	if err != nil {
		return KeyImage{}, fmt.Errorf("one-time secret: %w", err)
	}
	img := (&edwards25519.Point{}).ScalarMult(x, point)
	var out KeyImage
	copy(out[:], img.Bytes())
	return out, nil
}

// DecodeRctAmount decrypts the output amount. Since rct type Bulletproof2
// the ecdh info is 8 bytes xored with keccak("amount" || Hs); earlier types
// store full 32-byte scalars offset by Hs chains.
func (e *Ed25519Engine) DecodeRctAmount(rct RctInfo, index uint32, d Derivation) (uint64, error) {
	hs := derivationToScalar(d, index)
	sharedSec := hs.Bytes()

	if rct.Type.UsesCompactEcdh() {
		enc, err := parseHexN(rct.EcdhAmount, 8)
		if err != nil {
			return 0, fmt.Errorf("ecdh amount: %w", err)
		}
		key := keccak256([]byte("amount"), sharedSec)
		var raw [8]byte
		for i := range raw {
			raw[i] = enc[i] ^ key[i]
		}
		return binary.LittleEndian.Uint64(raw[:]), nil
	}

	enc, err := parseHexN(rct.EcdhAmount, 32)
	if err != nil {
		return 0, fmt.Errorf("ecdh amount: %w", err)
	}
	encScalar, err := edwards25519.NewScalar().SetCanonicalBytes(enc)
	if err != nil {
		return 0, fmt.Errorf("ecdh amount scalar: %w", err)
	}
	// amount = ecdhAmount - Hs(Hs(sharedSec))
	hs1 := hashToScalar(sharedSec)
	hs2 := hashToScalar(hs1.Bytes())
	encScalar.Subtract(encScalar, hs2)
	raw := encScalar.Bytes()
	for _, b := range raw[8:] {
		if b != 0 {
			return 0, fmt.Errorf("decoded amount exceeds 64 bits")
		}
	}
	return binary.LittleEndian.Uint64(raw[:8]), nil
}

func parseHexN(s string, n int) ([]byte, error) {
	k, err := ParseHexBytes(s)
	if err != nil {
		return nil, err
	}
	if len(k) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(k))
	}
	return k, nil
}

// PublicFromSecret computes s·G.
func PublicFromSecret(sec SecretKey) (PublicKey, error) {
	s, err := scalarFromSecret(sec)
	if err != nil {
		return PublicKey{}, err
	}
	p := (&edwards25519.Point{}).ScalarBaseMult(s)
	var out PublicKey
	copy(out[:], p.Bytes())
	return out, nil
}

// ReduceToSecret reduces 32 arbitrary bytes to a canonical scalar. Monero
// derives its spend key this way from seed material.
func ReduceToSecret(b [32]byte) SecretKey {
	var out SecretKey
	copy(out[:], scReduce32(b).Bytes())
	return out
}

// SecretFromSeedBytes maps arbitrary seed material to a canonical scalar
// by hashing with Keccak-256 and reducing.
func SecretFromSeedBytes(seed []byte) SecretKey {
	return ReduceToSecret(keccak256(seed))
}

// ViewKeyFromSpend derives the secret view key as Hs(spend key), Monero's
// deterministic view-key convention.
func ViewKeyFromSpend(spend SecretKey) SecretKey {
	var out SecretKey
	copy(out[:], hashToScalar(spend[:]).Bytes())
	return out
}

func subaddrScalar(secretViewKey SecretKey, index SubaddressIndex) *edwards25519.Scalar {
	buf := make([]byte, 0, 8+KeySize+8)
	buf = append(buf, []byte("SubAddr\x00")...)
	buf = append(buf, secretViewKey[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, index.Major)
	buf = binary.LittleEndian.AppendUint32(buf, index.Minor)
	return hashToScalar(buf)
}

// SubaddressSpendSecret returns the secret spend key b + m of subaddress
// (major, minor). For the primary index it returns b unchanged.
func SubaddressSpendSecret(secretViewKey, secretSpendKey SecretKey, index SubaddressIndex) (SecretKey, error) {
	if index.IsPrimary() {
		return secretSpendKey, nil
	}
	b, err := scalarFromSecret(secretSpendKey)
	if err != nil {
		return SecretKey{}, fmt.Errorf("spend key: %w", err)
	}
	m := subaddrScalar(secretViewKey, index)
	var out SecretKey
	copy(out[:], (&edwards25519.Scalar{}).Add(b, m).Bytes())
	return out, nil
}

// SubaddressKeys derives the public (spend, view) pair of subaddress
// (major, minor) from the secret view key and the primary spend public key:
//
//	m = Hs("SubAddr" || 0 || a || major || minor)
//	D = B + m·G
//	C = a·D
//
// Index (0, 0) is the primary address itself and is returned unchanged.
func SubaddressKeys(secretViewKey SecretKey, spendPubKey PublicKey, index SubaddressIndex) (PublicKey, PublicKey, error) {
	view, err := scalarFromSecret(secretViewKey)
	if err != nil {
		return PublicKey{}, PublicKey{}, fmt.Errorf("view key: %w", err)
	}
	if index.IsPrimary() {
		viewPub := (&edwards25519.Point{}).ScalarBaseMult(view)
		var c PublicKey
		copy(c[:], viewPub.Bytes())
		return spendPubKey, c, nil
	}
	base, err := pointFromPublic(spendPubKey)
	if err != nil {
		return PublicKey{}, PublicKey{}, fmt.Errorf("spend public key: %w", err)
	}
	m := subaddrScalar(secretViewKey, index)

	spendPoint := (&edwards25519.Point{}).ScalarBaseMult(m)
	spendPoint.Add(spendPoint, base)
	viewPoint := (&edwards25519.Point{}).ScalarMult(view, spendPoint)

	var d, c PublicKey
	copy(d[:], spendPoint.Bytes())
	copy(c[:], viewPoint.Bytes())
	return d, c, nil
}
