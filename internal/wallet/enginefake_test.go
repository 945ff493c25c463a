package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	klog "github.com/cielo-wallet/xmr-engine/internal/log"
	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/internal/storage"
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
	"github.com/cielo-wallet/xmr-engine/pkg/tx"
)

func init() {
	klog.Init("error", false, "")
}

// fakeEngine is a deterministic stand-in for the curve primitives: every
// operation is a domain-separated hash of its arguments. Relationships
// between operations (a derived public key matches a derived secret key)
// hold by construction in the fixtures, which compute expected values
// through the same functions.
type fakeEngine struct{}

func fakeHash(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func u32le(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func (fakeEngine) GenerateKeyDerivation(txPubKey mcrypto.PublicKey, secretViewKey mcrypto.SecretKey) (mcrypto.Derivation, error) {
	return mcrypto.Derivation(fakeHash("derivation", txPubKey[:], secretViewKey[:])), nil
}

func (fakeEngine) DerivePublicKey(d mcrypto.Derivation, index uint32, spendPubKey mcrypto.PublicKey) (mcrypto.PublicKey, error) {
	return mcrypto.PublicKey(fakeHash("public", d[:], u32le(index), spendPubKey[:])), nil
}

func (fakeEngine) DeriveSecretKey(d mcrypto.Derivation, index uint32, secretSpendKey mcrypto.SecretKey) (mcrypto.SecretKey, error) {
	return mcrypto.SecretKey(fakeHash("secret", d[:], u32le(index), secretSpendKey[:])), nil
}

func (fakeEngine) GenerateKeyImage(pub mcrypto.PublicKey, sec mcrypto.SecretKey) (mcrypto.KeyImage, error) {
	return mcrypto.KeyImage(fakeHash("keyimage", pub[:], sec[:])), nil
}

// DecodeRctAmount reads the amount straight from the ecdh hex: the
// fixtures store the plaintext amount there.
func (fakeEngine) DecodeRctAmount(rct mcrypto.RctInfo, index uint32, d mcrypto.Derivation) (uint64, error) {
	b, err := hex.DecodeString(rct.EcdhAmount)
	if err != nil || len(b) != 8 {
		return 0, fmt.Errorf("bad ecdh amount %q", rct.EcdhAmount)
	}
	return binary.BigEndian.Uint64(b), nil
}

// viewOnlyEngine refuses key image generation, modelling an engine
// without the spend-side primitives loaded.
type viewOnlyEngine struct{ fakeEngine }

func (viewOnlyEngine) GenerateKeyImage(pub mcrypto.PublicKey, sec mcrypto.SecretKey) (mcrypto.KeyImage, error) {
	return mcrypto.KeyImage{}, mcrypto.ErrSpendPrimitivesUnavailable
}

// fakeNode serves canned transaction records keyed by id.
type fakeNode struct {
	records map[string]nodeclient.TxRecord
	fee     nodeclient.FeeConfig

	// order controls what Transactions returns for multi-id fetches.
	order []string

	randomCalls int
	sendCalls   []string
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		records: make(map[string]nodeclient.TxRecord),
		fee:     nodeclient.FeeConfig{BaseFee: 231997, QuantizationMask: 10000},
	}
}

func (n *fakeNode) add(rec nodeclient.TxRecord) {
	n.records[strings.ToLower(rec.TxID)] = rec
	n.order = append(n.order, strings.ToLower(rec.TxID))
}

func (n *fakeNode) Transactions(ctx context.Context, txIDs []string) ([]nodeclient.TxRecord, error) {
	var out []nodeclient.TxRecord
	for _, id := range txIDs {
		if rec, ok := n.records[strings.ToLower(id)]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (n *fakeNode) FeeConfig(ctx context.Context) (*nodeclient.FeeConfig, error) {
	fee := n.fee
	return &fee, nil
}

func (n *fakeNode) RandomOutputs(ctx context.Context, amounts []uint64, count int, height uint64) ([]nodeclient.RandomOutputSet, error) {
	n.randomCalls++
	set := nodeclient.RandomOutputSet{Amount: amounts[0]}
	for i := 0; i < count; i++ {
		pk := mcrypto.PublicKey(fakeHash("decoy", u32le(uint32(n.randomCalls)), u32le(uint32(i))))
		set.Outputs = append(set.Outputs, nodeclient.RandomOutput{
			PublicKey:   pk,
			GlobalIndex: uint64(77000000 + i),
		})
	}
	return []nodeclient.RandomOutputSet{set}, nil
}

func (n *fakeNode) SendRawTransaction(ctx context.Context, rawHex string) (string, error) {
	h := fakeHash("txid", []byte(rawHex))
	id := hex.EncodeToString(h[:])
	n.sendCalls = append(n.sendCalls, id)
	return id, nil
}

// fakeOracle serves a fixed service-fee schedule.
type fakeOracle struct {
	cfg nodeclient.ServiceFeeConfig
}

func (o *fakeOracle) ServiceFee(ctx context.Context) (*nodeclient.ServiceFeeConfig, error) {
	cfg := o.cfg
	return &cfg, nil
}

// fakeSigner returns a fixed blob and remembers the payload.
type fakeSigner struct {
	payload *tx.Payload
}

func (s *fakeSigner) Sign(ctx context.Context, payload *tx.Payload) (string, error) {
	s.payload = payload
	return "00ff00ff", nil
}

func testKeyring(t *testing.T) *StaticKeyring {
	t.Helper()
	spend := mcrypto.SecretFromSeedBytes([]byte("wallet engine test spend seed"))
	kr, err := NewKeyring(mcrypto.Mainnet, spend)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	return kr
}

func testParams(t *testing.T, node *fakeNode, oracle OracleAPI) Params {
	t.Helper()
	return Params{
		Engine:                   fakeEngine{},
		Keyring:                  testKeyring(t),
		Node:                     node,
		Oracle:                   oracle,
		DB:                       storage.NewMemory(),
		Network:                  mcrypto.Mainnet,
		RingSize:                 16,
		MaxTxInputs:              292,
		MinConfirmations:         10,
		MinConfirmationsCoinbase: 60,
		DustThreshold:            1,
		TxExtraSize:              142,
		FeeMultiplierDefault:     1,
		FeeMultiplierFastest:     25,
		TxPerPage:                10,
	}
}

// txFixtures builds transaction records whose outputs provably belong to
// the keyring under the fake engine. Targets are computed through the
// same derivation calls the scanner makes.
type txFixtures struct {
	t       *testing.T
	engine  fakeEngine
	keyring *StaticKeyring
	seq     int
}

func newTxFixtures(t *testing.T, keyring *StaticKeyring) *txFixtures {
	return &txFixtures{t: t, keyring: keyring}
}

func (f *txFixtures) txID() string {
	f.seq++
	return fmt.Sprintf("%064x", 0xf00d0000+f.seq)
}

func (f *txFixtures) txPubKey() mcrypto.PublicKey {
	f.seq++
	return mcrypto.PublicKey(fakeHash("txpub", u32le(uint32(f.seq))))
}

func encodeAmount(amount uint64) string {
	return hex.EncodeToString(binary.BigEndian.AppendUint64(nil, amount))
}

// ownedOut builds an output at index that the scanner will match for the
// wallet address at addrIdx, carrying the given confidential amount.
func (f *txFixtures) ownedOut(txPub mcrypto.PublicKey, index uint32, addrIdx int, amount uint64) nodeclient.TxOutput {
	f.t.Helper()
	addr := f.keyring.Addresses()[addrIdx]
	d, err := f.engine.GenerateKeyDerivation(txPub, f.keyring.ViewSecret())
	if err != nil {
		f.t.Fatal(err)
	}
	target, err := f.engine.DerivePublicKey(d, index, addr.Address.SpendKey)
	if err != nil {
		f.t.Fatal(err)
	}
	return nodeclient.TxOutput{
		Index:     uint64(index),
		TargetKey: target,
		Rct: &mcrypto.RctInfo{
			EcdhAmount: encodeAmount(amount),
			Type:       mcrypto.RctBulletproofPlus,
		},
	}
}

// foreignOut builds an output the wallet does not own.
func (f *txFixtures) foreignOut(index uint32) nodeclient.TxOutput {
	f.seq++
	return nodeclient.TxOutput{
		Index:     uint64(index),
		TargetKey: mcrypto.PublicKey(fakeHash("foreign", u32le(uint32(f.seq)))),
		Rct: &mcrypto.RctInfo{
			EcdhAmount: encodeAmount(1),
			Type:       mcrypto.RctBulletproofPlus,
		},
	}
}

// keyImageFor computes the key image the scanner derives for an owned
// output created by ownedOut.
func (f *txFixtures) keyImageFor(txPub mcrypto.PublicKey, index uint32, addrIdx int) mcrypto.KeyImage {
	f.t.Helper()
	addr := f.keyring.Addresses()[addrIdx]
	d, _ := f.engine.GenerateKeyDerivation(txPub, f.keyring.ViewSecret())
	target, _ := f.engine.DerivePublicKey(d, index, addr.Address.SpendKey)

	spendSecret, ok := f.keyring.SpendSecret()
	if !ok {
		f.t.Fatal("keyring has no spend secret")
	}
	effSpend, err := mcrypto.SubaddressSpendSecret(f.keyring.ViewSecret(), spendSecret, addr.Index)
	if err != nil {
		f.t.Fatal(err)
	}
	sec, _ := f.engine.DeriveSecretKey(d, index, effSpend)
	ki, _ := f.engine.GenerateKeyImage(target, sec)
	return ki
}
