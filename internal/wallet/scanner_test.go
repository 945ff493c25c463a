package wallet

import (
	"errors"
	"strings"
	"testing"

	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/internal/storage"
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
)

func newTestScanner(t *testing.T, keyring Keyring) (*Scanner, *Ledger, *KeyImageCache) {
	t.Helper()
	ledger := NewLedger()
	cache, err := NewKeyImageCache(storage.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	return NewScanner(fakeEngine{}, keyring, ledger, cache, 10, 60), ledger, cache
}

func TestScanIncomingOutput(t *testing.T) {
	kr := testKeyring(t)
	scanner, ledger, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	txPub := f.txPubKey()
	rec := nodeclient.TxRecord{
		TxID:          f.txID(),
		Timestamp:     1700000000,
		Confirmations: 25,
		TxPubKey:      txPub,
		Outs: []nodeclient.TxOutput{
			f.ownedOut(txPub, 0, 0, 2_000_000_000_000),
			f.foreignOut(1),
		},
	}

	got, err := scanner.Scan(&rec)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !got.Ours {
		t.Fatal("transaction should be ours")
	}
	if got.Direction != Incoming {
		t.Errorf("direction = %s, want incoming", got.Direction)
	}
	if got.Amount != 2_000_000_000_000 {
		t.Errorf("amount = %d, want 2000000000000", got.Amount)
	}
	if !got.Confirmed {
		t.Error("25 confirmations should be confirmed")
	}
	if ledger.Balance() != 2_000_000_000_000 {
		t.Errorf("balance = %d", ledger.Balance())
	}
	if len(ledger.Unspent()) != 1 {
		t.Errorf("unspent count = %d, want 1 (foreign output must not be recorded)", len(ledger.Unspent()))
	}
}

func TestScanSubaddressOutput(t *testing.T) {
	kr := testKeyring(t)
	scanner, ledger, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	txPub := f.txPubKey()
	rec := nodeclient.TxRecord{
		TxID:          f.txID(),
		Confirmations: 30,
		TxPubKey:      txPub,
		Outs:          []nodeclient.TxOutput{f.ownedOut(txPub, 0, 1, 777_000)},
	}

	got, err := scanner.Scan(&rec)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !got.Ours {
		t.Fatal("subaddress output should be recognized")
	}
	outs := ledger.Unspent()
	if len(outs) != 1 {
		t.Fatalf("unspent count = %d", len(outs))
	}
	want := mcrypto.SubaddressIndex{Major: 0, Minor: 1}
	if outs[0].Address != want {
		t.Errorf("address index = %v, want %v", outs[0].Address, want)
	}
}

func TestScanAdditionalPubKey(t *testing.T) {
	kr := testKeyring(t)
	scanner, _, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	// The main tx pub key yields no match; ownership comes through the
	// per-output additional public key.
	txPub := f.txPubKey()
	addPub := f.txPubKey()
	out := f.ownedOut(addPub, 0, 0, 500_000)
	out.AdditionalPubKey = &addPub

	rec := nodeclient.TxRecord{
		TxID:          f.txID(),
		Confirmations: 12,
		TxPubKey:      txPub,
		Outs:          []nodeclient.TxOutput{out},
	}
	got, err := scanner.Scan(&rec)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !got.Ours || got.Amount != 500_000 {
		t.Errorf("ours = %v amount = %d, want ours / 500000", got.Ours, got.Amount)
	}
}

func TestScanPlaintextAmount(t *testing.T) {
	kr := testKeyring(t)
	scanner, _, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	txPub := f.txPubKey()
	out := f.ownedOut(txPub, 0, 0, 0)
	out.Rct = nil
	out.Amount = 123_000

	rec := nodeclient.TxRecord{
		TxID:          f.txID(),
		Confirmations: 70,
		Coinbase:      true,
		TxPubKey:      txPub,
		Outs:          []nodeclient.TxOutput{out},
	}
	got, err := scanner.Scan(&rec)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.Amount != 123_000 {
		t.Errorf("amount = %d, want plaintext 123000", got.Amount)
	}
	if !got.Confirmed {
		t.Error("70 confirmations should confirm a coinbase output")
	}
}

func TestScanCoinbaseConfirmationThreshold(t *testing.T) {
	kr := testKeyring(t)
	scanner, _, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	txPub := f.txPubKey()
	rec := nodeclient.TxRecord{
		TxID:          f.txID(),
		Confirmations: 30,
		Coinbase:      true,
		TxPubKey:      txPub,
		Outs:          []nodeclient.TxOutput{f.ownedOut(txPub, 0, 0, 1000)},
	}
	got, err := scanner.Scan(&rec)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.Confirmed {
		t.Error("coinbase with 30 confirmations must not be confirmed (needs 60)")
	}
}

func TestScanSpendAndReconcile(t *testing.T) {
	kr := testKeyring(t)
	scanner, ledger, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	// Receive 4e12 on the subaddress.
	fundPub := f.txPubKey()
	fundID := f.txID()
	fund := nodeclient.TxRecord{
		TxID:          fundID,
		Timestamp:     1700000000,
		Confirmations: 50,
		TxPubKey:      fundPub,
		Outs:          []nodeclient.TxOutput{f.ownedOut(fundPub, 0, 1, 4_000_000_000_000)},
	}
	if _, err := scanner.Scan(&fund); err != nil {
		t.Fatalf("Scan fund: %v", err)
	}

	// Spend it: change 2.4987e12 comes back to the primary address.
	spendPub := f.txPubKey()
	spend := nodeclient.TxRecord{
		TxID:          f.txID(),
		Timestamp:     1700050000,
		Confirmations: 20,
		Fee:           31_520_000,
		ServiceFee:    750_000_000,
		TxPubKey:      spendPub,
		Ins: []nodeclient.TxInput{{
			KeyImage: f.keyImageFor(fundPub, 0, 1),
			KeyOutputs: []nodeclient.KeyOutputRef{{
				TxID:      fundID,
				TargetKey: fund.Outs[0].TargetKey,
			}},
		}},
		Outs: []nodeclient.TxOutput{f.ownedOut(spendPub, 0, 0, 2_498_731_020_000)},
	}
	got, err := scanner.Scan(&spend)
	if err != nil {
		t.Fatalf("Scan spend: %v", err)
	}
	if got.Direction != Outgoing {
		t.Fatalf("direction = %s, want outgoing", got.Direction)
	}
	// sent - received - totalFee = 4e12 - 2498731020000 - 781520000
	if want := uint64(1_500_487_460_000); got.Amount != want {
		t.Errorf("amount = %d, want %d", got.Amount, want)
	}

	spent, _ := ledger.Get(fundID, fund.Outs[0].TargetKey)
	if !spent.Spent {
		t.Error("funding output should be marked spent")
	}
	if want := uint64(2_498_731_020_000); ledger.Balance() != want {
		t.Errorf("balance = %d, want %d", ledger.Balance(), want)
	}
}

func TestScanIdempotent(t *testing.T) {
	kr := testKeyring(t)
	scanner, ledger, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	txPub := f.txPubKey()
	rec := nodeclient.TxRecord{
		TxID:          f.txID(),
		Confirmations: 15,
		TxPubKey:      txPub,
		Outs:          []nodeclient.TxOutput{f.ownedOut(txPub, 0, 0, 9_000)},
	}
	if _, err := scanner.Scan(&rec); err != nil {
		t.Fatal(err)
	}
	before := ledger.Balance()

	if _, err := scanner.Scan(&rec); err != nil {
		t.Fatalf("re-scan: %v", err)
	}
	if ledger.Balance() != before {
		t.Errorf("re-scan changed balance: %d -> %d", before, ledger.Balance())
	}
	if len(ledger.Unspent()) != 1 {
		t.Errorf("re-scan duplicated output: %d entries", len(ledger.Unspent()))
	}
}

func TestScanRescanKeepsSpentFlag(t *testing.T) {
	kr := testKeyring(t)
	scanner, ledger, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	fundPub := f.txPubKey()
	fundID := f.txID()
	fund := nodeclient.TxRecord{
		TxID:          fundID,
		Confirmations: 50,
		TxPubKey:      fundPub,
		Outs:          []nodeclient.TxOutput{f.ownedOut(fundPub, 0, 0, 10_000)},
	}
	spendPub := f.txPubKey()
	spend := nodeclient.TxRecord{
		TxID:          f.txID(),
		Confirmations: 40,
		Fee:           100,
		TxPubKey:      spendPub,
		Ins: []nodeclient.TxInput{{
			KeyImage: f.keyImageFor(fundPub, 0, 0),
			KeyOutputs: []nodeclient.KeyOutputRef{{
				TxID:      fundID,
				TargetKey: fund.Outs[0].TargetKey,
			}},
		}},
	}

	for _, rec := range []*nodeclient.TxRecord{&fund, &spend, &fund} {
		if _, err := scanner.Scan(rec); err != nil {
			t.Fatal(err)
		}
	}
	o, _ := ledger.Get(fundID, fund.Outs[0].TargetKey)
	if !o.Spent {
		t.Error("re-scanning the funding tx must not clear the spent flag")
	}
	if ledger.Balance() != 0 {
		t.Errorf("balance = %d, want 0", ledger.Balance())
	}
}

func TestScanViewOnlyKeyImage(t *testing.T) {
	kr := testKeyring(t)
	f := newTxFixtures(t, kr)

	viewKr, err := NewViewOnlyKeyring(mcrypto.Mainnet, kr.ViewSecret(), kr.SpendPublic())
	if err != nil {
		t.Fatal(err)
	}

	fundPub := f.txPubKey()
	fundID := f.txID()
	fund := nodeclient.TxRecord{
		TxID:          fundID,
		Confirmations: 50,
		TxPubKey:      fundPub,
		Outs:          []nodeclient.TxOutput{f.ownedOut(fundPub, 0, 0, 10_000)},
	}
	spendPub := f.txPubKey()
	spend := nodeclient.TxRecord{
		TxID:          f.txID(),
		Confirmations: 40,
		TxPubKey:      spendPub,
		Ins: []nodeclient.TxInput{{
			KeyImage: f.keyImageFor(fundPub, 0, 0),
			KeyOutputs: []nodeclient.KeyOutputRef{{
				TxID:      fundID,
				TargetKey: fund.Outs[0].TargetKey,
			}},
		}},
	}

	// Without spend key or cache, spend detection fails distinctly.
	scanner, _, cache := newTestScanner(t, viewKr)
	if _, err := scanner.Scan(&fund); err != nil {
		t.Fatal(err)
	}
	_, err = scanner.Scan(&spend)
	if !errors.Is(err, ErrKeyImageUnavailable) {
		t.Fatalf("err = %v, want ErrKeyImageUnavailable", err)
	}

	// With the key image cached from a prior full-key session, the same
	// view-only scan succeeds.
	d, _ := fakeEngine{}.GenerateKeyDerivation(fundPub, kr.ViewSecret())
	cache.Put(d, 0, mcrypto.SubaddressIndex{}, f.keyImageFor(fundPub, 0, 0))
	got, err := scanner.Scan(&spend)
	if err != nil {
		t.Fatalf("Scan with cached key image: %v", err)
	}
	if !got.Ours || got.Direction != Outgoing {
		t.Errorf("got %+v, want outgoing ours", got)
	}
}

func TestScanMalformedRecord(t *testing.T) {
	kr := testKeyring(t)
	scanner, _, _ := newTestScanner(t, kr)
	f := newTxFixtures(t, kr)

	tests := []struct {
		name string
		rec  nodeclient.TxRecord
	}{
		{"bad txid", nodeclient.TxRecord{TxID: "zzz"}},
		{"short txid", nodeclient.TxRecord{TxID: "abcd"}},
		{
			"missing tx pub key",
			nodeclient.TxRecord{
				TxID: strings.Repeat("ab", 32),
				Outs: []nodeclient.TxOutput{f.foreignOut(0)},
			},
		},
		{
			"missing target key",
			nodeclient.TxRecord{
				TxID:     strings.Repeat("cd", 32),
				TxPubKey: f.txPubKey(),
				Outs:     []nodeclient.TxOutput{{Index: 0}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scanner.Scan(&tt.rec)
			var malformed *MalformedRecordError
			if !errors.As(err, &malformed) {
				t.Errorf("err = %v, want MalformedRecordError", err)
			}
		})
	}
}
