package wallet

import (
	"sort"

	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
)

// Output is a transaction output proven to belong to the wallet.
type Output struct {
	TxID      string
	Index     uint32
	GlobalIdx uint64
	TargetKey mcrypto.PublicKey
	TxPubKey  mcrypto.PublicKey
	Amount    uint64

	// Derivation and Address record how ownership was established, so
	// key images and signing secrets can be re-derived later.
	Derivation mcrypto.Derivation
	Address    mcrypto.SubaddressIndex

	Rct       *mcrypto.RctInfo
	Height    uint64
	Coinbase  bool
	Confirmed bool
	Spent     bool
}

// Ledger is the authoritative set of outputs recognized as the wallet's,
// keyed by (txId, targetKey). It is owned exclusively by one wallet
// instance; balance and spendable-input views are pure folds over it.
type Ledger struct {
	outputs    map[string]*Output
	generation uint64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{outputs: make(map[string]*Output)}
}

func outputKey(txID string, targetKey mcrypto.PublicKey) string {
	return txID + ":" + targetKey.String()
}

// Generation counts ledger mutations. Derived values cached against a
// generation are stale once it advances.
func (l *Ledger) Generation() uint64 {
	return l.generation
}

// Get looks up the output created by txID with the given one-time key.
func (l *Ledger) Get(txID string, targetKey mcrypto.PublicKey) (*Output, bool) {
	o, ok := l.outputs[outputKey(txID, targetKey)]
	return o, ok
}

// Put records an output. Re-recording an existing output refreshes its
// confirmation state but never clears the spent flag: spent is monotonic,
// so re-scanning a transaction cannot resurrect a spent output.
func (l *Ledger) Put(o *Output) {
	key := outputKey(o.TxID, o.TargetKey)
	if existing, ok := l.outputs[key]; ok {
		existing.Confirmed = o.Confirmed
		existing.Height = o.Height
		existing.GlobalIdx = o.GlobalIdx
		l.generation++
		return
	}
	l.outputs[key] = o
	l.generation++
}

// MarkSpent sets the spent flag on the output, if present.
func (l *Ledger) MarkSpent(txID string, targetKey mcrypto.PublicKey) {
	if o, ok := l.outputs[outputKey(txID, targetKey)]; ok && !o.Spent {
		o.Spent = true
		l.generation++
	}
}

// Unspent returns all unspent outputs in no particular order.
func (l *Ledger) Unspent() []*Output {
	var out []*Output
	for _, o := range l.outputs {
		if !o.Spent {
			out = append(out, o)
		}
	}
	return out
}

// UnspentForSpending returns unspent outputs ordered by amount descending,
// truncated to at most cap entries. Largest-first keeps the input count,
// and with it the fee, as small as possible for a given target. The cap
// bounds ring data and tx_extra growth per transaction.
func (l *Ledger) UnspentForSpending(confirmedOnly bool, cap int) []*Output {
	var out []*Output
	for _, o := range l.outputs {
		if o.Spent {
			continue
		}
		if confirmedOnly && !o.Confirmed {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		// Stable tiebreak so selection is reproducible.
		return outputKey(out[i].TxID, out[i].TargetKey) < outputKey(out[j].TxID, out[j].TargetKey)
	})
	if cap > 0 && len(out) > cap {
		out = out[:cap]
	}
	return out
}

// Balance sums all unspent output amounts.
func (l *Ledger) Balance() uint64 {
	var sum uint64
	for _, o := range l.outputs {
		if !o.Spent {
			sum += o.Amount
		}
	}
	return sum
}

// ConfirmedBalance sums unspent, confirmed output amounts.
func (l *Ledger) ConfirmedBalance() uint64 {
	var sum uint64
	for _, o := range l.outputs {
		if !o.Spent && o.Confirmed {
			sum += o.Amount
		}
	}
	return sum
}
