package wallet

import (
	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/pkg/tx"
)

// Selection is the result of coin selection for one transfer: the inputs
// to spend and the exact fee/change split. HasChange reports whether the
// transaction carries a change output at all; a selection with HasChange
// set and Change of 0 fills the slot with a zero-amount decoy output.
type Selection struct {
	Sources    []*Output
	Total      uint64
	MinerFee   uint64
	ServiceFee uint64
	Change     uint64
	HasChange  bool
}

// CoinSelector picks unspent outputs to fund transfers. Selection is
// greedy over the amount-descending spendable set: the fewer inputs, the
// smaller the transaction, the lower the miner fee.
type CoinSelector struct {
	ledger     *Ledger
	serviceFee *ServiceFee
	feeConfig  nodeclient.FeeConfig

	ringSize  int
	maxInputs int
	dust      uint64
	extraSize int
}

// NewCoinSelector builds a selector over the ledger with the current
// network fee schedule.
func NewCoinSelector(ledger *Ledger, serviceFee *ServiceFee, feeConfig nodeclient.FeeConfig, ringSize, maxInputs int, dust uint64, extraSize int) *CoinSelector {
	return &CoinSelector{
		ledger:     ledger,
		serviceFee: serviceFee,
		feeConfig:  feeConfig,
		ringSize:   ringSize,
		maxInputs:  maxInputs,
		dust:       dust,
		extraSize:  extraSize,
	}
}

func (cs *CoinSelector) minerFee(numInputs, numOutputs int, multiplier uint64) uint64 {
	return tx.EstimateFee(numInputs, cs.ringSize-1, numOutputs, cs.extraSize,
		cs.feeConfig.BaseFee, multiplier, cs.feeConfig.QuantizationMask)
}

// EstimateMaxAmount returns the largest net value the wallet can send at
// the given fee multiplier: everything spendable, minus the miner fee
// for spending all of it into a no-change layout, minus the service fee
// recovered from what remains.
func (cs *CoinSelector) EstimateMaxAmount(multiplier uint64, confirmedOnly bool) uint64 {
	utxos := cs.ledger.UnspentForSpending(confirmedOnly, cs.maxInputs)
	if len(utxos) == 0 {
		return 0
	}
	var available uint64
	for _, o := range utxos {
		available += o.Amount
	}
	// No-change layout: the payment output, plus the service-fee output
	// when this wallet pays one.
	outputs := 1
	if cs.serviceFee.Enabled() {
		outputs++
	}
	minerFee := cs.minerFee(len(utxos), outputs, multiplier)
	if available <= minerFee {
		return 0
	}
	rest := available - minerFee
	return rest - cs.serviceFee.Reverse(rest)
}

// SelectUtxos chooses inputs covering value plus fees. The output count
// priced into the miner fee is conditional: the payment output always,
// the service-fee output only when a fee is due, the change output only
// in the with-change layout. At each prefix of the sorted spendable set
// the no-change layout is tried first; a leftover within the dust
// threshold is folded into the miner fee rather than paid out. Otherwise
// the with-change layout applies, and dust-sized change is likewise
// folded, leaving a zero change slot.
func (cs *CoinSelector) SelectUtxos(value uint64, multiplier uint64, confirmedOnly bool) (*Selection, error) {
	utxos := cs.ledger.UnspentForSpending(confirmedOnly, cs.maxInputs)
	serviceFee := cs.serviceFee.Calculate(value)
	feeOutputs := 0
	if serviceFee > 0 {
		feeOutputs = 1
	}

	var available uint64
	for i, o := range utxos {
		available += o.Amount
		if available <= value {
			continue
		}
		sources := utxos[:i+1]

		// No-change layout.
		minerFee := cs.minerFee(len(sources), 1+feeOutputs, multiplier)
		need := value + serviceFee + minerFee
		if need <= available && available-need <= cs.dust {
			return &Selection{
				Sources:    sources,
				Total:      available,
				MinerFee:   minerFee + (available - need),
				ServiceFee: serviceFee,
				Change:     0,
			}, nil
		}

		// With-change layout adds the change output.
		minerFee = cs.minerFee(len(sources), 2+feeOutputs, multiplier)
		need = value + serviceFee + minerFee
		if need <= available {
			change := available - need
			if change <= cs.dust {
				minerFee += change
				change = 0
			}
			return &Selection{
				Sources:    sources,
				Total:      available,
				MinerFee:   minerFee,
				ServiceFee: serviceFee,
				Change:     change,
				HasChange:  true,
			}, nil
		}
	}

	// Not coverable from this set. If the shortfall disappears once
	// unconfirmed outputs count, report the pending variant so callers
	// can tell the user to wait rather than top up.
	insufficient := &InsufficientFundsError{
		Requested: value,
		Available: cs.EstimateMaxAmount(multiplier, confirmedOnly),
	}
	if confirmedOnly && value <= cs.EstimateMaxAmount(multiplier, false) {
		insufficient.Confirmations = true
	}
	return nil, insufficient
}
