package wallet

import (
	"errors"
	"testing"

	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/pkg/tx"
)

var testFeeConfig = nodeclient.FeeConfig{BaseFee: 231997, QuantizationMask: 10000}

func noServiceFee() *ServiceFee {
	return NewServiceFee(nodeclient.ServiceFeeConfig{Disabled: true}, "")
}

func newTestSelector(l *Ledger, svc *ServiceFee) *CoinSelector {
	return NewCoinSelector(l, svc, testFeeConfig, 16, 292, 1, 142)
}

// minerFeeFor prices a layout against the test fee schedule. The output
// count is the payment output, plus the change output when present,
// plus the service-fee output when one is due.
func minerFeeFor(inputs, outputs int) uint64 {
	return tx.EstimateFee(inputs, 15, outputs, 142, testFeeConfig.BaseFee, 1, testFeeConfig.QuantizationMask)
}

// Layout fees with no service fee due.
func feeNoChange(inputs int) uint64   { return minerFeeFor(inputs, 1) }
func feeWithChange(inputs int) uint64 { return minerFeeFor(inputs, 2) }

func fundedLedger() *Ledger {
	l := NewLedger()
	l.Put(ledgerOutput(1, 5_000_000_000_000, true))
	l.Put(ledgerOutput(2, 3_000_000_000_000, true))
	l.Put(ledgerOutput(3, 1_000_000_000_000, true))
	return l
}

func TestSelectUtxosNoChange(t *testing.T) {
	cs := newTestSelector(fundedLedger(), noServiceFee())

	// A value that consumes the largest output exactly, fees included,
	// needs no change output.
	value := 5_000_000_000_000 - feeNoChange(1)
	sel, err := cs.SelectUtxos(value, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos: %v", err)
	}
	if len(sel.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(sel.Sources))
	}
	if sel.Change != 0 || sel.HasChange {
		t.Errorf("change = %d (HasChange=%v), want no change slot", sel.Change, sel.HasChange)
	}
	if sel.MinerFee != feeNoChange(1) {
		t.Errorf("miner fee = %d, want %d", sel.MinerFee, feeNoChange(1))
	}
	if sel.Total != 5_000_000_000_000 {
		t.Errorf("total = %d", sel.Total)
	}
}

func TestSelectUtxosWithChange(t *testing.T) {
	cs := newTestSelector(fundedLedger(), noServiceFee())

	value := uint64(1_000_000_000_000)
	sel, err := cs.SelectUtxos(value, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos: %v", err)
	}
	if len(sel.Sources) != 1 || sel.Sources[0].Amount != 5_000_000_000_000 {
		t.Fatalf("selection should use only the largest output, got %d sources", len(sel.Sources))
	}
	wantFee := feeWithChange(1)
	if sel.MinerFee != wantFee {
		t.Errorf("miner fee = %d, want %d", sel.MinerFee, wantFee)
	}
	wantChange := 5_000_000_000_000 - value - wantFee
	if sel.Change != wantChange || !sel.HasChange {
		t.Errorf("change = %d (HasChange=%v), want %d", sel.Change, sel.HasChange, wantChange)
	}
}

func TestSelectUtxosDustChangeFolded(t *testing.T) {
	cs := newTestSelector(fundedLedger(), noServiceFee())

	// Leave exactly one atomic unit of change: below the dust threshold
	// it must fold into the miner fee, never appear as a real output.
	value := 5_000_000_000_000 - feeWithChange(1) - 1
	sel, err := cs.SelectUtxos(value, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos: %v", err)
	}
	if sel.Change != 0 || !sel.HasChange {
		t.Errorf("change = %d (HasChange=%v), want a zero change slot", sel.Change, sel.HasChange)
	}
	if sel.MinerFee != feeWithChange(1)+1 {
		t.Errorf("miner fee = %d, want %d", sel.MinerFee, feeWithChange(1)+1)
	}
}

func TestSelectUtxosAccumulatesInputs(t *testing.T) {
	cs := newTestSelector(fundedLedger(), noServiceFee())

	sel, err := cs.SelectUtxos(6_000_000_000_000, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos: %v", err)
	}
	if len(sel.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sel.Sources))
	}
	if sel.Sources[0].Amount != 5_000_000_000_000 || sel.Sources[1].Amount != 3_000_000_000_000 {
		t.Error("selection should accumulate largest-first")
	}
	if sel.Total != 8_000_000_000_000 {
		t.Errorf("total = %d", sel.Total)
	}
}

func TestSelectUtxosServiceFeeAccounting(t *testing.T) {
	svc := NewServiceFee(testFeeSchedule(), "4wallet")
	cs := newTestSelector(fundedLedger(), svc)

	value := uint64(2_000_000_000_000)
	sel, err := cs.SelectUtxos(value, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos: %v", err)
	}
	if want := svc.Calculate(value); sel.ServiceFee != want {
		t.Errorf("service fee = %d, want %d", sel.ServiceFee, want)
	}
	// Sources cover value + both fees + change exactly.
	if sel.Total != value+sel.ServiceFee+sel.MinerFee+sel.Change {
		t.Errorf("accounting broken: total %d != value %d + service %d + miner %d + change %d",
			sel.Total, value, sel.ServiceFee, sel.MinerFee, sel.Change)
	}
}

func TestSelectUtxosOutputCountTracksServiceFee(t *testing.T) {
	// The miner fee prices only the outputs the transaction will carry:
	// the service-fee output is counted when a fee is due, not before.
	value := uint64(2_000_000_000_000)

	free := newTestSelector(fundedLedger(), noServiceFee())
	sel, err := free.SelectUtxos(value, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos: %v", err)
	}
	if want := minerFeeFor(1, 2); sel.MinerFee != want {
		t.Errorf("miner fee without service fee = %d, want %d (payment + change)", sel.MinerFee, want)
	}

	paid := newTestSelector(fundedLedger(), NewServiceFee(testFeeSchedule(), "4wallet"))
	sel, err = paid.SelectUtxos(value, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos: %v", err)
	}
	if want := minerFeeFor(1, 3); sel.MinerFee != want {
		t.Errorf("miner fee with service fee = %d, want %d (payment + service + change)", sel.MinerFee, want)
	}
}

func TestSelectUtxosInsufficientHard(t *testing.T) {
	cs := newTestSelector(fundedLedger(), noServiceFee())

	_, err := cs.SelectUtxos(20_000_000_000_000, 1, true)
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientFundsError", err)
	}
	if insufficient.Confirmations {
		t.Error("hard shortfall must not be reported as pending confirmations")
	}
	if insufficient.Requested != 20_000_000_000_000 {
		t.Errorf("requested = %d", insufficient.Requested)
	}
}

func TestSelectUtxosInsufficientPendingConfirmation(t *testing.T) {
	l := fundedLedger()
	l.Put(ledgerOutput(4, 20_000_000_000_000, false))
	cs := newTestSelector(l, noServiceFee())

	_, err := cs.SelectUtxos(15_000_000_000_000, 1, true)
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientFundsError", err)
	}
	if !insufficient.Confirmations {
		t.Error("shortfall covered by unconfirmed outputs should report the pending variant")
	}
}

func TestEstimateMaxAmount(t *testing.T) {
	cs := newTestSelector(fundedLedger(), noServiceFee())

	max := cs.EstimateMaxAmount(1, true)
	if want := 9_000_000_000_000 - feeNoChange(3); max != want {
		t.Errorf("max = %d, want %d", max, want)
	}

	// The computed maximum is actually sendable.
	sel, err := cs.SelectUtxos(max, 1, true)
	if err != nil {
		t.Fatalf("SelectUtxos(max): %v", err)
	}
	if sel.Change != 0 {
		t.Errorf("sending the max should leave no change, got %d", sel.Change)
	}
}

func TestEstimateMaxAmountServiceFeeOutput(t *testing.T) {
	svc := NewServiceFee(testFeeSchedule(), "4wallet")
	cs := newTestSelector(fundedLedger(), svc)

	rest := 9_000_000_000_000 - minerFeeFor(3, 2)
	want := rest - svc.Reverse(rest)
	if max := cs.EstimateMaxAmount(1, true); max != want {
		t.Errorf("max = %d, want %d", max, want)
	}
}

func TestEstimateMaxAmountMonotonicInMultiplier(t *testing.T) {
	cs := newTestSelector(fundedLedger(), noServiceFee())

	def := cs.EstimateMaxAmount(1, true)
	fastest := cs.EstimateMaxAmount(25, true)
	if fastest > def {
		t.Errorf("fastest max %d exceeds default max %d", fastest, def)
	}
}

func TestEstimateMaxAmountEmpty(t *testing.T) {
	cs := newTestSelector(NewLedger(), noServiceFee())
	if got := cs.EstimateMaxAmount(1, true); got != 0 {
		t.Errorf("empty wallet max = %d, want 0", got)
	}
}
