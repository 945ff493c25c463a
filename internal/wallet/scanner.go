package wallet

import (
	"fmt"
	"regexp"
	"time"

	klog "github.com/cielo-wallet/xmr-engine/internal/log"
	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
)

var txIDPattern = regexp.MustCompile("^[0-9a-fA-F]{64}$")

// Scanner decides which outputs and inputs of a transaction belong to
// the wallet, decodes confidential amounts, marks spent outputs, and
// classifies the transaction. Ownership detection needs only the view
// key; spend detection additionally needs the spend key or a cached key
// image.
type Scanner struct {
	engine    mcrypto.Engine
	keyring   Keyring
	ledger    *Ledger
	keyImages *keyImageSource

	minConf         int
	minConfCoinbase int
}

// NewScanner creates a scanner mutating the given ledger and cache.
func NewScanner(engine mcrypto.Engine, keyring Keyring, ledger *Ledger, cache *KeyImageCache, minConf, minConfCoinbase int) *Scanner {
	return &Scanner{
		engine:  engine,
		keyring: keyring,
		ledger:  ledger,
		keyImages: &keyImageSource{
			engine:  engine,
			keyring: keyring,
			cache:   cache,
		},
		minConf:         minConf,
		minConfCoinbase: minConfCoinbase,
	}
}

// ownedOutput is an output of the current transaction proven to be ours,
// together with the derivation that proved it.
type ownedOutput struct {
	out        nodeclient.TxOutput
	amount     uint64
	derivation mcrypto.Derivation
	address    mcrypto.SubaddressIndex
}

// Scan processes one transaction record: records newly recognized
// outputs in the ledger, marks outputs spent by the transaction's
// inputs, and returns the classified record. The returned Transaction
// has Ours set iff at least one output or input matched.
//
// Scanning mutates the ledger only after the whole record is validated
// and matched, so a failed scan leaves no partial state behind.
func (s *Scanner) Scan(rec *nodeclient.TxRecord) (*Transaction, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	confirmed := rec.Confirmations >= s.minConf
	if rec.Coinbase {
		confirmed = rec.Confirmations >= s.minConfCoinbase
	}

	owned, err := s.matchOutputs(rec)
	if err != nil {
		return nil, err
	}
	spent, err := s.matchInputs(rec)
	if err != nil {
		return nil, err
	}

	// Apply effects atomically after matching succeeded.
	var received uint64
	for _, m := range owned {
		s.ledger.Put(&Output{
			TxID:       rec.TxID,
			Index:      uint32(m.out.Index),
			GlobalIdx:  m.out.GlobalIndex,
			TargetKey:  m.out.TargetKey,
			TxPubKey:   rec.TxPubKey,
			Amount:     m.amount,
			Derivation: m.derivation,
			Address:    m.address,
			Rct:        m.out.Rct,
			Height:     rec.Height,
			Coinbase:   rec.Coinbase,
			Confirmed:  confirmed,
		})
		received += m.amount
	}
	var sent uint64
	for _, o := range spent {
		s.ledger.MarkSpent(o.TxID, o.TargetKey)
		sent += o.Amount
	}

	t := &Transaction{
		ID:            rec.TxID,
		Timestamp:     time.Unix(rec.Timestamp, 0).UTC(),
		Confirmations: rec.Confirmations,
		Coinbase:      rec.Coinbase,
		Confirmed:     confirmed,
		MinerFee:      rec.Fee,
		ServiceFee:    rec.ServiceFee,
		Ours:          len(owned) > 0 || len(spent) > 0,
	}
	fee := rec.Fee + rec.ServiceFee
	if sent > received {
		// The user-visible amount excludes the fee the wallet paid.
		t.Direction = Outgoing
		outflow := sent - received
		if outflow > fee {
			t.Amount = outflow - fee
		}
	} else {
		t.Direction = Incoming
		t.Amount = received - sent
	}

	klog.Scanner.Debug().
		Str("txid", rec.TxID).
		Bool("ours", t.Ours).
		Str("direction", string(t.Direction)).
		Uint64("amount", t.Amount).
		Msg("scanned transaction")
	return t, nil
}

// matchOutputs finds the transaction outputs owned by the wallet. For
// each output the candidate derivations are the main derivation from the
// tx public key plus, when present, one from the output's additional
// public key. The first (address, derivation) pair whose derived
// one-time key equals the target key wins; remaining candidates are not
// tried, as an output cannot belong to two addresses at once.
func (s *Scanner) matchOutputs(rec *nodeclient.TxRecord) ([]ownedOutput, error) {
	viewSecret := s.keyring.ViewSecret()
	mainDerivation, err := s.engine.GenerateKeyDerivation(rec.TxPubKey, viewSecret)
	if err != nil {
		return nil, &MalformedRecordError{TxID: rec.TxID, Reason: fmt.Sprintf("tx public key: %v", err)}
	}

	addresses := s.keyring.Addresses()
	var owned []ownedOutput
	for _, out := range rec.Outs {
		candidates := []mcrypto.Derivation{mainDerivation}
		if out.AdditionalPubKey != nil {
			d, err := s.engine.GenerateKeyDerivation(*out.AdditionalPubKey, viewSecret)
			if err != nil {
				return nil, &MalformedRecordError{
					TxID:   rec.TxID,
					Reason: fmt.Sprintf("output %d additional public key: %v", out.Index, err),
				}
			}
			candidates = append(candidates, d)
		}

		match, ok, err := s.matchOutput(rec.TxID, out, addresses, candidates)
		if err != nil {
			return nil, err
		}
		if ok {
			owned = append(owned, match)
		}
	}
	return owned, nil
}

func (s *Scanner) matchOutput(txID string, out nodeclient.TxOutput, addresses []WalletAddress, candidates []mcrypto.Derivation) (ownedOutput, bool, error) {
	for _, d := range candidates {
		for _, addr := range addresses {
			derived, err := s.engine.DerivePublicKey(d, uint32(out.Index), addr.Address.SpendKey)
			if err != nil {
				return ownedOutput{}, false, &MalformedRecordError{
					TxID:   txID,
					Reason: fmt.Sprintf("output %d: derive public key: %v", out.Index, err),
				}
			}
			if derived != out.TargetKey {
				continue
			}

			amount := out.Amount
			if out.Rct != nil && out.Rct.Type != mcrypto.RctNull {
				amount, err = s.engine.DecodeRctAmount(*out.Rct, uint32(out.Index), d)
				if err != nil {
					return ownedOutput{}, false, &MalformedRecordError{
						TxID:   txID,
						Reason: fmt.Sprintf("output %d: decode amount: %v", out.Index, err),
					}
				}
			}
			return ownedOutput{
				out:        out,
				amount:     amount,
				derivation: d,
				address:    addr.Index,
			}, true, nil
		}
	}
	return ownedOutput{}, false, nil
}

// matchInputs finds which of the transaction's inputs spend the wallet's
// own outputs. An input matches when one of its referenced key outputs
// is in the ledger and that output's key image equals the input's.
func (s *Scanner) matchInputs(rec *nodeclient.TxRecord) ([]*Output, error) {
	var spent []*Output
	for _, in := range rec.Ins {
		for _, ref := range in.KeyOutputs {
			o, ok := s.ledger.Get(ref.TxID, ref.TargetKey)
			if !ok {
				continue
			}
			ki, err := s.keyImages.keyImage(o)
			if err != nil {
				return nil, err
			}
			if ki == in.KeyImage {
				spent = append(spent, o)
				break
			}
		}
	}
	return spent, nil
}

func validateRecord(rec *nodeclient.TxRecord) error {
	if !txIDPattern.MatchString(rec.TxID) {
		return &MalformedRecordError{TxID: rec.TxID, Reason: "transaction id is not 64 hex characters"}
	}
	if rec.TxPubKey.IsZero() && len(rec.Outs) > 0 {
		return &MalformedRecordError{TxID: rec.TxID, Reason: "missing tx public key"}
	}
	for _, out := range rec.Outs {
		if out.TargetKey.IsZero() {
			return &MalformedRecordError{
				TxID:   rec.TxID,
				Reason: fmt.Sprintf("output %d has no target key", out.Index),
			}
		}
	}
	return nil
}
