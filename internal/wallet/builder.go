package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
	"github.com/cielo-wallet/xmr-engine/pkg/tx"
)

// burnAddress is a well-known address with no known private key. A
// change slot folded to zero is directed at it as a zero-amount decoy
// output.
const burnAddress = "888tNkZrPN6JsEgekjMnABU4TBzc2Dt29EPAvkRxbANsAnjyPbb3iQ1YBRk1UXcdRsiKc9dhwMVgN5S9cQUiyoogDavup3H"

// RandomOutputFetcher fetches decoy ring members from the node.
type RandomOutputFetcher interface {
	RandomOutputs(ctx context.Context, amounts []uint64, count int, height uint64) ([]nodeclient.RandomOutputSet, error)
}

// Builder assembles the payload handed to the external signing core.
type Builder struct {
	keyring  Keyring
	selector *CoinSelector
	node     RandomOutputFetcher
	network  mcrypto.Network

	ringSize int
	dust     uint64
}

// NewBuilder creates a transaction builder.
func NewBuilder(keyring Keyring, selector *CoinSelector, node RandomOutputFetcher, network mcrypto.Network, ringSize int, dust uint64) *Builder {
	return &Builder{
		keyring:  keyring,
		selector: selector,
		node:     node,
		network:  network,
		ringSize: ringSize,
		dust:     dust,
	}
}

// Build validates the transfer request, selects inputs, fetches decoy
// rings, and assembles the signing payload. fee is the total fee the
// caller was quoted; a quote below what selection now computes is
// rejected so stale quotes cannot underpay the network.
func (b *Builder) Build(ctx context.Context, destination string, value, fee, multiplier uint64) (*tx.Payload, *Selection, error) {
	dest, err := mcrypto.ParseAddress(destination, b.network)
	if err != nil {
		return nil, nil, &InvalidAddressError{Address: destination, Err: err}
	}
	for _, own := range b.keyring.Addresses() {
		if dest.Equal(own.Address) {
			return nil, nil, &DestinationEqualsSourceError{Address: destination}
		}
	}
	if value <= b.dust {
		return nil, nil, &SmallAmountError{Amount: value, Min: b.dust + 1}
	}

	sel, err := b.selector.SelectUtxos(value, multiplier, true)
	if err != nil {
		return nil, nil, err
	}
	if fee < sel.MinerFee+sel.ServiceFee {
		return nil, nil, fmt.Errorf("%w: quoted %d, need %d", ErrInvalidFee, fee, sel.MinerFee+sel.ServiceFee)
	}

	// The destinations mirror the layout the fee was priced at: payment
	// always, the service-fee output only when one is due, the change
	// output only in the with-change layout. Folded-to-dust change keeps
	// its slot as a zero-amount decoy so the output count stays as priced.
	destinations := []tx.Destination{{Address: dest.String(), Amount: value}}
	if sel.ServiceFee > 0 {
		destinations = append(destinations, tx.Destination{
			Address: b.selector.serviceFee.Address(),
			Amount:  sel.ServiceFee,
		})
	}
	if sel.HasChange {
		if sel.Change > 0 {
			primary, err := b.keyring.Address(mcrypto.SubaddressIndex{})
			if err != nil {
				return nil, nil, err
			}
			destinations = append(destinations, tx.Destination{
				Address: primary.String(),
				Amount:  sel.Change,
			})
		} else {
			destinations = append(destinations, tx.Destination{Address: burnAddress})
		}
	}

	sources := make([]tx.Source, 0, len(sel.Sources))
	mixins := make([]tx.Mixin, 0, len(sel.Sources))
	for _, o := range sel.Sources {
		src := tx.Source{
			TxID:       o.TxID,
			TargetKey:  o.TargetKey,
			TxPubKey:   o.TxPubKey,
			Derivation: o.Derivation,
			Index:      o.Index,
			Amount:     o.Amount,
			Height:     o.Height,
			Address:    o.Address,
			GlobalIdx:  o.GlobalIdx,
		}
		if o.Rct != nil {
			src.Rct = *o.Rct
		}
		sources = append(sources, src)

		ring, err := b.fetchRing(ctx, o)
		if err != nil {
			return nil, nil, err
		}
		mixins = append(mixins, ring)
	}

	addresses := make([]string, 0, len(b.keyring.Addresses()))
	for _, a := range b.keyring.Addresses() {
		addresses = append(addresses, a.Address.String())
	}

	return &tx.Payload{
		Addresses:    addresses,
		Sources:      sources,
		Destinations: destinations,
		Mixins:       mixins,
		MinerFee:     sel.MinerFee,
		ServiceFee:   sel.ServiceFee,
	}, sel, nil
}

// fetchRing pulls ringSize-1 decoys for one source, keyed by the
// source's height so decoys are plausible contemporaries of the real
// output.
func (b *Builder) fetchRing(ctx context.Context, o *Output) (tx.Mixin, error) {
	// Confidential outputs are requested under amount 0.
	var amount uint64
	if o.Rct == nil || o.Rct.Type == mcrypto.RctNull {
		amount = o.Amount
	}
	sets, err := b.node.RandomOutputs(ctx, []uint64{amount}, b.ringSize-1, o.Height)
	if err != nil {
		return tx.Mixin{}, fmt.Errorf("fetch decoys for %s:%d: %w", o.TxID, o.Index, err)
	}
	if len(sets) == 0 || len(sets[0].Outputs) < b.ringSize-1 {
		return tx.Mixin{}, &MalformedRecordError{
			TxID:   o.TxID,
			Reason: fmt.Sprintf("node returned too few decoys (%d needed)", b.ringSize-1),
		}
	}
	ring := tx.Mixin{Amount: amount, Outputs: make([]tx.RandomOutput, 0, b.ringSize-1)}
	for _, ro := range sets[0].Outputs[:b.ringSize-1] {
		ring.Outputs = append(ring.Outputs, tx.RandomOutput{
			PublicKey:  ro.PublicKey,
			Commitment: ro.Commitment,
			GlobalIdx:  ro.GlobalIndex,
		})
	}
	return ring, nil
}

// normalizeTxID lowercases a transaction id for identity comparisons.
func normalizeTxID(id string) string {
	return strings.ToLower(id)
}
