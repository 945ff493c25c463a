// Package tx defines the transaction payload handed to the external signing
// core and the miner-fee estimation it is priced with.
package tx

import "github.com/cielo-wallet/xmr-engine/pkg/mcrypto"

// Source is a wallet-owned output selected as a transaction input. The
// derivation fields let the signing core re-derive the one-time secret key.
type Source struct {
	TxID       string                  `json:"txId"`
	TargetKey  mcrypto.PublicKey       `json:"targetKey"`
	TxPubKey   mcrypto.PublicKey       `json:"txPubKey"`
	Derivation mcrypto.Derivation      `json:"derivation"`
	Index      uint32                  `json:"index"`
	Amount     uint64                  `json:"amount,string"`
	Height     uint64                  `json:"height"`
	Address    mcrypto.SubaddressIndex `json:"addressIndex"`
	Rct        mcrypto.RctInfo         `json:"rct"`
	GlobalIdx  uint64                  `json:"globalIndex"`
}

// Destination is a payment output of the new transaction.
type Destination struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount,string"`
}

// RandomOutput is a decoy ring member fetched from the node.
type RandomOutput struct {
	PublicKey  mcrypto.PublicKey `json:"publicKey"`
	Commitment string            `json:"commitment"`
	GlobalIdx  uint64            `json:"globalIndex"`
}

// Mixin is the decoy ring for one source.
type Mixin struct {
	Amount  uint64         `json:"amount,string"`
	Outputs []RandomOutput `json:"outputs"`
}

// Payload is everything the external signing core needs to produce raw
// transaction bytes. The wallet engine never serializes or signs itself.
type Payload struct {
	Addresses    []string      `json:"addresses"`
	Sources      []Source      `json:"sources"`
	Destinations []Destination `json:"destinations"`
	Mixins       []Mixin       `json:"mixins"`
	MinerFee     uint64        `json:"minerFee,string"`
	ServiceFee   uint64        `json:"serviceFee,string"`
}
