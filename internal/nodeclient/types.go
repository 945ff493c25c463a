package nodeclient

import (
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
)

// KeyOutputRef points at a prior transaction output by its transaction
// id and one-time target key. The node attaches these to inputs so a
// wallet can recognize spends of its own outputs.
type KeyOutputRef struct {
	TxID      string            `json:"txId"`
	TargetKey mcrypto.PublicKey `json:"targetKey"`
}

// TxInput is one ring input of a transaction as the node reports it.
type TxInput struct {
	KeyImage   mcrypto.KeyImage `json:"keyImage"`
	Amount     uint64           `json:"amount,string"`
	KeyOutputs []KeyOutputRef   `json:"keyOutputs"`
}

// TxOutput is one output of a transaction as the node reports it.
// Amount is only meaningful for plaintext (coinbase, pre-rct) outputs;
// confidential amounts travel in Rct.
type TxOutput struct {
	Index            uint64             `json:"index"`
	GlobalIndex      uint64             `json:"globalIndex"`
	TargetKey        mcrypto.PublicKey  `json:"targetKey"`
	Amount           uint64             `json:"amount,string"`
	AdditionalPubKey *mcrypto.PublicKey `json:"additionalPubKey,omitempty"`
	Rct              *mcrypto.RctInfo   `json:"rct,omitempty"`
}

// TxRecord is a full transaction as returned by the node gateway.
type TxRecord struct {
	TxID          string            `json:"txId"`
	Timestamp     int64             `json:"timestamp"`
	Height        uint64            `json:"blockHeight"`
	Confirmations int               `json:"confirmations"`
	Coinbase      bool              `json:"coinbase"`
	Fee           uint64            `json:"fee,string"`
	ServiceFee    uint64            `json:"csfee,string"`
	TxPubKey      mcrypto.PublicKey `json:"txPubKey"`
	Ins           []TxInput         `json:"ins"`
	Outs          []TxOutput        `json:"outs"`
}

// FeeConfig is the network fee schedule reported by the node.
type FeeConfig struct {
	BaseFee          uint64 `json:"fee,string"`
	QuantizationMask uint64 `json:"quantizationMask,string"`
}

// RandomOutput is one decoy candidate for ring construction.
type RandomOutput struct {
	PublicKey   mcrypto.PublicKey `json:"publicKey"`
	Commitment  string            `json:"commitment"`
	GlobalIndex uint64            `json:"globalIndex,string"`
}

// RandomOutputSet groups decoy candidates per input amount. Amount is 0
// for confidential outputs.
type RandomOutputSet struct {
	Amount  uint64         `json:"amount,string"`
	Outputs []RandomOutput `json:"outputs"`
}

// ServiceFeeConfig describes the service fee schedule for an asset as
// served by the fee oracle. Rate is expressed in parts per million so the
// schedule survives JSON without floating point.
type ServiceFeeConfig struct {
	Disabled  bool     `json:"disabled"`
	RatePPM   uint64   `json:"ratePpm"`
	MinFee    uint64   `json:"minFee,string"`
	MaxFee    uint64   `json:"maxFee,string"`
	SkipMin   bool     `json:"skipMinFee"`
	Addresses []string `json:"addresses"`
	Whitelist []string `json:"whitelist"`
}
