package wallet

import (
	"time"
)

// Direction of a classified transaction relative to the wallet.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Transaction is a scanned, classified transaction record. Amount is
// always non-negative; Direction carries the sign.
type Transaction struct {
	ID            string
	Timestamp     time.Time
	Confirmations int
	Coinbase      bool
	Confirmed     bool
	Direction     Direction
	Amount        uint64
	MinerFee      uint64
	ServiceFee    uint64
	Ours          bool
}

// Fee returns the total fee paid: miner fee plus service fee.
func (t *Transaction) Fee() uint64 {
	return t.MinerFee + t.ServiceFee
}
