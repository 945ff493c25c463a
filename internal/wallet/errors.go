package wallet

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on.
var (
	// ErrNotYourTransaction is returned when an added transaction carries
	// no output owned by this wallet.
	ErrNotYourTransaction = errors.New("transaction does not belong to this wallet")

	// ErrTransactionAlreadyAdded is returned when a transaction id is
	// already present in the ledger.
	ErrTransactionAlreadyAdded = errors.New("transaction already added")

	// ErrUnknownTransaction is returned when the node has no record of
	// a transaction id.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrInvalidFee is returned when a caller passes a fee that does not
	// match what the engine computes for the same request.
	ErrInvalidFee = errors.New("fee does not match the expected fee")

	// ErrKeyImageUnavailable is returned when an output's key image is
	// neither cached nor derivable with the available key material.
	ErrKeyImageUnavailable = errors.New("key image unavailable")
)

// MalformedRecordError is returned when a node transaction record fails
// structural validation before scanning.
type MalformedRecordError struct {
	TxID   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed transaction record %s: %s", e.TxID, e.Reason)
}

// InvalidAddressError is returned when a destination address fails to
// parse for the wallet's network.
type InvalidAddressError struct {
	Address string
	Err     error
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Address, e.Err)
}

func (e *InvalidAddressError) Unwrap() error { return e.Err }

// DestinationEqualsSourceError is returned when a transfer targets one of
// the wallet's own addresses.
type DestinationEqualsSourceError struct {
	Address string
}

func (e *DestinationEqualsSourceError) Error() string {
	return fmt.Sprintf("destination %s is the wallet's own address", e.Address)
}

// SmallAmountError is returned when the requested amount is below the
// smallest transferable value.
type SmallAmountError struct {
	Amount uint64
	Min    uint64
}

func (e *SmallAmountError) Error() string {
	return fmt.Sprintf("amount %d is below the minimum %d", e.Amount, e.Min)
}

// InsufficientFundsError is returned when the spendable balance cannot
// cover amount plus fees. Confirmations reports whether waiting for
// pending outputs to confirm would make the transfer possible.
type InsufficientFundsError struct {
	Requested uint64
	Available uint64

	// Confirmations is true when the confirmed balance is short but the
	// total balance is not: retrying later can succeed.
	Confirmations bool
}

func (e *InsufficientFundsError) Error() string {
	if e.Confirmations {
		return fmt.Sprintf("insufficient confirmed funds: requested %d, available %d (pending confirmations)",
			e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient funds: requested %d, available %d", e.Requested, e.Available)
}

// InvalidTxIDError is returned when a transaction id is not 64 hex chars.
type InvalidTxIDError struct {
	TxID string
}

func (e *InvalidTxIDError) Error() string {
	return fmt.Sprintf("invalid transaction id %q", e.TxID)
}
