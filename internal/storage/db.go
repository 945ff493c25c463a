// Package storage provides the key-value persistence contract for wallet
// state. The engine is agnostic to the backing store; it only needs get,
// set and iterate.
package storage

import "errors"

// ErrKeyNotFound is returned by Get when the key does not exist. Callers
// treat it as "no persisted value yet", not as a failure.
var ErrKeyNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
