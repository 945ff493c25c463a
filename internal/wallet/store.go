package wallet

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cielo-wallet/xmr-engine/internal/storage"
)

// Storage key layout. Key images live under their own prefix so the
// cache can iterate without touching wallet metadata.
var (
	keyTxIDs     = []byte("m/txids")
	keyBalance   = []byte("m/balance")
	keyCreatedAt = []byte("m/created")

	keyImagePrefix = []byte("ki/")
)

// Store persists wallet state between sessions: the known transaction
// ids, the last computed balance, the creation time, and the key image
// cache. The engine recomputes everything else from fresh node data.
type Store struct {
	db storage.DB
}

// NewStore wraps a database as wallet state storage.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// KeyImageDB returns the namespaced database the key image cache lives in.
func (s *Store) KeyImageDB() storage.DB {
	return storage.NewPrefixDB(s.db, keyImagePrefix)
}

// TxIDs returns the stored transaction id list, oldest first. A fresh
// database yields an empty list.
func (s *Store) TxIDs() ([]string, error) {
	data, err := s.db.Get(keyTxIDs)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tx ids: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode tx ids: %w", err)
	}
	return ids, nil
}

// SaveTxIDs replaces the stored transaction id list.
func (s *Store) SaveTxIDs(ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode tx ids: %w", err)
	}
	return s.db.Put(keyTxIDs, data)
}

// Balance returns the last persisted balance, or 0 for a fresh database.
func (s *Store) Balance() (uint64, error) {
	data, err := s.db.Get(keyBalance)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt balance entry")
	}
	return binary.BigEndian.Uint64(data), nil
}

// SaveBalance persists the computed balance.
func (s *Store) SaveBalance(balance uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, balance)
	return s.db.Put(keyBalance, buf)
}

// CreatedAt returns the wallet creation time, setting it on first call.
func (s *Store) CreatedAt() (time.Time, error) {
	data, err := s.db.Get(keyCreatedAt)
	if errors.Is(err, storage.ErrKeyNotFound) {
		now := time.Now().UTC().Truncate(time.Second)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(now.Unix()))
		if err := s.db.Put(keyCreatedAt, buf); err != nil {
			return time.Time{}, fmt.Errorf("write creation time: %w", err)
		}
		return now, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read creation time: %w", err)
	}
	if len(data) != 8 {
		return time.Time{}, fmt.Errorf("corrupt creation time entry")
	}
	return time.Unix(int64(binary.BigEndian.Uint64(data)), 0).UTC(), nil
}
