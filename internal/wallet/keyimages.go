package wallet

import (
	"encoding/binary"
	"errors"
	"fmt"

	klog "github.com/cielo-wallet/xmr-engine/internal/log"
	"github.com/cielo-wallet/xmr-engine/internal/storage"
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
)

// KeyImageCache memoizes (derivation, output index, address) to key
// image. Entries persist across sessions, so a wallet that computed a
// key image once with the spend key available can still detect that
// spend later in view-only mode.
type KeyImageCache struct {
	db  storage.DB
	mem map[string]mcrypto.KeyImage
}

// NewKeyImageCache loads the persisted cache from db. Pass a memory DB
// for an ephemeral cache.
func NewKeyImageCache(db storage.DB) (*KeyImageCache, error) {
	c := &KeyImageCache{
		db:  db,
		mem: make(map[string]mcrypto.KeyImage),
	}
	err := db.ForEach(nil, func(key, value []byte) error {
		if len(value) != 32 {
			return fmt.Errorf("corrupt key image entry %x", key)
		}
		var ki mcrypto.KeyImage
		copy(ki[:], value)
		c.mem[string(key)] = ki
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load key image cache: %w", err)
	}
	return c, nil
}

func cacheKey(d mcrypto.Derivation, index uint32, addr mcrypto.SubaddressIndex) string {
	buf := make([]byte, 0, 32+12)
	buf = append(buf, d[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, index)
	buf = binary.LittleEndian.AppendUint32(buf, addr.Major)
	buf = binary.LittleEndian.AppendUint32(buf, addr.Minor)
	return string(buf)
}

// Get returns the cached key image for the tuple, if present.
func (c *KeyImageCache) Get(d mcrypto.Derivation, index uint32, addr mcrypto.SubaddressIndex) (mcrypto.KeyImage, bool) {
	ki, ok := c.mem[cacheKey(d, index, addr)]
	return ki, ok
}

// Put stores a key image. Persistence failures are logged, not fatal:
// the in-memory entry still serves this session.
func (c *KeyImageCache) Put(d mcrypto.Derivation, index uint32, addr mcrypto.SubaddressIndex, ki mcrypto.KeyImage) {
	key := cacheKey(d, index, addr)
	if _, ok := c.mem[key]; ok {
		return
	}
	c.mem[key] = ki
	if err := c.db.Put([]byte(key), ki[:]); err != nil {
		klog.Wallet.Warn().Err(err).Msg("persist key image")
	}
}

// Len reports the number of cached entries.
func (c *KeyImageCache) Len() int {
	return len(c.mem)
}

// keyImageSource resolves key images from the cache first and falls back
// to deriving with the secret spend key when one is available.
type keyImageSource struct {
	engine  mcrypto.Engine
	keyring Keyring
	cache   *KeyImageCache
}

// keyImage returns the key image of the output, deriving and caching it
// when possible. Returns ErrKeyImageUnavailable when the wallet has no
// spend key and no cached value.
func (s *keyImageSource) keyImage(o *Output) (mcrypto.KeyImage, error) {
	if ki, ok := s.cache.Get(o.Derivation, o.Index, o.Address); ok {
		return ki, nil
	}

	spendSecret, ok := s.keyring.SpendSecret()
	if !ok {
		return mcrypto.KeyImage{}, fmt.Errorf("output %s:%d: %w", o.TxID, o.Index, ErrKeyImageUnavailable)
	}

	// Subaddress outputs are bound to b + m, not the primary spend key.
	effSpend, err := mcrypto.SubaddressSpendSecret(s.keyring.ViewSecret(), spendSecret, o.Address)
	if err != nil {
		return mcrypto.KeyImage{}, fmt.Errorf("subaddress spend secret: %w", err)
	}
	oneTimeSecret, err := s.engine.DeriveSecretKey(o.Derivation, o.Index, effSpend)
	if err != nil {
		return mcrypto.KeyImage{}, fmt.Errorf("derive one-time secret: %w", err)
	}
	ki, err := s.engine.GenerateKeyImage(o.TargetKey, oneTimeSecret)
	if err != nil {
		if errors.Is(err, mcrypto.ErrSpendPrimitivesUnavailable) {
			return mcrypto.KeyImage{}, fmt.Errorf("output %s:%d: %w", o.TxID, o.Index, ErrKeyImageUnavailable)
		}
		return mcrypto.KeyImage{}, fmt.Errorf("generate key image: %w", err)
	}
	s.cache.Put(o.Derivation, o.Index, o.Address, ki)
	return ki, nil
}
