package mcrypto

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Network selects the address prefix set.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Address network tags (the varint prefix of the base58 payload).
const (
	mainnetPrimaryTag    = 18
	mainnetSubaddressTag = 42
	testnetPrimaryTag    = 53
	testnetSubaddressTag = 63
)

const addrChecksumSize = 4

// Address is a parsed Monero address: a network tag plus the public
// spend/view key pair the payment targets.
type Address struct {
	Network    Network
	Subaddress bool
	SpendKey   PublicKey
	ViewKey    PublicKey
}

func addressTag(network Network, subaddress bool) byte {
	switch {
	case network == Testnet && subaddress:
		return testnetSubaddressTag
	case network == Testnet:
		return testnetPrimaryTag
	case subaddress:
		return mainnetSubaddressTag
	default:
		return mainnetPrimaryTag
	}
}

// String returns the base58 form: tag || spendKey || viewKey || checksum.
func (a Address) String() string {
	payload := make([]byte, 0, 1+2*KeySize+addrChecksumSize)
	payload = append(payload, addressTag(a.Network, a.Subaddress))
	payload = append(payload, a.SpendKey[:]...)
	payload = append(payload, a.ViewKey[:]...)
	sum := addrChecksum(payload)
	payload = append(payload, sum[:]...)
	return Base58Encode(payload)
}

// Equal reports whether two addresses target the same key pair on the same
// network.
func (a Address) Equal(b Address) bool {
	return a.Network == b.Network &&
		a.Subaddress == b.Subaddress &&
		a.SpendKey == b.SpendKey &&
		a.ViewKey == b.ViewKey
}

// ParseAddress decodes and validates a base58 Monero address on the given
// network.
func ParseAddress(s string, network Network) (Address, error) {
	raw, err := Base58Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", s, err)
	}
	if len(raw) != 1+2*KeySize+addrChecksumSize {
		return Address{}, fmt.Errorf("address %q: bad length %d", s, len(raw))
	}
	body := raw[:len(raw)-addrChecksumSize]
	sum := addrChecksum(body)
	if !bytes.Equal(sum[:], raw[len(raw)-addrChecksumSize:]) {
		return Address{}, fmt.Errorf("address %q: checksum mismatch", s)
	}

	addr := Address{Network: network}
	switch body[0] {
	case addressTag(network, false):
	case addressTag(network, true):
		addr.Subaddress = true
	default:
		return Address{}, fmt.Errorf("address %q: tag %d not valid on %s", s, body[0], network)
	}
	copy(addr.SpendKey[:], body[1:1+KeySize])
	copy(addr.ViewKey[:], body[1+KeySize:])
	return addr, nil
}

func addrChecksum(payload []byte) [addrChecksumSize]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(payload)
	var sum [addrChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
