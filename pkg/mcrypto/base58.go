package mcrypto

import (
	"fmt"
	"math/big"
	"strings"
)

// Monero's base58 variant encodes 8-byte blocks into 11 characters each, so
// encoded strings have a fixed length for a fixed payload size (unlike
// Bitcoin-style base58, which strips leading zeros).
const b58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const (
	fullBlockSize        = 8
	fullEncodedBlockSize = 11
)

// encodedBlockSizes[n] is the encoded length of an n-byte partial block.
var encodedBlockSizes = [fullBlockSize + 1]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

var b58Index [256]int8

func init() {
	for i := range b58Index {
		b58Index[i] = -1
	}
	for i := 0; i < len(b58Alphabet); i++ {
		b58Index[b58Alphabet[i]] = int8(i)
	}
}

func encodeBlock(block []byte) string {
	num := new(big.Int).SetBytes(block)
	size := encodedBlockSizes[len(block)]
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = b58Alphabet[0]
	}
	base := big.NewInt(58)
	rem := new(big.Int)
	for i := size - 1; num.Sign() > 0; i-- {
		num.DivMod(num, base, rem)
		buf[i] = b58Alphabet[rem.Int64()]
	}
	return string(buf)
}

func decodeBlock(block string) ([]byte, error) {
	var rawSize = -1
	for size, encSize := range encodedBlockSizes {
		if encSize == len(block) {
			rawSize = size
			break
		}
	}
	if rawSize < 0 {
		return nil, fmt.Errorf("invalid base58 block length %d", len(block))
	}
	num := new(big.Int)
	base := big.NewInt(58)
	for i := 0; i < len(block); i++ {
		digit := b58Index[block[i]]
		if digit < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", block[i])
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(digit)))
	}
	raw := num.Bytes()
	if len(raw) > rawSize {
		return nil, fmt.Errorf("base58 block overflow")
	}
	out := make([]byte, rawSize)
	copy(out[rawSize-len(raw):], raw)
	return out, nil
}

// Base58Encode encodes data using Monero's block-based base58.
func Base58Encode(data []byte) string {
	var sb strings.Builder
	for len(data) >= fullBlockSize {
		sb.WriteString(encodeBlock(data[:fullBlockSize]))
		data = data[fullBlockSize:]
	}
	if len(data) > 0 {
		sb.WriteString(encodeBlock(data))
	}
	return sb.String()
}

// Base58Decode decodes a Monero block-based base58 string.
func Base58Decode(s string) ([]byte, error) {
	var out []byte
	for len(s) >= fullEncodedBlockSize {
		block, err := decodeBlock(s[:fullEncodedBlockSize])
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
		s = s[fullEncodedBlockSize:]
	}
	if len(s) > 0 {
		block, err := decodeBlock(s)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}
