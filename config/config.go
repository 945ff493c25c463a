// Package config handles wallet engine configuration.
//
// Configuration is split into two categories:
//   - Protocol constants: ring size, confirmation depths, dust threshold.
//     These must match the network's consensus expectations.
//   - Engine settings: endpoints, data directory, logging. Set per deployment.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Monetary units. Amounts travel as atomic units everywhere; only the
// CLI converts to and from decimal notation.
const (
	Decimals = 12
	Coin     = 1_000_000_000_000 // atomic units per coin
)

// Config holds the wallet engine configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Node is the blockchain gateway the engine talks to.
	Node NodeConfig

	// FeeOracle serves the service-fee schedule.
	FeeOracle FeeOracleConfig

	// Wallet holds scanning and spending parameters.
	Wallet WalletConfig

	// Logging
	Log LogConfig
}

// NodeConfig points at the node REST gateway.
type NodeConfig struct {
	URL            string `conf:"node.url"`
	TimeoutSeconds int    `conf:"node.timeout"`
}

// FeeOracleConfig points at the service-fee oracle.
type FeeOracleConfig struct {
	URL     string `conf:"feeoracle.url"`
	AssetID string `conf:"feeoracle.asset"`
}

// WalletConfig holds scanning and transaction-construction parameters.
type WalletConfig struct {
	// RingSize is the total ring members per input (decoys + 1).
	RingSize int `conf:"wallet.ringsize"`

	// MaxTxInputs caps the inputs considered for one transaction; rings
	// and tx_extra grow with each input, and relays reject huge txs.
	MaxTxInputs int `conf:"wallet.maxtxinputs"`

	// MinConfirmations before a normal output is spendable.
	MinConfirmations int `conf:"wallet.minconf"`

	// MinConfirmationsCoinbase before a coinbase output is spendable.
	MinConfirmationsCoinbase int `conf:"wallet.minconfcoinbase"`

	// DustThreshold is the smallest change worth creating as an output.
	DustThreshold uint64 `conf:"wallet.dust"`

	// TxExtraSize is the tx_extra byte budget assumed by fee estimation:
	// tx pub key + payment id + 3 additional pub keys.
	TxExtraSize int `conf:"wallet.txextrasize"`

	// Fee multipliers per fee-rate tier.
	FeeMultiplierDefault uint64 `conf:"wallet.feemultiplier.default"`
	FeeMultiplierFastest uint64 `conf:"wallet.feemultiplier.fastest"`

	// TxPerPage is the history page size.
	TxPerPage int `conf:"wallet.txperpage"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	JSON  bool   `conf:"log.json"`
	File  string `conf:"log.file"`
}

// DefaultDataDir returns the platform-specific default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xmr-engine"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "xmr-engine")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "xmr-engine")
	default:
		return filepath.Join(home, ".xmr-engine")
	}
}
