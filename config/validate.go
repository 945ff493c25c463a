package config

import "fmt"

// Validate checks engine config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.Node.URL == "" {
		return fmt.Errorf("node.url must be set")
	}
	if cfg.Node.TimeoutSeconds < 0 {
		return fmt.Errorf("node.timeout must be non-negative")
	}
	if cfg.Wallet.RingSize < 2 {
		return fmt.Errorf("wallet.ringsize must be at least 2")
	}
	if cfg.Wallet.MaxTxInputs < 1 {
		return fmt.Errorf("wallet.maxtxinputs must be positive")
	}
	if cfg.Wallet.MinConfirmations < 1 || cfg.Wallet.MinConfirmationsCoinbase < 1 {
		return fmt.Errorf("confirmation depths must be positive")
	}
	if cfg.Wallet.MinConfirmationsCoinbase < cfg.Wallet.MinConfirmations {
		return fmt.Errorf("coinbase confirmation depth cannot be below the normal depth")
	}
	if cfg.Wallet.FeeMultiplierDefault < 1 || cfg.Wallet.FeeMultiplierFastest < cfg.Wallet.FeeMultiplierDefault {
		return fmt.Errorf("fee multipliers must satisfy 1 <= default <= fastest")
	}
	if cfg.Wallet.TxPerPage < 1 {
		return fmt.Errorf("wallet.txperpage must be positive")
	}
	return nil
}
