package config

// DefaultMainnet returns the default engine configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			URL:            "https://monero.node.cielo.cash/api/v1",
			TimeoutSeconds: 30,
		},
		FeeOracle: FeeOracleConfig{
			URL:     "https://api.cielo.cash/api/v3",
			AssetID: "monero",
		},
		Wallet: WalletConfig{
			RingSize:                 16,
			MaxTxInputs:              292,
			MinConfirmations:         10,
			MinConfirmationsCoinbase: 60,
			DustThreshold:            1,
			TxExtraSize:              142,
			FeeMultiplierDefault:     1,
			FeeMultiplierFastest:     25,
			TxPerPage:                10,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default engine configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Node.URL = "https://monero.node.testnet.cielo.cash/api/v1"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
