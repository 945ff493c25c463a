package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile reads a key=value configuration file into cfg, overriding
// whatever defaults it already carries. Lines starting with '#' and
// blank lines are ignored.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%s:%d: expected key=value, got %q", path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := applyOption(cfg, key, value); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func applyOption(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value
	case "node.url":
		cfg.Node.URL = value
	case "node.timeout":
		return setInt(&cfg.Node.TimeoutSeconds, key, value)
	case "feeoracle.url":
		cfg.FeeOracle.URL = value
	case "feeoracle.asset":
		cfg.FeeOracle.AssetID = value
	case "wallet.ringsize":
		return setInt(&cfg.Wallet.RingSize, key, value)
	case "wallet.maxtxinputs":
		return setInt(&cfg.Wallet.MaxTxInputs, key, value)
	case "wallet.minconf":
		return setInt(&cfg.Wallet.MinConfirmations, key, value)
	case "wallet.minconfcoinbase":
		return setInt(&cfg.Wallet.MinConfirmationsCoinbase, key, value)
	case "wallet.dust":
		return setUint(&cfg.Wallet.DustThreshold, key, value)
	case "wallet.txextrasize":
		return setInt(&cfg.Wallet.TxExtraSize, key, value)
	case "wallet.feemultiplier.default":
		return setUint(&cfg.Wallet.FeeMultiplierDefault, key, value)
	case "wallet.feemultiplier.fastest":
		return setUint(&cfg.Wallet.FeeMultiplierFastest, key, value)
	case "wallet.txperpage":
		return setInt(&cfg.Wallet.TxPerPage, key, value)
	case "log.level":
		cfg.Log.Level = value
	case "log.json":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.Log.JSON = b
	case "log.file":
		cfg.Log.File = value
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setUint(dst *uint64, key, value string) error {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
