// xmr-wallet-cli is a command-line client for the wallet engine. It
// manages encrypted seed files, scans transactions through a remote
// node, and assembles transfers for an external signing command.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cielo-wallet/xmr-engine/config"
	"github.com/cielo-wallet/xmr-engine/internal/log"
	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/internal/storage"
	"github.com/cielo-wallet/xmr-engine/internal/wallet"
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
	"github.com/cielo-wallet/xmr-engine/pkg/tx"
	"golang.org/x/term"
)

// keystoreDir returns the keystore path: <datadir>/<network>/keystore
func keystoreDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, string(cfg.Network), "keystore")
}

// walletDBDir returns the per-wallet database path:
// <datadir>/<network>/wallets/<name>
func walletDBDir(cfg *config.Config, name string) string {
	return filepath.Join(cfg.DataDir, string(cfg.Network), "wallets", name)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	configFile := ""
	dataDir := ""
	network := "mainnet"
	nodeURL := ""

	// Scan for --config, --datadir, --network, and --node before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--config" && len(args) > 1:
			configFile = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--config="):
			configFile = args[0][len("--config="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--node" && len(args) > 1:
			nodeURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--node="):
			nodeURL = args[0][len("--node="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg := config.Default(config.NetworkType(network))
	if configFile != "" {
		if err := config.LoadFile(configFile, cfg); err != nil {
			fatal("load config: %v", err)
		}
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if nodeURL != "" {
		cfg.Node.URL = nodeURL
	}
	if err := config.Validate(cfg); err != nil {
		fatal("invalid config: %v", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(cfg)
	case "wallet":
		cmdWallet(cfg, cmdArgs)
	case "address":
		cmdAddress(cfg, cmdArgs)
	case "balance":
		cmdBalance(cfg, cmdArgs)
	case "history":
		cmdHistory(cfg, cmdArgs)
	case "estimate":
		cmdEstimate(cfg, cmdArgs)
	case "send":
		cmdSend(cfg, cmdArgs)
	case "add-tx":
		cmdAddTx(cfg, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: xmr-wallet-cli [global flags] <command> [flags]

Global flags:
  --config <path>     Config file (key=value)
  --datadir <path>    Data directory (default: platform specific)
  --network <net>     mainnet (default) or testnet
  --node <url>        Node gateway URL override

Commands:
  status                          Show node height and fee schedule

  wallet create --name <n>        Create a new wallet (prints mnemonic)
  wallet import --name <n> --mnemonic "..."
                                  Import wallet from mnemonic
  wallet list                     List wallets
  wallet info --wallet <w>        Show wallet metadata
  wallet delete --wallet <w>      Delete a wallet file

  address --wallet <w>            Show wallet addresses
  balance --wallet <w>            Scan and show balance
  history --wallet <w> [--page n] Show transaction history
  estimate --wallet <w> --amount <amt> [--fastest]
                                  Quote the fee for a transfer
  send --wallet <w> --to <addr> --amount <amt> --signer <cmd> [--fastest]
                                  Send via an external signing command
  add-tx --wallet <w> --txid <id> Attach a known transaction id
`)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(cfg *config.Config) {
	ctx, cancel := opCtx(cfg)
	defer cancel()

	client := nodeclient.NewWithTimeout(cfg.Node.URL, nodeTimeout(cfg))
	height, err := client.Height(ctx)
	if err != nil {
		fatal("node height: %v", err)
	}
	feeCfg, err := client.FeeConfig(ctx)
	if err != nil {
		fatal("fee config: %v", err)
	}

	fmt.Printf("Node:     %s\n", cfg.Node.URL)
	fmt.Printf("Network:  %s\n", cfg.Network)
	fmt.Printf("Height:   %d\n", height)
	fmt.Printf("Base Fee: %d (mask %d)\n", feeCfg.BaseFee, feeCfg.QuantizationMask)
}

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: xmr-wallet-cli wallet <create|import|list|info|delete> [flags]")
	}

	switch args[0] {
	case "create":
		cmdWalletCreate(cfg, args[1:])
	case "import":
		cmdWalletImport(cfg, args[1:])
	case "list":
		cmdWalletList(cfg)
	case "info":
		cmdWalletInfo(cfg, args[1:])
	case "delete":
		cmdWalletDelete(cfg, args[1:])
	default:
		fatal("Unknown wallet command: %s", args[0])
	}
}

func cmdWalletCreate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xmr-wallet-cli wallet create --name <n>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}
	createFromMnemonic(cfg, *name, mnemonic)

	fmt.Println("\nRecovery mnemonic (write it down, it is shown once):")
	fmt.Printf("\n  %s\n", mnemonic)
}

func cmdWalletImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 recovery mnemonic")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal(`Usage: xmr-wallet-cli wallet import --name <n> --mnemonic "..."`)
	}
	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}
	createFromMnemonic(cfg, *name, *mnemonic)
}

func createFromMnemonic(cfg *config.Config, name, mnemonic string) {
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	spend, err := wallet.SpendKeyFromSeed(seed, 0)
	if err != nil {
		fatal("derive spend key: %v", err)
	}
	keyring, err := wallet.NewKeyring(engineNetwork(cfg), spend)
	if err != nil {
		fatal("build keyring: %v", err)
	}
	primary, err := keyring.Address(mcrypto.SubaddressIndex{})
	if err != nil {
		fatal("derive address: %v", err)
	}

	password, err := readNewPassword()
	if err != nil {
		fatal("read password: %v", err)
	}

	ks, err := wallet.NewKeystore(keystoreDir(cfg))
	if err != nil {
		fatal("open keystore: %v", err)
	}
	info := wallet.WalletInfo{
		Name:           name,
		Network:        string(cfg.Network),
		PrimaryAddress: primary.String(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := ks.Create(name, seed, password, info, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}

	fmt.Printf("Wallet created: %s\n", name)
	fmt.Printf("Address: %s\n", primary)
}

func cmdWalletList(cfg *config.Config) {
	ks, err := wallet.NewKeystore(keystoreDir(cfg))
	if err != nil {
		fatal("open keystore: %v", err)
	}
	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No wallets.")
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func cmdWalletInfo(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet info", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xmr-wallet-cli wallet info --wallet <w>")
	}
	ks, err := wallet.NewKeystore(keystoreDir(cfg))
	if err != nil {
		fatal("open keystore: %v", err)
	}
	info, err := ks.Info(*name)
	if err != nil {
		fatal("wallet info: %v", err)
	}
	fmt.Printf("Name:     %s\n", info.Name)
	fmt.Printf("Network:  %s\n", info.Network)
	fmt.Printf("Address:  %s\n", info.PrimaryAddress)
	fmt.Printf("Created:  %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	if info.ViewOnly {
		fmt.Println("Mode:     view-only")
	}
}

func cmdWalletDelete(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet delete", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xmr-wallet-cli wallet delete --wallet <w>")
	}
	ks, err := wallet.NewKeystore(keystoreDir(cfg))
	if err != nil {
		fatal("open keystore: %v", err)
	}
	if err := ks.Delete(*name); err != nil {
		fatal("delete wallet: %v", err)
	}
	fmt.Printf("Deleted: %s\n", *name)
}

// ── address ─────────────────────────────────────────────────────────────

func cmdAddress(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xmr-wallet-cli address --wallet <w>")
	}
	keyring := openKeyring(cfg, *name)
	for _, a := range keyring.Addresses() {
		fmt.Printf("%-8s %s\n", a.Index, a.Address)
	}
}

// ── balance ─────────────────────────────────────────────────────────────

func cmdBalance(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xmr-wallet-cli balance --wallet <w>")
	}
	w, closeDB := openWallet(cfg, *name)
	defer closeDB()

	bal := w.Balance()
	fmt.Printf("Confirmed: %s\n", formatAmount(bal.Confirmed))
	if bal.Total != bal.Confirmed {
		fmt.Printf("Pending:   %s\n", formatAmount(bal.Total-bal.Confirmed))
		fmt.Printf("Total:     %s\n", formatAmount(bal.Total))
	}
	fmt.Printf("Sendable:  %s\n", formatAmount(w.EstimateMaxAmount(wallet.FeeDefault)))
}

// ── history ─────────────────────────────────────────────────────────────

func cmdHistory(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	page := fs.Int("page", 0, "Page number (0-based)")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xmr-wallet-cli history --wallet <w> [--page n]")
	}
	w, closeDB := openWallet(cfg, *name)
	defer closeDB()

	txs, more := w.Transactions(*page * cfg.Wallet.TxPerPage)
	if len(txs) == 0 {
		fmt.Println("No transactions.")
		return
	}
	for _, t := range txs {
		dir := "recv"
		if t.Direction == wallet.Outgoing {
			dir = "send"
		}
		state := "confirmed"
		if !t.Confirmed {
			state = fmt.Sprintf("%d conf", t.Confirmations)
		}
		fmt.Printf("%s  %s  %s  %18s  fee %s\n",
			t.Timestamp.Format("2006-01-02 15:04"), dir, state,
			formatAmount(t.Amount), formatAmount(t.Fee()))
		fmt.Printf("    %s\n", t.ID)
	}
	if more {
		fmt.Printf("\nMore on page %d.\n", *page+1)
	}
}

// ── estimate ────────────────────────────────────────────────────────────

func cmdEstimate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	amountStr := fs.String("amount", "", "Amount to send (e.g. 1.5)")
	fastest := fs.Bool("fastest", false, "Use the fastest fee tier")
	fs.Parse(args)

	if *name == "" || *amountStr == "" {
		fatal("Usage: xmr-wallet-cli estimate --wallet <w> --amount <amt> [--fastest]")
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	w, closeDB := openWallet(cfg, *name)
	defer closeDB()

	rate := wallet.FeeDefault
	if *fastest {
		rate = wallet.FeeFastest
	}
	fee, err := w.EstimateTransactionFee(amount, rate)
	if err != nil {
		fatal("estimate fee: %v", err)
	}
	fmt.Printf("Amount: %s\n", formatAmount(amount))
	fmt.Printf("Fee:    %s\n", formatAmount(fee))
	fmt.Printf("Total:  %s\n", formatAmount(amount+fee))
	fmt.Printf("Max:    %s\n", formatAmount(w.EstimateMaxAmount(rate)))
}

// ── send ────────────────────────────────────────────────────────────────

// execSigner pipes the signing payload to an external command as JSON
// and reads the raw transaction hex from its stdout. The engine never
// holds the ring signature implementation.
type execSigner struct {
	command string
}

func (s *execSigner) Sign(ctx context.Context, payload *tx.Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("signer command: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func cmdSend(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	toAddr := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to send (e.g. 1.5)")
	signerCmd := fs.String("signer", "", "External signing command")
	fastest := fs.Bool("fastest", false, "Use the fastest fee tier")
	fs.Parse(args)

	if *name == "" || *toAddr == "" || *amountStr == "" || *signerCmd == "" {
		fatal("Usage: xmr-wallet-cli send --wallet <w> --to <addr> --amount <amt> --signer <cmd>")
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	w, closeDB := openWallet(cfg, *name)
	defer closeDB()

	rate := wallet.FeeDefault
	if *fastest {
		rate = wallet.FeeFastest
	}
	fee, err := w.EstimateTransactionFee(amount, rate)
	if err != nil {
		fatal("estimate fee: %v", err)
	}
	fmt.Printf("Sending %s + %s fee to %s\n", formatAmount(amount), formatAmount(fee), *toAddr)

	ctx, cancel := opCtx(cfg)
	defer cancel()
	t, err := w.CreateTransaction(ctx, &execSigner{command: *signerCmd}, *toAddr, amount, fee, rate)
	if err != nil {
		fatal("send: %v", err)
	}
	fmt.Printf("Submitted: %s\n", t.ID)
}

// ── add-tx ──────────────────────────────────────────────────────────────

func cmdAddTx(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("add-tx", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	txID := fs.String("txid", "", "Transaction id (64 hex chars)")
	fs.Parse(args)

	if *name == "" || *txID == "" {
		fatal("Usage: xmr-wallet-cli add-tx --wallet <w> --txid <id>")
	}
	w, closeDB := openWallet(cfg, *name)
	defer closeDB()

	ctx, cancel := opCtx(cfg)
	defer cancel()
	t, err := w.AddTransaction(ctx, *txID)
	if err != nil {
		fatal("add transaction: %v", err)
	}
	dir := "received"
	if t.Direction == wallet.Outgoing {
		dir = "sent"
	}
	fmt.Printf("Added: %s %s\n", dir, formatAmount(t.Amount))
	bal := w.Balance()
	fmt.Printf("Total: %s\n", formatAmount(bal.Total))
}

// ── Wallet opening helpers ──────────────────────────────────────────────

func engineNetwork(cfg *config.Config) mcrypto.Network {
	if cfg.Network == config.Testnet {
		return mcrypto.Testnet
	}
	return mcrypto.Mainnet
}

func nodeTimeout(cfg *config.Config) time.Duration {
	if cfg.Node.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Node.TimeoutSeconds) * time.Second
}

func opCtx(cfg *config.Config) (context.Context, context.CancelFunc) {
	// Loading scans the whole history, so allow several node round trips.
	return context.WithTimeout(context.Background(), 10*nodeTimeout(cfg))
}

// openKeyring unlocks the wallet seed and derives the keyring.
func openKeyring(cfg *config.Config, name string) *wallet.StaticKeyring {
	ks, err := wallet.NewKeystore(keystoreDir(cfg))
	if err != nil {
		fatal("open keystore: %v", err)
	}
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, err := ks.Load(name, password)
	if err != nil {
		fatal("unlock wallet: %v", err)
	}
	spend, err := wallet.SpendKeyFromSeed(seed, 0)
	if err != nil {
		fatal("derive spend key: %v", err)
	}
	keyring, err := wallet.NewKeyring(engineNetwork(cfg), spend)
	if err != nil {
		fatal("build keyring: %v", err)
	}
	return keyring
}

// openWallet unlocks the wallet, opens its database, and loads the
// transaction history from the node. The returned func closes the
// database.
func openWallet(cfg *config.Config, name string) (*wallet.Wallet, func()) {
	keyring := openKeyring(cfg, name)

	db, err := storage.NewBadger(walletDBDir(cfg, name))
	if err != nil {
		fatal("open wallet database: %v", err)
	}

	w, err := wallet.New(wallet.Params{
		Engine:                   mcrypto.NewEd25519Engine(nil),
		Keyring:                  keyring,
		Node:                     nodeclient.NewWithTimeout(cfg.Node.URL, nodeTimeout(cfg)),
		Oracle:                   nodeclient.NewOracle(cfg.FeeOracle.URL, cfg.FeeOracle.AssetID, nodeTimeout(cfg)),
		DB:                       db,
		Network:                  engineNetwork(cfg),
		RingSize:                 cfg.Wallet.RingSize,
		MaxTxInputs:              cfg.Wallet.MaxTxInputs,
		MinConfirmations:         cfg.Wallet.MinConfirmations,
		MinConfirmationsCoinbase: cfg.Wallet.MinConfirmationsCoinbase,
		DustThreshold:            cfg.Wallet.DustThreshold,
		TxExtraSize:              cfg.Wallet.TxExtraSize,
		FeeMultiplierDefault:     cfg.Wallet.FeeMultiplierDefault,
		FeeMultiplierFastest:     cfg.Wallet.FeeMultiplierFastest,
		TxPerPage:                cfg.Wallet.TxPerPage,
	})
	if err != nil {
		db.Close()
		fatal("create wallet engine: %v", err)
	}

	ctx, cancel := opCtx(cfg)
	defer cancel()
	if err := w.Load(ctx); err != nil {
		db.Close()
		fatal("load wallet: %v", err)
	}
	return w, func() { db.Close() }
}

// ── Amount helpers ──────────────────────────────────────────────────────

// formatAmount converts atomic units to a decimal string.
func formatAmount(units uint64) string {
	whole := units / config.Coin
	frac := units % config.Coin
	return fmt.Sprintf("%d.%012d", whole, frac)
}

// parseAmount converts a decimal string to atomic units.
func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount")
	}

	parts := strings.SplitN(s, ".", 2)

	whole, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid whole part: %w", err)
	}

	var frac uint64
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > config.Decimals {
			return 0, fmt.Errorf("too many decimal places (max %d)", config.Decimals)
		}
		// Pad to Decimals digits.
		fracStr = fracStr + strings.Repeat("0", config.Decimals-len(fracStr))
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fractional part: %w", err)
		}
	}

	// Check overflow.
	if whole > math.MaxUint64/config.Coin {
		return 0, fmt.Errorf("amount too large")
	}
	result := whole * config.Coin
	if result > math.MaxUint64-frac {
		return 0, fmt.Errorf("amount too large")
	}

	return result + frac, nil
}

// ── Password helpers ────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func readNewPassword() ([]byte, error) {
	password, err := readPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(password, confirm) {
		return nil, fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
