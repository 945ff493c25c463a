// Package wallet implements the Monero wallet engine: transaction
// scanning, the output ledger, balance, fee estimation, coin selection,
// and transaction assembly. Signing and broadcast are delegated to
// external collaborators.
package wallet

import (
	"context"
	"fmt"
	"sort"

	klog "github.com/cielo-wallet/xmr-engine/internal/log"
	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
	"github.com/cielo-wallet/xmr-engine/internal/storage"
	"github.com/cielo-wallet/xmr-engine/pkg/mcrypto"
	"github.com/cielo-wallet/xmr-engine/pkg/tx"
)

// FeeRate selects a miner fee tier.
type FeeRate string

const (
	FeeDefault FeeRate = "default"
	FeeFastest FeeRate = "fastest"
)

// NodeAPI is the node gateway surface the engine consumes.
type NodeAPI interface {
	Transactions(ctx context.Context, txIDs []string) ([]nodeclient.TxRecord, error)
	FeeConfig(ctx context.Context) (*nodeclient.FeeConfig, error)
	RandomOutputs(ctx context.Context, amounts []uint64, count int, height uint64) ([]nodeclient.RandomOutputSet, error)
	SendRawTransaction(ctx context.Context, rawHex string) (string, error)
}

// OracleAPI serves the service-fee schedule.
type OracleAPI interface {
	ServiceFee(ctx context.Context) (*nodeclient.ServiceFeeConfig, error)
}

// Signer turns an assembled payload into raw transaction bytes. It is
// the boundary to the external crypto core that holds the ring
// signature implementation.
type Signer interface {
	Sign(ctx context.Context, payload *tx.Payload) (rawHex string, err error)
}

// Params configures a wallet engine instance.
type Params struct {
	Engine  mcrypto.Engine
	Keyring Keyring
	Node    NodeAPI
	Oracle  OracleAPI
	DB      storage.DB
	Network mcrypto.Network

	RingSize                 int
	MaxTxInputs              int
	MinConfirmations         int
	MinConfirmationsCoinbase int
	DustThreshold            uint64
	TxExtraSize              int
	FeeMultiplierDefault     uint64
	FeeMultiplierFastest     uint64
	TxPerPage                int
}

// Balance is the wallet balance split by confirmation state.
type Balance struct {
	Confirmed uint64
	Total     uint64
}

// Wallet is the engine facade. It is not safe for concurrent use: all
// operations are sequential transformations over the in-memory ledger,
// and scanning must be strictly chronological because spend detection
// for a transaction depends on outputs recorded by earlier ones.
type Wallet struct {
	params    Params
	ledger    *Ledger
	keyImages *KeyImageCache
	scanner   *Scanner
	store     *Store

	records []nodeclient.TxRecord
	txs     []*Transaction
	txIndex map[string]*Transaction

	serviceFee *ServiceFee
	feeConfig  *nodeclient.FeeConfig

	// Max-amount quotes are cached per tier against the ledger
	// generation they were computed at.
	maxAmountGen   uint64
	maxAmountByFee map[FeeRate]uint64

	loaded bool
}

// New creates a wallet engine. Call Load before any balance or spending
// operation.
func New(params Params) (*Wallet, error) {
	if params.Engine == nil || params.Keyring == nil || params.Node == nil || params.DB == nil {
		return nil, fmt.Errorf("engine, keyring, node, and db are required")
	}
	store := NewStore(params.DB)
	cache, err := NewKeyImageCache(store.KeyImageDB())
	if err != nil {
		return nil, err
	}
	ledger := NewLedger()
	return &Wallet{
		params:    params,
		ledger:    ledger,
		keyImages: cache,
		scanner: NewScanner(params.Engine, params.Keyring, ledger, cache,
			params.MinConfirmations, params.MinConfirmationsCoinbase),
		store:          store,
		txIndex:        make(map[string]*Transaction),
		maxAmountByFee: make(map[FeeRate]uint64),
	}, nil
}

// Address returns the wallet's primary address.
func (w *Wallet) Address() (string, error) {
	addr, err := w.params.Keyring.Address(mcrypto.SubaddressIndex{})
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// Load fetches all known transactions from the node, scans them in
// chronological order, and persists the resulting balance. It also
// refreshes the network fee schedule and the service-fee schedule.
func (w *Wallet) Load(ctx context.Context) error {
	ids, err := w.store.TxIDs()
	if err != nil {
		return err
	}
	if _, err := w.store.CreatedAt(); err != nil {
		return err
	}

	if err := w.refreshFees(ctx); err != nil {
		return err
	}

	w.records = nil
	if len(ids) > 0 {
		records, err := w.params.Node.Transactions(ctx, ids)
		if err != nil {
			return fmt.Errorf("fetch transactions: %w", err)
		}
		w.records = records
	}
	if err := w.rescan(); err != nil {
		return err
	}

	if err := w.store.SaveBalance(w.ledger.Balance()); err != nil {
		return err
	}
	w.loaded = true
	klog.Wallet.Info().
		Int("txs", len(w.txs)).
		Uint64("balance", w.ledger.Balance()).
		Msg("wallet loaded")
	return nil
}

// rescan rebuilds the ledger and transaction list from the raw record
// set. Chronological order matters: spend detection for a transaction
// relies on outputs recorded by the transactions before it.
func (w *Wallet) rescan() error {
	w.ledger = NewLedger()
	w.txs = nil
	w.txIndex = make(map[string]*Transaction)
	w.maxAmountByFee = make(map[FeeRate]uint64)
	w.scanner = NewScanner(w.params.Engine, w.params.Keyring, w.ledger, w.keyImages,
		w.params.MinConfirmations, w.params.MinConfirmationsCoinbase)

	sort.SliceStable(w.records, func(i, j int) bool {
		return w.records[i].Timestamp < w.records[j].Timestamp
	})
	for i := range w.records {
		t, err := w.scanner.Scan(&w.records[i])
		if err != nil {
			return fmt.Errorf("scan %s: %w", w.records[i].TxID, err)
		}
		w.appendTx(t)
	}
	return nil
}

func (w *Wallet) refreshFees(ctx context.Context) error {
	feeConfig, err := w.params.Node.FeeConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetch fee config: %w", err)
	}
	w.feeConfig = feeConfig

	svcConfig := &nodeclient.ServiceFeeConfig{Disabled: true}
	if w.params.Oracle != nil {
		svcConfig, err = w.params.Oracle.ServiceFee(ctx)
		if err != nil {
			return fmt.Errorf("fetch service fee config: %w", err)
		}
	}
	addr, err := w.Address()
	if err != nil {
		return err
	}
	w.serviceFee = NewServiceFee(*svcConfig, addr)
	return nil
}

// Balance returns the wallet balance. The confirmed figure counts only
// spendable outputs; the total includes unconfirmed receipts.
func (w *Wallet) Balance() Balance {
	return Balance{
		Confirmed: w.ledger.ConfirmedBalance(),
		Total:     w.ledger.Balance(),
	}
}

func (w *Wallet) multiplier(rate FeeRate) uint64 {
	if rate == FeeFastest {
		return w.params.FeeMultiplierFastest
	}
	return w.params.FeeMultiplierDefault
}

func (w *Wallet) selector() *CoinSelector {
	var feeConfig nodeclient.FeeConfig
	if w.feeConfig != nil {
		feeConfig = *w.feeConfig
	} else {
		feeConfig.QuantizationMask = 1
	}
	return NewCoinSelector(w.ledger, w.serviceFee, feeConfig,
		w.params.RingSize, w.params.MaxTxInputs, w.params.DustThreshold, w.params.TxExtraSize)
}

// EstimateMaxAmount returns the largest net value sendable at the given
// fee tier. The quote is cached until the ledger changes.
func (w *Wallet) EstimateMaxAmount(rate FeeRate) uint64 {
	if w.maxAmountGen != w.ledger.Generation() {
		w.maxAmountByFee = make(map[FeeRate]uint64)
		w.maxAmountGen = w.ledger.Generation()
	}
	if cached, ok := w.maxAmountByFee[rate]; ok {
		return cached
	}
	max := w.selector().EstimateMaxAmount(w.multiplier(rate), true)
	w.maxAmountByFee[rate] = max
	return max
}

// EstimateTransactionFee quotes the total fee (miner plus service) for
// sending value at the given tier.
func (w *Wallet) EstimateTransactionFee(value uint64, rate FeeRate) (uint64, error) {
	sel, err := w.selector().SelectUtxos(value, w.multiplier(rate), true)
	if err != nil {
		return 0, err
	}
	return sel.MinerFee + sel.ServiceFee, nil
}

// ValidateTransaction checks a user-supplied transaction id: format
// first, then a case-insensitive duplicate check, then a node lookup so
// an id the network has never seen is rejected up front.
func (w *Wallet) ValidateTransaction(ctx context.Context, txID string) error {
	if !txIDPattern.MatchString(txID) {
		return &InvalidTxIDError{TxID: txID}
	}
	if _, ok := w.txIndex[normalizeTxID(txID)]; ok {
		return ErrTransactionAlreadyAdded
	}
	records, err := w.params.Node.Transactions(ctx, []string{normalizeTxID(txID)})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnknownTransaction, txID, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}
	return nil
}

// AddTransaction fetches a transaction by id, scans it, and merges it
// into the wallet. A transaction with no owned output or input is
// rejected with ErrNotYourTransaction and leaves no trace. An accepted
// transaction may predate known history, so the whole record set is
// re-scanned in timestamp order afterwards; a later transaction that
// spends one of its outputs is then accounted as a spend.
func (w *Wallet) AddTransaction(ctx context.Context, txID string) (*Transaction, error) {
	if !txIDPattern.MatchString(txID) {
		return nil, &InvalidTxIDError{TxID: txID}
	}
	key := normalizeTxID(txID)
	if _, ok := w.txIndex[key]; ok {
		return nil, ErrTransactionAlreadyAdded
	}
	records, err := w.params.Node.Transactions(ctx, []string{key})
	if err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}

	// Ownership check against the current ledger. A rejected scan
	// records nothing, so the wallet is left untouched.
	t, err := w.scanner.Scan(&records[0])
	if err != nil {
		return nil, err
	}
	if !t.Ours {
		return nil, fmt.Errorf("%w: %s", ErrNotYourTransaction, txID)
	}

	w.records = append(w.records, records[0])
	if err := w.rescan(); err != nil {
		return nil, err
	}
	if err := w.persist(); err != nil {
		return nil, err
	}
	return w.txIndex[key], nil
}

// Transactions returns one page of wallet history, newest first. The
// second return value reports whether more pages follow.
func (w *Wallet) Transactions(cursor int) ([]*Transaction, bool) {
	byTime := make([]*Transaction, len(w.txs))
	copy(byTime, w.txs)
	sort.SliceStable(byTime, func(i, j int) bool {
		return byTime[i].Timestamp.After(byTime[j].Timestamp)
	})

	perPage := w.params.TxPerPage
	if perPage <= 0 {
		perPage = 10
	}
	if cursor < 0 || cursor >= len(byTime) {
		return nil, false
	}
	end := cursor + perPage
	if end > len(byTime) {
		end = len(byTime)
	}
	return byTime[cursor:end], end < len(byTime)
}

// CreateTransaction builds, signs, and broadcasts a transfer, then
// merges the resulting transaction back into the wallet. fee must come
// from a fresh EstimateTransactionFee quote.
func (w *Wallet) CreateTransaction(ctx context.Context, signer Signer, destination string, value, fee uint64, rate FeeRate) (*Transaction, error) {
	builder := NewBuilder(w.params.Keyring, w.selector(), w.params.Node,
		w.params.Network, w.params.RingSize, w.params.DustThreshold)
	payload, sel, err := builder.Build(ctx, destination, value, fee, w.multiplier(rate))
	if err != nil {
		return nil, err
	}

	rawHex, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	txID, err := w.params.Node.SendRawTransaction(ctx, rawHex)
	if err != nil {
		return nil, err
	}
	klog.Wallet.Info().
		Str("txid", txID).
		Uint64("value", value).
		Uint64("miner_fee", sel.MinerFee).
		Uint64("service_fee", sel.ServiceFee).
		Msg("transaction sent")

	return w.AddTransaction(ctx, txID)
}

func (w *Wallet) appendTx(t *Transaction) {
	key := normalizeTxID(t.ID)
	if _, ok := w.txIndex[key]; ok {
		return
	}
	w.txs = append(w.txs, t)
	w.txIndex[key] = t
}

func (w *Wallet) persist() error {
	ids := make([]string, 0, len(w.txs))
	for _, t := range w.txs {
		ids = append(ids, normalizeTxID(t.ID))
	}
	if err := w.store.SaveTxIDs(ids); err != nil {
		return err
	}
	return w.store.SaveBalance(w.ledger.Balance())
}
