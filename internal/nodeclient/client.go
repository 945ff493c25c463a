// Package nodeclient provides HTTP clients for the node REST gateway and
// the service-fee oracle.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	klog "github.com/cielo-wallet/xmr-engine/internal/log"
)

// txsChunk caps how many transaction ids go into a single gateway request.
const txsChunk = 50

// APIError is returned when the gateway responds with a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Status, e.Message)
}

// Client talks to the node REST gateway.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a gateway client for the given base URL.
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, 30*time.Second)
}

// NewWithTimeout creates a gateway client with a custom HTTP timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Transactions fetches full transaction records for the given ids. The
// gateway limits how many ids fit in one request, so large sets are
// fetched in chunks and concatenated in request order.
func (c *Client) Transactions(ctx context.Context, txIDs []string) ([]TxRecord, error) {
	txs := make([]TxRecord, 0, len(txIDs))
	for start := 0; start < len(txIDs); start += txsChunk {
		end := start + txsChunk
		if end > len(txIDs) {
			end = len(txIDs)
		}
		var page struct {
			Txs []TxRecord `json:"txs"`
		}
		q := url.Values{"txIds": {strings.Join(txIDs[start:end], ",")}}
		if err := c.get(ctx, "/txs", q, &page); err != nil {
			return nil, err
		}
		txs = append(txs, page.Txs...)
	}
	klog.Node.Debug().Int("requested", len(txIDs)).Int("received", len(txs)).Msg("fetched transactions")
	return txs, nil
}

// FeeConfig fetches the current network fee schedule.
func (c *Client) FeeConfig(ctx context.Context) (*FeeConfig, error) {
	var cfg FeeConfig
	if err := c.get(ctx, "/fee", nil, &cfg); err != nil {
		return nil, err
	}
	if cfg.QuantizationMask == 0 {
		cfg.QuantizationMask = 1
	}
	return &cfg, nil
}

// RandomOutputs fetches decoy candidates for ring construction: count
// outputs per requested amount, drawn from outputs at least 10 blocks
// below height.
func (c *Client) RandomOutputs(ctx context.Context, amounts []uint64, count int, height uint64) ([]RandomOutputSet, error) {
	strs := make([]string, len(amounts))
	for i, a := range amounts {
		strs[i] = strconv.FormatUint(a, 10)
	}
	q := url.Values{
		"amounts": {strings.Join(strs, ",")},
		"count":   {strconv.Itoa(count)},
		"height":  {strconv.FormatUint(height, 10)},
	}
	var res struct {
		Sets []RandomOutputSet `json:"outs"`
	}
	if err := c.get(ctx, "/outputs/random", q, &res); err != nil {
		return nil, err
	}
	return res.Sets, nil
}

// Height fetches the current blockchain height.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	var res struct {
		Height uint64 `json:"height,string"`
	}
	if err := c.get(ctx, "/height", nil, &res); err != nil {
		return 0, err
	}
	return res.Height, nil
}

// SendRawTransaction submits a signed transaction blob (hex) and returns
// the transaction id assigned by the network.
func (c *Client) SendRawTransaction(ctx context.Context, rawHex string) (string, error) {
	body, err := json.Marshal(map[string]string{"txHex": rawHex})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	var res struct {
		TxID string `json:"txId"`
	}
	if err := c.post(ctx, "/tx/send", body, &res); err != nil {
		return "", err
	}
	klog.Node.Info().Str("txid", res.TxID).Msg("transaction submitted")
	return res.TxID, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
