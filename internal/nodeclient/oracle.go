package nodeclient

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	klog "github.com/cielo-wallet/xmr-engine/internal/log"
)

// OracleClient talks to the service-fee oracle. The oracle serves a
// per-asset fee schedule that changes rarely, so callers are expected to
// cache the result for the lifetime of a wallet session.
type OracleClient struct {
	baseURL string
	asset   string
	http    *Client
}

// NewOracle creates an oracle client for the given base URL and asset id.
func NewOracle(baseURL, asset string, timeout time.Duration) *OracleClient {
	return &OracleClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		asset:   asset,
		http:    NewWithTimeout(baseURL, timeout),
	}
}

// ServiceFee fetches the fee schedule for the client's asset. A missing
// schedule (404) is treated as fees disabled rather than an error, so a
// wallet keeps working when the oracle has no entry for the asset.
func (c *OracleClient) ServiceFee(ctx context.Context) (*ServiceFeeConfig, error) {
	var cfg ServiceFeeConfig
	q := url.Values{"crypto": {c.asset}}
	err := c.http.get(ctx, "/csfee", q, &cfg)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			klog.Fee.Debug().Str("asset", c.asset).Msg("no fee schedule, fees disabled")
			return &ServiceFeeConfig{Disabled: true}, nil
		}
		return nil, err
	}
	return &cfg, nil
}
