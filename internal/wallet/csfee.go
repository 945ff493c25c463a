package wallet

import (
	"math/big"

	"github.com/cielo-wallet/xmr-engine/internal/nodeclient"
)

const ratePPMDenominator = 1_000_000

// ServiceFee computes the provider fee for outgoing transfers from the
// oracle schedule. All arithmetic is integer, truncating, so results are
// reproducible across platforms.
type ServiceFee struct {
	cfg    nodeclient.ServiceFeeConfig
	exempt bool
}

// NewServiceFee builds a calculator. walletAddress is checked against
// the schedule whitelist; whitelisted wallets pay no service fee.
func NewServiceFee(cfg nodeclient.ServiceFeeConfig, walletAddress string) *ServiceFee {
	exempt := false
	for _, a := range cfg.Whitelist {
		if a == walletAddress {
			exempt = true
			break
		}
	}
	return &ServiceFee{cfg: cfg, exempt: exempt}
}

// Enabled reports whether this wallet pays a service fee at all.
func (s *ServiceFee) Enabled() bool {
	return !s.cfg.Disabled && !s.exempt && len(s.cfg.Addresses) > 0 && s.cfg.RatePPM > 0
}

// Address returns the fee-collection address.
func (s *ServiceFee) Address() string {
	if len(s.cfg.Addresses) == 0 {
		return ""
	}
	return s.cfg.Addresses[0]
}

// Calculate returns the service fee on a net transfer value:
// floor(value * rate) clamped to [minFee, maxFee]. With skipMinFee set,
// a raw fee below the floor is waived entirely instead of clamped up.
func (s *ServiceFee) Calculate(value uint64) uint64 {
	if !s.Enabled() {
		return 0
	}
	raw := new(big.Int).SetUint64(value)
	raw.Mul(raw, new(big.Int).SetUint64(s.cfg.RatePPM))
	raw.Div(raw, big.NewInt(ratePPMDenominator))

	fee := raw.Uint64()
	if fee < s.cfg.MinFee {
		if s.cfg.SkipMin {
			return 0
		}
		fee = s.cfg.MinFee
	}
	if s.cfg.MaxFee > 0 && fee > s.cfg.MaxFee {
		fee = s.cfg.MaxFee
	}
	return fee
}

// Reverse recovers the fee from a gross value that already includes it,
// such that Calculate(gross - fee) == fee up to one unit of truncation.
// The naive inverse floor(gross * rate / (1 + rate)) can land one unit
// low, so the result is cross-checked against the forward fee on the
// implied net value and the larger of the two is returned.
func (s *ServiceFee) Reverse(gross uint64) uint64 {
	if !s.Enabled() {
		return 0
	}
	raw := new(big.Int).SetUint64(gross)
	raw.Mul(raw, new(big.Int).SetUint64(s.cfg.RatePPM))
	raw.Div(raw, new(big.Int).SetUint64(ratePPMDenominator+s.cfg.RatePPM))

	fee := raw.Uint64()
	if fee < s.cfg.MinFee {
		if s.cfg.SkipMin {
			fee = 0
		} else {
			fee = s.cfg.MinFee
		}
	}
	if s.cfg.MaxFee > 0 && fee > s.cfg.MaxFee {
		fee = s.cfg.MaxFee
	}
	if fee >= gross {
		// The whole gross value goes to fees; there is no net transfer
		// left to cross-check against.
		return gross
	}

	if forward := s.Calculate(gross - fee); forward > fee {
		fee = forward
	}
	return fee
}
