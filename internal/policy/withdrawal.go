package policy

import (
	"strings"

	"stacker/internal/pkg/money"

	"github.com/shopspring/decimal"
)

// DefaultMaxFeeFraction is the highest withdrawal fee, as a fraction of the amount, accepted by default.
var DefaultMaxFeeFraction = decimal.RequireFromString("0.001")

type DenialReason string

const (
	FeeLimitExceeded    DenialReason = "fee_limit_exceeded"
	NoAddress           DenialReason = "no_address"
	Disabled            DenialReason = "disabled"
	NothingToWithdraw   DenialReason = "nothing_to_withdraw"
	FeeQuoteUnavailable DenialReason = "fee_quote_unavailable"
)

func (r DenialReason) Describe() string {
	switch r {
	case FeeLimitExceeded:
		return "withdrawal fee above limit"
	case NoAddress:
		return "no withdrawal address"
	case Disabled:
		return "withdrawal disabled"
	case NothingToWithdraw:
		return "nothing to withdraw"
	case FeeQuoteUnavailable:
		return "withdrawal fee unknown"
	default:
		return string(r)
	}
}

// WithdrawalConfig is the per-plan withdrawal setting. A nil MaxFeeFraction
// means DefaultMaxFeeFraction; zero means no fee is accepted.
type WithdrawalConfig struct {
	Enabled        bool             `yaml:"enabled" json:"enabled"`
	Address        string           `yaml:"address" json:"address"`
	MaxFeeFraction *decimal.Decimal `yaml:"max_fee_fraction,omitempty" json:"max_fee_fraction,omitempty"`
}

// Normalize trims the address and applies the default fee limit when unset.
func (c WithdrawalConfig) Normalize() WithdrawalConfig {
	c.Address = strings.TrimSpace(c.Address)
	limit := c.FeeLimit()
	c.MaxFeeFraction = &limit
	return c
}

// FeeLimit is the configured fee fraction, or the default when unset.
func (c WithdrawalConfig) FeeLimit() decimal.Decimal {
	if c.MaxFeeFraction == nil {
		return DefaultMaxFeeFraction
	}
	return *c.MaxFeeFraction
}

// WithdrawalDecision is Approved(Amount) or Denied(Reasons).
type WithdrawalDecision struct {
	Approved    bool
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	FeeFraction decimal.Decimal
	Reasons     []DenialReason
}

// Has reports whether reason is among the denial reasons.
func (d WithdrawalDecision) Has(reason DenialReason) bool {
	for _, r := range d.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Describe renders the decision for notifications.
func (d WithdrawalDecision) Describe() string {
	if d.Approved {
		return "withdrawal approved"
	}
	parts := make([]string, 0, len(d.Reasons))
	for _, r := range d.Reasons {
		parts = append(parts, r.Describe())
	}
	return strings.Join(parts, ", ")
}

// EvaluateWithdrawal decides whether to withdraw everything held given a fee quote.
// All applicable denial reasons are reported, not only the first.
func EvaluateWithdrawal(cfg WithdrawalConfig, held, feeQuote decimal.Decimal) WithdrawalDecision {
	return evaluate(cfg.Normalize(), held, feeQuote, true)
}

// EvaluateWithdrawalUnquoted is EvaluateWithdrawal when the fee quote could not be fetched.
func EvaluateWithdrawalUnquoted(cfg WithdrawalConfig, held decimal.Decimal) WithdrawalDecision {
	return evaluate(cfg.Normalize(), held, decimal.Zero, false)
}

func evaluate(cfg WithdrawalConfig, held, fee decimal.Decimal, quoted bool) WithdrawalDecision {
	dec := WithdrawalDecision{Fee: fee}
	if held.IsPositive() {
		dec.FeeFraction, _ = money.Div(fee, held)
	}
	if !quoted {
		dec.Reasons = append(dec.Reasons, FeeQuoteUnavailable)
	} else if dec.FeeFraction.GreaterThan(cfg.FeeLimit()) {
		dec.Reasons = append(dec.Reasons, FeeLimitExceeded)
	}
	if cfg.Address == "" {
		dec.Reasons = append(dec.Reasons, NoAddress)
	}
	if !cfg.Enabled {
		dec.Reasons = append(dec.Reasons, Disabled)
	}
	if !held.IsPositive() {
		dec.Reasons = append(dec.Reasons, NothingToWithdraw)
	}
	if len(dec.Reasons) == 0 {
		dec.Approved = true
		dec.Amount = held
	}
	return dec
}
