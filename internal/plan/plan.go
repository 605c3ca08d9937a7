// Package plan defines recurring purchase plans and the file-backed registry that serves them.
package plan

import (
	"fmt"
	"regexp"
	"strings"

	"stacker/internal/gateway/exchange"
	"stacker/internal/pkg/money"
	"stacker/internal/policy"
	"stacker/internal/scheduler"
	"stacker/internal/strategy"

	"github.com/shopspring/decimal"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Plan is one recurring purchase. A Tick works on its own copy.
type Plan struct {
	ID            string                  `yaml:"id" json:"id"`
	Exchange      string                  `yaml:"exchange" json:"exchange"`
	Crypto        string                  `yaml:"crypto" json:"crypto"`
	Fiat          string                  `yaml:"fiat" json:"fiat"`
	BaseAmount    decimal.Decimal         `yaml:"base_amount" json:"base_amount"`
	FiatDecimals  *int32                  `yaml:"fiat_decimals,omitempty" json:"fiat_decimals,omitempty"`
	Schedule      scheduler.Spec          `yaml:"schedule" json:"schedule"`
	Strategy      strategy.Spec           `yaml:"strategy" json:"strategy"`
	Withdrawal    policy.WithdrawalConfig `yaml:"withdrawal" json:"withdrawal"`
	Enabled       bool                    `yaml:"enabled" json:"enabled"`
	NotifyChannel string                  `yaml:"notify_channel,omitempty" json:"notify_channel,omitempty"`
	// LedgerKey groups plans into one accumulation summary; defaults to Crypto.
	LedgerKey string `yaml:"ledger_key,omitempty" json:"ledger_key,omitempty"`
}

func (p Plan) Pair() exchange.Pair { return exchange.NewPair(p.Crypto, p.Fiat) }

// Normalize trims and upper-cases symbols and fills defaults.
func (p Plan) Normalize() Plan {
	p.ID = strings.TrimSpace(p.ID)
	p.Exchange = strings.ToLower(strings.TrimSpace(p.Exchange))
	p.Crypto = strings.ToUpper(strings.TrimSpace(p.Crypto))
	p.Fiat = strings.ToUpper(strings.TrimSpace(p.Fiat))
	places := p.Decimals()
	p.FiatDecimals = &places
	p.Schedule.Every = strings.TrimSpace(p.Schedule.Every)
	p.Schedule.Cron = strings.TrimSpace(p.Schedule.Cron)
	p.Strategy = p.Strategy.Normalize()
	p.Withdrawal = p.Withdrawal.Normalize()
	p.NotifyChannel = strings.TrimSpace(p.NotifyChannel)
	p.LedgerKey = strings.ToUpper(strings.TrimSpace(p.LedgerKey))
	if p.LedgerKey == "" {
		p.LedgerKey = p.Crypto
	}
	return p
}

// Validate expects a normalized plan.
func (p Plan) Validate() error {
	if !idPattern.MatchString(p.ID) {
		return fmt.Errorf("plan id %q must match %s", p.ID, idPattern.String())
	}
	if p.Exchange == "" {
		return fmt.Errorf("plan %s: exchange is required", p.ID)
	}
	if p.Crypto == "" || p.Fiat == "" || p.Crypto == p.Fiat {
		return fmt.Errorf("plan %s: crypto and fiat must be distinct assets", p.ID)
	}
	if !p.BaseAmount.IsPositive() {
		return fmt.Errorf("plan %s: base_amount must be > 0", p.ID)
	}
	if places := p.Decimals(); places < 0 || places > 8 {
		return fmt.Errorf("plan %s: fiat_decimals must be within [0, 8]", p.ID)
	}
	if _, err := scheduler.ParseSpec(p.Schedule); err != nil {
		return fmt.Errorf("plan %s: %w", p.ID, err)
	}
	if err := p.Strategy.Validate(); err != nil {
		return fmt.Errorf("plan %s: %w", p.ID, err)
	}
	if limit := p.Withdrawal.FeeLimit(); limit.IsNegative() || limit.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("plan %s: withdrawal.max_fee_fraction must be within [0, 1]", p.ID)
	}
	return nil
}

// Decimals is the fiat's minimal increment in decimal places; unset means
// money.DefaultFiatDecimals and 0 means whole units.
func (p Plan) Decimals() int32 {
	if p.FiatDecimals == nil {
		return money.DefaultFiatDecimals
	}
	return *p.FiatDecimals
}

// ScheduleOf parses the plan schedule.
func (p Plan) ScheduleOf() (scheduler.Schedule, error) {
	return scheduler.ParseSpec(p.Schedule)
}

// Clone deep-copies the tier slices.
func (p Plan) Clone() Plan {
	p.Strategy.AthTiers = append([]strategy.AthTier(nil), p.Strategy.AthTiers...)
	p.Strategy.FearGreedTiers = append([]strategy.FearGreedTier(nil), p.Strategy.FearGreedTiers...)
	return p
}
