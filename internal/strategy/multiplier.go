// Package strategy sizes a recurring purchase from market context.
//
// Everything here is pure: identical inputs always produce identical results.
package strategy

import (
	"fmt"
	"strings"

	"stacker/internal/pkg/money"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindClassic   Kind = "classic"
	KindAth       Kind = "ath"
	KindFearGreed Kind = "fear_greed"
)

// AthTier applies Multiplier while the distance from the all-time high is at most MaxDistance.
type AthTier struct {
	MaxDistance decimal.Decimal `yaml:"max_distance" json:"max_distance"`
	Multiplier  decimal.Decimal `yaml:"multiplier" json:"multiplier"`
}

// FearGreedTier applies Multiplier while the fear & greed index is at most MaxIndex.
type FearGreedTier struct {
	MaxIndex   int             `yaml:"max_index" json:"max_index"`
	Multiplier decimal.Decimal `yaml:"multiplier" json:"multiplier"`
}

// Spec selects a sizing strategy. Tiers must be sorted ascending.
type Spec struct {
	Kind           Kind            `yaml:"kind" json:"kind"`
	AthTiers       []AthTier       `yaml:"ath_tiers,omitempty" json:"ath_tiers,omitempty"`
	FearGreedTiers []FearGreedTier `yaml:"fear_greed_tiers,omitempty" json:"fear_greed_tiers,omitempty"`
}

// MarketContext carries optional market data; nil means unavailable.
type MarketContext struct {
	Price     *decimal.Decimal
	ATH       *decimal.Decimal
	FearGreed *int
}

// Result is the outcome of sizing.
type Result struct {
	Multiplier decimal.Decimal
	Reason     string
	// Fallback is set when the selected strategy lacked data and classic sizing was used.
	Fallback bool
}

const reasonFixed = "fixed amount"

var (
	one = decimal.NewFromInt(1)
)

func classic() Result {
	return Result{Multiplier: one, Reason: reasonFixed}
}

func fallback(why string) Result {
	return Result{Multiplier: one, Reason: reasonFixed + " (" + why + ")", Fallback: true}
}

// ComputeMultiplier returns the purchase-size multiplier for spec under mc.
func ComputeMultiplier(spec Spec, mc MarketContext) Result {
	switch spec.normalizedKind() {
	case KindAth:
		return athMultiplier(spec.AthTiers, mc)
	case KindFearGreed:
		return fearGreedMultiplier(spec.FearGreedTiers, mc)
	default:
		return classic()
	}
}

// DistanceFromATH is (ath - price) / ath clamped to [0,1]; ath <= 0 counts as distance 0.
func DistanceFromATH(price, ath decimal.Decimal) decimal.Decimal {
	if !ath.IsPositive() {
		return decimal.Zero
	}
	d, _ := money.Div(ath.Sub(price), ath)
	return money.Clamp(d, decimal.Zero, one)
}

func athMultiplier(tiers []AthTier, mc MarketContext) Result {
	if len(tiers) == 0 {
		return fallback("no ath tiers configured")
	}
	if mc.ATH == nil || mc.Price == nil {
		return fallback("ath data unavailable")
	}
	distance := DistanceFromATH(*mc.Price, *mc.ATH)
	tier := tiers[len(tiers)-1]
	for _, t := range tiers {
		if t.MaxDistance.GreaterThanOrEqual(distance) {
			tier = t
			break
		}
	}
	return Result{
		Multiplier: tier.Multiplier,
		Reason: fmt.Sprintf("%s%% below ATH (tier <= %s%%) x%s",
			distance.Mul(decimal.NewFromInt(100)).StringFixed(1),
			tier.MaxDistance.Mul(decimal.NewFromInt(100)).StringFixed(0),
			tier.Multiplier.String()),
	}
}

func fearGreedMultiplier(tiers []FearGreedTier, mc MarketContext) Result {
	if len(tiers) == 0 {
		return fallback("no fear & greed tiers configured")
	}
	if mc.FearGreed == nil {
		return fallback("fear & greed index unavailable")
	}
	index := *mc.FearGreed
	tier := tiers[len(tiers)-1]
	for _, t := range tiers {
		if t.MaxIndex >= index {
			tier = t
			break
		}
	}
	return Result{
		Multiplier: tier.Multiplier,
		Reason:     fmt.Sprintf("fear & greed %d (tier <= %d) x%s", index, tier.MaxIndex, tier.Multiplier.String()),
	}
}

func (s Spec) normalizedKind() Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(string(s.Kind))))
	if k == "" {
		return KindClassic
	}
	return k
}

// Normalize lower-cases the kind and defaults it to classic.
func (s Spec) Normalize() Spec {
	s.Kind = s.normalizedKind()
	return s
}

// Validate checks tier ordering and the catch-all tier. Multipliers must be
// non-decreasing with ATH distance and non-increasing with the index.
func (s Spec) Validate() error {
	switch s.normalizedKind() {
	case KindClassic:
		return nil
	case KindAth:
		return validateAthTiers(s.AthTiers)
	case KindFearGreed:
		return validateFearGreedTiers(s.FearGreedTiers)
	default:
		return fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
}

func validateAthTiers(tiers []AthTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("ath strategy requires at least one tier")
	}
	for i, t := range tiers {
		if !t.Multiplier.IsPositive() {
			return fmt.Errorf("ath tier %d: multiplier must be > 0", i)
		}
		if t.MaxDistance.IsNegative() {
			return fmt.Errorf("ath tier %d: max_distance must be >= 0", i)
		}
		if i > 0 && !t.MaxDistance.GreaterThan(tiers[i-1].MaxDistance) {
			return fmt.Errorf("ath tier %d: max_distance must be strictly ascending", i)
		}
		if i > 0 && t.Multiplier.LessThan(tiers[i-1].Multiplier) {
			return fmt.Errorf("ath tier %d: multiplier must not decrease as distance grows", i)
		}
	}
	if tiers[len(tiers)-1].MaxDistance.LessThan(one) {
		return fmt.Errorf("ath tiers: last max_distance must be >= 1.0 (catch-all)")
	}
	return nil
}

func validateFearGreedTiers(tiers []FearGreedTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("fear_greed strategy requires at least one tier")
	}
	for i, t := range tiers {
		if !t.Multiplier.IsPositive() {
			return fmt.Errorf("fear_greed tier %d: multiplier must be > 0", i)
		}
		if t.MaxIndex < 0 {
			return fmt.Errorf("fear_greed tier %d: max_index must be >= 0", i)
		}
		if i > 0 && t.MaxIndex <= tiers[i-1].MaxIndex {
			return fmt.Errorf("fear_greed tier %d: max_index must be strictly ascending", i)
		}
		if i > 0 && t.Multiplier.GreaterThan(tiers[i-1].Multiplier) {
			return fmt.Errorf("fear_greed tier %d: multiplier must not grow with greed", i)
		}
	}
	if tiers[len(tiers)-1].MaxIndex < 100 {
		return fmt.Errorf("fear_greed tiers: last max_index must be >= 100 (catch-all)")
	}
	return nil
}
