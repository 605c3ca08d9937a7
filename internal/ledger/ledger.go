// Package ledger keeps the per-asset running totals of every completed buy.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"stacker/internal/store"
	"stacker/internal/store/model"

	"github.com/shopspring/decimal"
)

// Ledger serializes updates per asset on top of the repository's atomic add.
type Ledger struct {
	repo store.LedgerRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(repo store.LedgerRepository) *Ledger {
	return &Ledger{repo: repo, locks: make(map[string]*sync.Mutex)}
}

func (l *Ledger) lockFor(asset string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[asset]
	if !ok {
		m = &sync.Mutex{}
		l.locks[asset] = m
	}
	return m
}

// Summary returns the totals for asset, persisting a zero summary on first use.
func (l *Ledger) Summary(ctx context.Context, asset string) (model.AccumulationSummary, error) {
	asset = key(asset)
	if asset == "" {
		return model.AccumulationSummary{}, fmt.Errorf("ledger: asset is required")
	}
	return l.repo.GetAccumulationSummary(ctx, asset)
}

// ApplyBuy adds one buy to the totals of asset and returns the new summary.
func (l *Ledger) ApplyBuy(ctx context.Context, asset string, fiatSpent, cryptoReceived decimal.Decimal) (model.AccumulationSummary, error) {
	asset = key(asset)
	if asset == "" {
		return model.AccumulationSummary{}, fmt.Errorf("ledger: asset is required")
	}
	if fiatSpent.IsNegative() || cryptoReceived.IsNegative() {
		return model.AccumulationSummary{}, fmt.Errorf("ledger: negative delta for %s (fiat=%s crypto=%s)", asset, fiatSpent, cryptoReceived)
	}
	m := l.lockFor(asset)
	m.Lock()
	defer m.Unlock()
	summary, err := l.repo.AddToAccumulation(ctx, asset, fiatSpent, cryptoReceived)
	if err != nil {
		return model.AccumulationSummary{}, fmt.Errorf("ledger: apply buy %s: %w", asset, err)
	}
	return summary, nil
}

// All lists every tracked asset.
func (l *Ledger) All(ctx context.Context) ([]model.AccumulationSummary, error) {
	return l.repo.ListAccumulationSummaries(ctx)
}

// ProfitFraction is cumulativeCrypto*price/cumulativeFiat - 1. It is undefined
// (ok=false) before any fiat was invested or when the price is unknown.
func ProfitFraction(summary model.AccumulationSummary, price *decimal.Decimal) (decimal.Decimal, bool) {
	if price == nil || !summary.CumulativeFiat.IsPositive() {
		return decimal.Zero, false
	}
	value := summary.CumulativeCrypto.Mul(*price)
	return value.DivRound(summary.CumulativeFiat, 8).Sub(decimal.NewFromInt(1)), true
}

// ProfitFiat is the unrealized gain in fiat units at price.
func ProfitFiat(summary model.AccumulationSummary, price *decimal.Decimal) (decimal.Decimal, bool) {
	if price == nil {
		return decimal.Zero, false
	}
	return summary.CumulativeCrypto.Mul(*price).Sub(summary.CumulativeFiat), true
}

// AverageCost is cumulativeFiat / cumulativeCrypto, or false before any crypto is held.
func AverageCost(summary model.AccumulationSummary) (decimal.Decimal, bool) {
	if !summary.CumulativeCrypto.IsPositive() {
		return decimal.Zero, false
	}
	return summary.CumulativeFiat.DivRound(summary.CumulativeCrypto, 8), true
}

func key(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
