package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperConfig seeds a simulated account.
type PaperConfig struct {
	Balances       map[string]decimal.Decimal
	TakerFeeRate   decimal.Decimal
	MinOrderFiat   decimal.Decimal
	WithdrawalFees map[string]decimal.Decimal
}

// Paper fills market buys instantly at the source price and keeps balances in memory.
// The taker fee is charged in the bought asset.
type Paper struct {
	prices PriceSource

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	feeRate  decimal.Decimal
	minOrder decimal.Decimal
	wdFees   map[string]decimal.Decimal
}

var _ Exchange = (*Paper)(nil)

func NewPaper(prices PriceSource, cfg PaperConfig) *Paper {
	p := &Paper{
		prices:   prices,
		balances: make(map[string]decimal.Decimal),
		feeRate:  cfg.TakerFeeRate,
		minOrder: cfg.MinOrderFiat,
		wdFees:   make(map[string]decimal.Decimal),
	}
	for k, v := range cfg.Balances {
		p.balances[asset(k)] = v
	}
	for k, v := range cfg.WithdrawalFees {
		p.wdFees[asset(k)] = v
	}
	return p
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) GetBalances(ctx context.Context, pair Pair) (Balances, error) {
	if err := ctx.Err(); err != nil {
		return Balances{}, &NetworkError{Exchange: p.Name(), Op: "balances", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Balances{Fiat: p.balances[asset(pair.Fiat)], Crypto: p.balances[asset(pair.Crypto)]}, nil
}

func (p *Paper) MarketBuy(ctx context.Context, pair Pair, fiatAmount decimal.Decimal) (OrderResult, error) {
	if !fiatAmount.IsPositive() {
		return OrderResult{}, &RejectedError{Exchange: p.Name(), Op: "market_buy", Message: "amount must be positive"}
	}
	if p.minOrder.IsPositive() && fiatAmount.LessThan(p.minOrder) {
		return OrderResult{}, &RejectedError{Exchange: p.Name(), Op: "market_buy", Code: "MIN_NOTIONAL",
			Message: fmt.Sprintf("order %s below minimum %s", fiatAmount, p.minOrder)}
	}
	if p.prices == nil {
		return OrderResult{}, &NetworkError{Exchange: p.Name(), Op: "market_buy", Err: fmt.Errorf("no price source")}
	}
	price, err := p.prices.CurrentPrice(ctx, pair.Crypto, pair.Fiat)
	if err != nil {
		return OrderResult{}, networkErr(p.Name(), "market_buy", err)
	}
	if !price.IsPositive() {
		return OrderResult{}, &NetworkError{Exchange: p.Name(), Op: "market_buy", Err: fmt.Errorf("invalid price %s", price)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fiatKey, cryptoKey := asset(pair.Fiat), asset(pair.Crypto)
	if p.balances[fiatKey].LessThan(fiatAmount) {
		return OrderResult{}, &RejectedError{Exchange: p.Name(), Op: "market_buy", Code: "INSUFFICIENT_BALANCE",
			Message: fmt.Sprintf("have %s %s, need %s", p.balances[fiatKey], fiatKey, fiatAmount)}
	}
	qty := fiatAmount.DivRound(price, 8)
	fee := qty.Mul(p.feeRate).Truncate(8)
	p.balances[fiatKey] = p.balances[fiatKey].Sub(fiatAmount)
	p.balances[cryptoKey] = p.balances[cryptoKey].Add(qty.Sub(fee))
	return OrderResult{
		OrderID:    uuid.NewString(),
		Status:     OrderFilled,
		FilledQty:  qty,
		QuoteSpent: fiatAmount,
		Fee:        fee,
		FeeAsset:   cryptoKey,
	}, nil
}

func (p *Paper) WithdrawalFeeQuote(_ context.Context, a string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fee, ok := p.wdFees[asset(a)]
	if !ok {
		return decimal.Zero, &RejectedError{Exchange: p.Name(), Op: "withdraw_fee", Message: "withdrawals not supported for " + asset(a)}
	}
	return fee, nil
}

func (p *Paper) Withdraw(_ context.Context, a string, amount decimal.Decimal, address string) (WithdrawalResult, error) {
	if strings.TrimSpace(address) == "" {
		return WithdrawalResult{}, &RejectedError{Exchange: p.Name(), Op: "withdraw", Message: "address is required"}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := asset(a)
	if !amount.IsPositive() || p.balances[key].LessThan(amount) {
		return WithdrawalResult{}, &RejectedError{Exchange: p.Name(), Op: "withdraw", Code: "INSUFFICIENT_BALANCE",
			Message: fmt.Sprintf("cannot withdraw %s %s from %s", amount, key, p.balances[key])}
	}
	p.balances[key] = p.balances[key].Sub(amount)
	id := uuid.NewString()
	return WithdrawalResult{ID: id, TxID: "paper-" + id, Status: WithdrawalCompleted}, nil
}

func asset(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
