package exchange

import (
	"context"
	"errors"
	"time"

	"stacker/internal/logger"
	"stacker/internal/pkg/circuit"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// GuardConfig tunes the client-side protections around an Exchange.
type GuardConfig struct {
	RequestsPerSecond float64
	Burst             int
	BreakerThreshold  int
	BreakerCooldown   time.Duration
}

// Guard rate-limits calls and stops hammering an exchange that keeps failing.
// Only network errors trip the breaker; rejections are valid answers.
type Guard struct {
	inner   Exchange
	limiter *rate.Limiter
	breaker *circuit.CircuitBreaker
}

var _ Exchange = (*Guard)(nil)

func NewGuard(inner Exchange, cfg GuardConfig) *Guard {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	breaker := circuit.NewCircuitBreaker(inner.Name(), cfg.BreakerThreshold, cfg.BreakerCooldown)
	breaker.SetStateChangeHandler(func(name string, from, to circuit.State) {
		logger.Warnf("exchange %s breaker %s -> %s", name, from, to)
	})
	return &Guard{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker,
	}
}

func (g *Guard) Name() string { return g.inner.Name() }

func (g *Guard) Breaker() *circuit.CircuitBreaker { return g.breaker }

func (g *Guard) call(ctx context.Context, op string, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &NetworkError{Exchange: g.Name(), Op: op, Err: err}
	}
	err := g.breaker.Do(fn, IsRetryable)
	if errors.Is(err, circuit.ErrOpen) {
		return &NetworkError{Exchange: g.Name(), Op: op, Err: err}
	}
	return err
}

func (g *Guard) GetBalances(ctx context.Context, pair Pair) (Balances, error) {
	var out Balances
	err := g.call(ctx, "balances", func() (err error) {
		out, err = g.inner.GetBalances(ctx, pair)
		return err
	})
	return out, err
}

func (g *Guard) MarketBuy(ctx context.Context, pair Pair, fiatAmount decimal.Decimal) (OrderResult, error) {
	var out OrderResult
	err := g.call(ctx, "market_buy", func() (err error) {
		out, err = g.inner.MarketBuy(ctx, pair, fiatAmount)
		return err
	})
	return out, err
}

func (g *Guard) WithdrawalFeeQuote(ctx context.Context, asset string) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := g.call(ctx, "withdraw_fee", func() (err error) {
		out, err = g.inner.WithdrawalFeeQuote(ctx, asset)
		return err
	})
	return out, err
}

func (g *Guard) Withdraw(ctx context.Context, asset string, amount decimal.Decimal, address string) (WithdrawalResult, error) {
	var out WithdrawalResult
	err := g.call(ctx, "withdraw", func() (err error) {
		out, err = g.inner.Withdraw(ctx, asset, amount, address)
		return err
	})
	return out, err
}
