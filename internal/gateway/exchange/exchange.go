package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Exchange is the trading capability a plan buys and withdraws through.
// Implementations return *NetworkError for transient failures and
// *RejectedError when the exchange refused the request.
type Exchange interface {
	Name() string

	GetBalances(ctx context.Context, pair Pair) (Balances, error)

	// MarketBuy spends fiatAmount of pair.Fiat on pair.Crypto at market.
	MarketBuy(ctx context.Context, pair Pair, fiatAmount decimal.Decimal) (OrderResult, error)

	// WithdrawalFeeQuote returns the network fee charged to withdraw asset, in units of asset.
	WithdrawalFeeQuote(ctx context.Context, asset string) (decimal.Decimal, error)

	Withdraw(ctx context.Context, asset string, amount decimal.Decimal, address string) (WithdrawalResult, error)
}

// PriceSource prices a pair; the paper exchange fills at this price.
type PriceSource interface {
	CurrentPrice(ctx context.Context, crypto, fiat string) (decimal.Decimal, error)
}
