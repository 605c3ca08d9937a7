// Package market supplies the price, all-time-high and sentiment data used to size purchases.
package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Provider is the market data capability. A nil value with a nil error means
// the source has no data for the request.
type Provider interface {
	CurrentPrice(ctx context.Context, crypto, fiat string) (decimal.Decimal, error)
	AllTimeHigh(ctx context.Context, crypto, fiat string) (*decimal.Decimal, error)
	FearGreedIndex(ctx context.Context) (*int, error)
}

type PriceSource interface {
	CurrentPrice(ctx context.Context, crypto, fiat string) (decimal.Decimal, error)
}

type ATHSource interface {
	AllTimeHigh(ctx context.Context, crypto, fiat string) (*decimal.Decimal, error)
}

type FearGreedSource interface {
	Fetch(ctx context.Context) (FearGreedData, error)
}

// Sources combines independent backends into one Provider.
type Sources struct {
	Price     PriceSource
	ATH       ATHSource
	FearGreed FearGreedSource
}

var _ Provider = Sources{}

func (s Sources) CurrentPrice(ctx context.Context, crypto, fiat string) (decimal.Decimal, error) {
	if s.Price == nil {
		return decimal.Zero, fmt.Errorf("market: no price source configured")
	}
	return s.Price.CurrentPrice(ctx, crypto, fiat)
}

func (s Sources) AllTimeHigh(ctx context.Context, crypto, fiat string) (*decimal.Decimal, error) {
	if s.ATH == nil {
		return nil, nil
	}
	return s.ATH.AllTimeHigh(ctx, crypto, fiat)
}

func (s Sources) FearGreedIndex(ctx context.Context) (*int, error) {
	if s.FearGreed == nil {
		return nil, nil
	}
	data, err := s.FearGreed.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	v := data.Value
	return &v, nil
}
