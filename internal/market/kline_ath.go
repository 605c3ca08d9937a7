package market

import (
	"context"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// HighsFetcher returns candle highs, oldest first.
type HighsFetcher interface {
	KlineHighs(ctx context.Context, crypto, fiat, interval string, limit int) ([]float64, error)
}

// KlineATH derives the all-time high from the maximum monthly candle high.
// It only sees the history the exchange lists for the pair.
type KlineATH struct {
	Highs    HighsFetcher
	Interval string
	Limit    int
}

func NewKlineATH(h HighsFetcher) *KlineATH {
	return &KlineATH{Highs: h, Interval: "1M", Limit: 1000}
}

func (k *KlineATH) AllTimeHigh(ctx context.Context, crypto, fiat string) (*decimal.Decimal, error) {
	highs, err := k.Highs.KlineHighs(ctx, crypto, fiat, k.Interval, k.Limit)
	if err != nil {
		return nil, err
	}
	if len(highs) == 0 {
		return nil, nil
	}
	var maxHigh float64
	if len(highs) == 1 {
		maxHigh = highs[0]
	} else {
		series := talib.Max(highs, len(highs))
		maxHigh = series[len(series)-1]
	}
	if maxHigh <= 0 {
		return nil, nil
	}
	v := decimal.NewFromFloat(maxHigh)
	return &v, nil
}
