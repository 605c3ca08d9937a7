package binance

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrentPrice returns the last trade price of crypto/fiat.
func (s *Spot) CurrentPrice(ctx context.Context, crypto, fiat string) (decimal.Decimal, error) {
	symbol := strings.ToUpper(strings.TrimSpace(crypto) + strings.TrimSpace(fiat))
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, classify("price", err)
	}
	for _, p := range prices {
		if p != nil && strings.EqualFold(p.Symbol, symbol) {
			return parseDecimal(p.Price), nil
		}
	}
	return decimal.Zero, fmt.Errorf("binance: no price for %s", symbol)
}

// KlineHighs returns the high of every candle of the given interval, oldest first.
func (s *Spot) KlineHighs(ctx context.Context, crypto, fiat, interval string, limit int) ([]float64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	symbol := strings.ToUpper(strings.TrimSpace(crypto) + strings.TrimSpace(fiat))
	kls, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classify("klines", err)
	}
	out := make([]float64, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, parseDecimal(kl.High).InexactFloat64())
	}
	return out, nil
}
