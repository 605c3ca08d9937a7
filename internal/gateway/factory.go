// Package gateway builds the outbound adapters named in the process config.
package gateway

import (
	"fmt"
	"strings"
	"time"

	"stacker/internal/config"
	"stacker/internal/gateway/binance"
	"stacker/internal/gateway/exchange"
	"stacker/internal/gateway/notifier"
	"stacker/internal/logger"
	"stacker/internal/market"
	"stacker/internal/pkg/money"

	"github.com/shopspring/decimal"
)

// NewBinanceFromConfig returns the Binance spot client. Without credentials it can
// still serve public market data, which is how the paper exchange prices fills.
func NewBinanceFromConfig(cfg config.BinanceConfig) (*binance.Spot, error) {
	return binance.New(binance.Config{
		APIKey:       cfg.APIKey,
		APISecret:    cfg.APISecret,
		RESTBaseURL:  cfg.RESTBaseURL,
		HTTPTimeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		ProxyEnabled: cfg.Proxy.Enabled,
		RESTProxyURL: cfg.Proxy.RESTURL,
		Networks:     cfg.Networks,
	})
}

// NewExchangesFromConfig registers every enabled exchange. Live exchanges are
// wrapped in a Guard; the paper exchange is not.
func NewExchangesFromConfig(cfg config.ExchangesConfig, spot *binance.Spot, prices exchange.PriceSource) (exchange.Registry, error) {
	reg := exchange.Registry{}
	if cfg.Binance.Enabled {
		if spot == nil {
			return nil, fmt.Errorf("binance enabled without a client")
		}
		if cfg.Binance.APIKey == "" || cfg.Binance.APISecret == "" {
			return nil, fmt.Errorf("binance enabled but api_key/api_secret are empty")
		}
		reg[spot.Name()] = exchange.NewGuard(spot, exchange.GuardConfig{
			RequestsPerSecond: cfg.Binance.RequestsPerSecond,
			BreakerThreshold:  cfg.Binance.BreakerThreshold,
			BreakerCooldown:   time.Duration(cfg.Binance.BreakerCooldownSeconds) * time.Second,
		})
	}
	if cfg.Paper.Enabled {
		paperCfg, err := paperConfig(cfg.Paper)
		if err != nil {
			return nil, err
		}
		paper := exchange.NewPaper(prices, paperCfg)
		reg[paper.Name()] = paper
	}
	if len(reg) == 0 {
		return nil, fmt.Errorf("no exchange enabled")
	}
	logger.Infof("✓ exchanges: %s", strings.Join(reg.Names(), ", "))
	return reg, nil
}

func paperConfig(cfg config.PaperConfig) (exchange.PaperConfig, error) {
	out := exchange.PaperConfig{
		TakerFeeRate: money.ParseOrZero(cfg.TakerFeeRate),
		MinOrderFiat: money.ParseOrZero(cfg.MinOrderFiat),
	}
	var err error
	if out.Balances, err = decimalMap(cfg.Balances); err != nil {
		return out, fmt.Errorf("exchanges.paper.balances: %w", err)
	}
	if out.WithdrawalFees, err = decimalMap(cfg.WithdrawalFees); err != nil {
		return out, fmt.Errorf("exchanges.paper.withdrawal_fees: %w", err)
	}
	return out, nil
}

func decimalMap(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for asset, v := range raw {
		d, err := money.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", asset, err)
		}
		out[strings.ToUpper(strings.TrimSpace(asset))] = d
	}
	return out, nil
}

// NewMarketFromConfig combines the price, all-time-high and sentiment sources behind a cache.
func NewMarketFromConfig(cfg config.MarketConfig, spot *binance.Spot) *market.CachedProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	src := market.Sources{
		Price:     spot,
		FearGreed: market.NewFearGreedService(cfg.FearGreedEndpoint, timeout),
	}
	switch strings.ToLower(strings.TrimSpace(cfg.ATHSource)) {
	case "coingecko":
		src.ATH = market.NewCoinGecko(cfg.CoinGeckoBaseURL, cfg.CoinIDs, timeout)
	case "klines":
		src.ATH = market.NewKlineATH(spot)
	default:
		logger.Infof("market: no ATH source, ath plans fall back to classic sizing")
	}
	return market.NewCachedProvider(src,
		time.Duration(cfg.CacheTTLMinutes)*time.Minute,
		time.Duration(cfg.PriceTTLSeconds)*time.Second)
}

// NewNotifierFromConfig returns the retrying sender and whether messages should be
// rendered as plain text.
func NewNotifierFromConfig(cfg config.NotifyConfig) (*notifier.Retrier, bool) {
	retry := time.Duration(cfg.Retry.DelayMS) * time.Millisecond
	if !cfg.Telegram.Enabled {
		logger.Infof("notify: telegram disabled, notifications go to the log")
		return notifier.NewRetrier(notifier.LogNotifier{}, cfg.Retry.Attempts, retry), true
	}
	tg := notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		time.Duration(cfg.Telegram.TimeoutSeconds)*time.Second)
	if base := strings.TrimSpace(cfg.Telegram.APIBase); base != "" {
		tg.APIBase = base
	}
	return notifier.NewRetrier(tg, cfg.Retry.Attempts, retry), false
}
