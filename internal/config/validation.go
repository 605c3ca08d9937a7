package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Exchanges.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Plans.Path) == "" {
		return fmt.Errorf("plans.path cannot be empty")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if s.PollIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.poll_interval_seconds must be > 0")
	}
	if s.RetryDelayMinutes <= 0 {
		return fmt.Errorf("scheduler.retry_delay_minutes must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if n.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
	}
	if n.Retry.Attempts <= 0 {
		return fmt.Errorf("notify.retry.attempts must be > 0")
	}
	if n.Retry.DelayMS < 0 {
		return fmt.Errorf("notify.retry.delay_ms must be >= 0")
	}
	return nil
}

func (e *ExchangesConfig) validate() error {
	if !e.Binance.Enabled && !e.Paper.Enabled {
		return fmt.Errorf("exchanges: at least one of binance, paper must be enabled")
	}
	if e.Binance.Enabled {
		if strings.TrimSpace(e.Binance.APIKey) == "" || strings.TrimSpace(e.Binance.APISecret) == "" {
			return fmt.Errorf("exchanges.binance.api_key and api_secret are required when binance is enabled")
		}
	}
	if e.Paper.Enabled {
		for asset, raw := range e.Paper.Balances {
			if err := nonNegativeDecimal("exchanges.paper.balances."+asset, raw); err != nil {
				return err
			}
		}
		for asset, raw := range e.Paper.WithdrawalFees {
			if err := nonNegativeDecimal("exchanges.paper.withdrawal_fees."+asset, raw); err != nil {
				return err
			}
		}
		if err := nonNegativeDecimal("exchanges.paper.taker_fee_rate", e.Paper.TakerFeeRate); err != nil {
			return err
		}
		if strings.TrimSpace(e.Paper.MinOrderFiat) != "" {
			if err := nonNegativeDecimal("exchanges.paper.min_order_fiat", e.Paper.MinOrderFiat); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.ATHSource {
	case "coingecko", "klines", "none":
	default:
		return fmt.Errorf("market.ath_source must be coingecko, klines or none (got %q)", m.ATHSource)
	}
	if m.CacheTTLMinutes <= 0 {
		return fmt.Errorf("market.cache_ttl_minutes must be > 0")
	}
	return nil
}

func nonNegativeDecimal(key, raw string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: invalid decimal %q", key, raw)
	}
	if d.IsNegative() {
		return fmt.Errorf("%s must be >= 0", key)
	}
	return nil
}
