package config

import (
	"strings"
)

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9991"
	defaultStorePath         = "data/stacker.db"
	defaultPollSeconds       = 30
	defaultRetryMinutes      = 5
	defaultTelegramAPI       = "https://api.telegram.org"
	defaultTelegramTimeout   = 15
	defaultRetryAttempts     = 3
	defaultRetryDelayMS      = 300
	defaultBinanceREST       = "https://api.binance.com"
	defaultBinanceTimeout    = 15
	defaultBinanceRPS        = 5
	defaultBreakerThreshold  = 5
	defaultBreakerCooldown   = 60
	defaultPaperFeeRate      = "0.001"
	defaultCacheTTLMinutes   = 60
	defaultPriceTTLSeconds   = 60
	defaultFearGreedEndpoint = "https://api.alternative.me/fng/?limit=5"
	defaultATHSource         = "coingecko"
	defaultCoinGeckoBase     = "https://api.coingecko.com/api/v3"
	defaultMarketTimeout     = 10
	defaultPlansPath         = "configs/plans.yaml"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
	c.Exchanges.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Plans.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		boolFieldDefault("store.pure_go", &s.PureGo, true),
	)
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("scheduler.poll_interval_seconds", &s.PollIntervalSeconds, defaultPollSeconds),
		intFieldDefault("scheduler.retry_delay_minutes", &s.RetryDelayMinutes, defaultRetryMinutes),
	)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("notify.telegram.api_base", &n.Telegram.APIBase, defaultTelegramAPI),
		intFieldDefault("notify.telegram.timeout_seconds", &n.Telegram.TimeoutSeconds, defaultTelegramTimeout),
		intFieldDefault("notify.retry.attempts", &n.Retry.Attempts, defaultRetryAttempts),
		fieldDefault{
			key:   "notify.retry.delay_ms",
			apply: func() { n.Retry.DelayMS = defaultRetryDelayMS },
		},
	)
	n.Telegram.BotToken = strings.TrimSpace(n.Telegram.BotToken)
	n.Telegram.ChatID = strings.TrimSpace(n.Telegram.ChatID)
}

func (e *ExchangesConfig) applyDefaults(keys keySet) {
	b := &e.Binance
	applyFieldDefaults(keys,
		stringFieldDefault("exchanges.binance.rest_base_url", &b.RESTBaseURL, defaultBinanceREST),
		intFieldDefault("exchanges.binance.timeout_seconds", &b.TimeoutSeconds, defaultBinanceTimeout),
		fieldDefault{
			key:   "exchanges.binance.requests_per_second",
			need:  func() bool { return b.RequestsPerSecond <= 0 },
			apply: func() { b.RequestsPerSecond = defaultBinanceRPS },
		},
		intFieldDefault("exchanges.binance.breaker_threshold", &b.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("exchanges.binance.breaker_cooldown_seconds", &b.BreakerCooldownSeconds, defaultBreakerCooldown),
		boolFieldDefault("exchanges.paper.enabled", &e.Paper.Enabled, true),
		stringFieldDefault("exchanges.paper.taker_fee_rate", &e.Paper.TakerFeeRate, defaultPaperFeeRate),
	)
	b.Proxy.normalize()
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("market.cache_ttl_minutes", &m.CacheTTLMinutes, defaultCacheTTLMinutes),
		intFieldDefault("market.price_ttl_seconds", &m.PriceTTLSeconds, defaultPriceTTLSeconds),
		stringFieldDefault("market.fear_greed_endpoint", &m.FearGreedEndpoint, defaultFearGreedEndpoint),
		stringFieldDefault("market.ath_source", &m.ATHSource, defaultATHSource),
		stringFieldDefault("market.coingecko_base_url", &m.CoinGeckoBaseURL, defaultCoinGeckoBase),
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeout),
	)
	m.ATHSource = strings.ToLower(strings.TrimSpace(m.ATHSource))
}

func (p *PlansConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("plans.path", &p.Path, defaultPlansPath),
		boolFieldDefault("plans.watch", &p.Watch, true),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

// boolFieldDefault applies def only when the key is absent from every config file.
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}
