package config

import "strings"

// Config is the process configuration. Plans live in their own file (Plans.Path).
type Config struct {
	App       AppConfig       `toml:"app"`
	Store     StoreConfig     `toml:"store"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
	Exchanges ExchangesConfig `toml:"exchanges"`
	Market    MarketConfig    `toml:"market"`
	Plans     PlansConfig     `toml:"plans"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type StoreConfig struct {
	Path string `toml:"path"`
	// PureGo selects modernc.org/sqlite over the cgo driver.
	PureGo bool `toml:"pure_go"`
}

type SchedulerConfig struct {
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	RetryDelayMinutes   int  `toml:"retry_delay_minutes"`
	RunOnStart          bool `toml:"run_on_start"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	Retry    RetryConfig    `toml:"retry"`
}

type TelegramConfig struct {
	Enabled        bool   `toml:"enabled"`
	BotToken       string `toml:"bot_token"`
	ChatID         string `toml:"chat_id"`
	APIBase        string `toml:"api_base"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type RetryConfig struct {
	Attempts int `toml:"attempts"`
	DelayMS  int `toml:"delay_ms"`
}

type ExchangesConfig struct {
	Binance BinanceConfig `toml:"binance"`
	Paper   PaperConfig   `toml:"paper"`
}

type BinanceConfig struct {
	Enabled                bool              `toml:"enabled"`
	APIKey                 string            `toml:"api_key"`
	APISecret              string            `toml:"api_secret"`
	RESTBaseURL            string            `toml:"rest_base_url"`
	TimeoutSeconds         int               `toml:"timeout_seconds"`
	RequestsPerSecond      float64           `toml:"requests_per_second"`
	BreakerThreshold       int               `toml:"breaker_threshold"`
	BreakerCooldownSeconds int               `toml:"breaker_cooldown_seconds"`
	Proxy                  ProxyConfig       `toml:"proxy"`
	Networks               map[string]string `toml:"networks"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	p.RESTURL = strings.TrimSpace(p.RESTURL)
	if p.RESTURL == "" {
		p.Enabled = false
	}
}

// PaperConfig seeds the simulated exchange; amounts are decimal strings.
type PaperConfig struct {
	Enabled        bool              `toml:"enabled"`
	Balances       map[string]string `toml:"balances"`
	TakerFeeRate   string            `toml:"taker_fee_rate"`
	MinOrderFiat   string            `toml:"min_order_fiat"`
	WithdrawalFees map[string]string `toml:"withdrawal_fees"`
}

type MarketConfig struct {
	CacheTTLMinutes   int    `toml:"cache_ttl_minutes"`
	PriceTTLSeconds   int    `toml:"price_ttl_seconds"`
	FearGreedEndpoint string `toml:"fear_greed_endpoint"`
	// ATHSource is coingecko, klines or none.
	ATHSource        string            `toml:"ath_source"`
	CoinGeckoBaseURL string            `toml:"coingecko_base_url"`
	CoinIDs          map[string]string `toml:"coin_ids"`
	TimeoutSeconds   int               `toml:"timeout_seconds"`
}

type PlansConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
