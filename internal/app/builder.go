package app

import (
	"context"
	"fmt"
	"time"

	"stacker/internal/config"
	"stacker/internal/gateway"
	"stacker/internal/gateway/binance"
	"stacker/internal/ledger"
	"stacker/internal/logger"
	"stacker/internal/plan"
	"stacker/internal/runner"
	"stacker/internal/scheduler"
	"stacker/internal/store"
	"stacker/internal/store/gormstore"
	apihttp "stacker/internal/transport/http/api"
)

type AppBuilder struct {
	cfg *config.Config

	plansFn   func(string) (*plan.Registry, error)
	storeFn   func(config.StoreConfig) (store.Repository, error)
	binanceFn func(config.BinanceConfig) (*binance.Spot, error)
}

type AppBuilderOption func(*AppBuilder)

// WithStore replaces the SQLite store, e.g. with one shared by a test.
func WithStore(st store.Repository) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(config.StoreConfig) (store.Repository, error) { return st, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		plansFn:   plan.NewRegistry,
		storeFn:   openStore,
		binanceFn: gateway.NewBinanceFromConfig,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func openStore(cfg config.StoreConfig) (store.Repository, error) {
	return gormstore.New(gormstore.Options{Path: cfg.Path, PureGo: cfg.PureGo})
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	plans, err := b.plansFn(cfg.Plans.Path)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	logger.Infof("✓ loaded %d plan(s) from %s", len(plans.All()), cfg.Plans.Path)

	spot, err := b.binanceFn(cfg.Exchanges.Binance)
	if err != nil {
		return nil, fmt.Errorf("init binance client: %w", err)
	}
	mkt := gateway.NewMarketFromConfig(cfg.Market, spot)
	exchanges, err := gateway.NewExchangesFromConfig(cfg.Exchanges, spot, mkt)
	if err != nil {
		return nil, err
	}
	for _, p := range plans.All() {
		if _, ok := exchanges.Get(p.Exchange); !ok && p.Enabled {
			logger.Warnf("plan %s uses exchange %q which is not enabled", p.ID, p.Exchange)
		}
	}

	st, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = st.Close()
		}
	}()

	led := ledger.New(st)
	coord := scheduler.NewCoordinator(st, time.Duration(cfg.Scheduler.RetryDelayMinutes)*time.Minute)
	sender, plain := gateway.NewNotifierFromConfig(cfg.Notify)
	run, err := runner.New(runner.Options{
		Exchanges:     exchanges,
		Market:        mkt,
		Ledger:        led,
		Records:       st,
		Schedule:      coord,
		Notify:        sender,
		PlainMessages: plain,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, plans: plans, store: st, runner: run}
	a.loop = scheduler.NewLoop(time.Duration(cfg.Scheduler.PollIntervalSeconds)*time.Second,
		plans.EnabledIDs, coord.DueNow, a.tick)
	a.loop.RunImmediately = cfg.Scheduler.RunOnStart
	plans.OnChange(func(snap plan.Snapshot) {
		logger.Infof("plans reloaded: version=%d count=%d", snap.Version, len(snap.Plans))
		mkt.Invalidate()
	})

	if cfg.App.HTTPAddr != "" {
		router := apihttp.NewRouter(plans, coord, led, st, mkt)
		if a.http, err = apihttp.NewServer(cfg.App.HTTPAddr, router); err != nil {
			return nil, err
		}
	}

	a.Summary = newStartupSummary(cfg.App.Env, cfg.Store.Path, cfg.App.HTTPAddr, exchanges.Names(), plans.All())
	success = true
	return a, nil
}
