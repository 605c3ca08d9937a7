package app

import (
	"context"
	"errors"
	"fmt"

	"stacker/internal/config"
	"stacker/internal/logger"
	"stacker/internal/plan"
	"stacker/internal/runner"
	"stacker/internal/scheduler"
	"stacker/internal/store"
	apihttp "stacker/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App owns the long-running pieces: the schedule loop and the HTTP API.
type App struct {
	cfg     *config.Config
	plans   *plan.Registry
	store   store.Repository
	runner  *runner.Runner
	loop    *scheduler.Loop
	http    *apihttp.Server
	Summary *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg)
}

// Run blocks until ctx is cancelled or a component fails. In-flight purchases
// finish before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.loop == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.cfg.Plans.Watch {
		if err := a.plans.Watch(); err != nil {
			return fmt.Errorf("watch plans: %w", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.loop.Start(ctx)
	})
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunOnce ticks every due plan once and waits for the ticks to finish.
func (a *App) RunOnce(ctx context.Context) []string {
	defer a.close()
	started := a.loop.Poll(ctx)
	a.loop.Wait()
	return started
}

func (a *App) tick(ctx context.Context, planID string) {
	p, ok := a.plans.Plan(planID)
	if !ok || !p.Enabled {
		return
	}
	a.runner.Tick(ctx, p)
}

func (a *App) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logger.Warnf("close store: %v", err)
	}
	a.store = nil
}
