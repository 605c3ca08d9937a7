package scheduler

import (
	"context"
	"sync"
	"time"

	"stacker/internal/logger"
)

// Loop polls plan schedules and starts one Tick per due plan.
// A plan whose previous Tick is still running is never dispatched again.
type Loop struct {
	Interval       time.Duration
	RunImmediately bool

	// Plans lists the ids of enabled plans.
	Plans func() []string
	// Due reports whether planID should run at now.
	Due func(ctx context.Context, planID string, now time.Time) (bool, error)
	// Run executes one Tick; it must advance the plan's schedule before returning.
	Run func(ctx context.Context, planID string)

	nowFn func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

func NewLoop(interval time.Duration, plans func() []string, due func(context.Context, string, time.Time) (bool, error), run func(context.Context, string)) *Loop {
	return &Loop{
		Interval: interval,
		Plans:    plans,
		Due:      due,
		Run:      run,
		nowFn:    time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// Start blocks until ctx is done, then waits for in-flight Ticks.
func (l *Loop) Start(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.Interval <= 0 {
		logger.Warnf("Scheduler: invalid poll interval=%s, using 30s", l.Interval)
		l.Interval = 30 * time.Second
	}
	if l.nowFn == nil {
		l.nowFn = time.Now
	}
	logger.Infof("Scheduler: started poll=%s run_immediately=%v at=%s",
		l.Interval, l.RunImmediately, l.nowFn().UTC().Format(time.RFC3339))

	if l.RunImmediately {
		l.Poll(ctx)
	}
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("Scheduler: ctx done, waiting for %d in-flight tick(s)", l.InFlight())
			l.wg.Wait()
			logger.Infof("Scheduler: exit")
			return nil
		case <-ticker.C:
			l.Poll(ctx)
		}
	}
}

// Poll checks every plan once and dispatches the due ones. It returns the ids started.
func (l *Loop) Poll(ctx context.Context) []string {
	if l.Plans == nil || l.Due == nil || l.Run == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	now := l.nowFn()
	var started []string
	for _, id := range l.Plans() {
		if l.isInFlight(id) {
			continue
		}
		due, err := l.Due(ctx, id, now)
		if err != nil {
			logger.Warnf("Scheduler: due check plan=%s failed: %v", id, err)
			continue
		}
		if !due || !l.claim(id) {
			continue
		}
		started = append(started, id)
		l.wg.Add(1)
		go func(planID string) {
			defer l.wg.Done()
			defer l.release(planID)
			l.Run(ctx, planID)
		}(id)
	}
	return started
}

// Wait blocks until every dispatched Tick has returned.
func (l *Loop) Wait() { l.wg.Wait() }

func (l *Loop) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inFlight)
}

func (l *Loop) isInFlight(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inFlight[id]
	return ok
}

func (l *Loop) claim(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight == nil {
		l.inFlight = make(map[string]struct{})
	}
	if _, ok := l.inFlight[id]; ok {
		return false
	}
	l.inFlight[id] = struct{}{}
	return true
}

func (l *Loop) release(id string) {
	l.mu.Lock()
	delete(l.inFlight, id)
	l.mu.Unlock()
}
