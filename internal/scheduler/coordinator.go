package scheduler

import (
	"context"
	"fmt"
	"time"

	"stacker/internal/store"
	"stacker/internal/store/model"
)

// DefaultRetryDelay is how far a plan is pushed back after a retryable failure.
const DefaultRetryDelay = 5 * time.Minute

// Coordinator owns the persisted next-execution time of every plan.
type Coordinator struct {
	repo       store.ScheduleRepository
	retryDelay time.Duration
}

func NewCoordinator(repo store.ScheduleRepository, retryDelay time.Duration) *Coordinator {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Coordinator{repo: repo, retryDelay: retryDelay}
}

func (c *Coordinator) RetryDelay() time.Duration { return c.retryDelay }

// DueNow reports whether the plan has no next time yet or it is at or before now.
func (c *Coordinator) DueNow(ctx context.Context, planID string, now time.Time) (bool, error) {
	next, err := c.repo.GetNextExecutionTime(ctx, planID)
	if err != nil {
		return false, fmt.Errorf("schedule %s: %w", planID, err)
	}
	return next == nil || !next.After(now), nil
}

// Advance stores sched.Next(now) as the plan's next execution time.
func (c *Coordinator) Advance(ctx context.Context, planID string, sched Schedule, now time.Time) (time.Time, error) {
	if sched == nil {
		return time.Time{}, fmt.Errorf("schedule %s: nil schedule", planID)
	}
	next := sched.Next(now)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %s: %s has no future activation", planID, sched)
	}
	if err := c.repo.SetNextExecutionTime(ctx, planID, next); err != nil {
		return time.Time{}, fmt.Errorf("schedule %s: %w", planID, err)
	}
	return next, nil
}

// AdvanceRetry pushes the plan back by the retry delay.
func (c *Coordinator) AdvanceRetry(ctx context.Context, planID string, now time.Time) (time.Time, error) {
	next := now.Add(c.retryDelay)
	if err := c.repo.SetNextExecutionTime(ctx, planID, next); err != nil {
		return time.Time{}, fmt.Errorf("schedule %s: %w", planID, err)
	}
	return next, nil
}

// MarkLastExecuted records when a Tick finished and how.
func (c *Coordinator) MarkLastExecuted(ctx context.Context, planID string, at time.Time, outcome string) error {
	return c.repo.MarkExecuted(ctx, planID, at, outcome)
}

// TriggerNow makes the plan due immediately.
func (c *Coordinator) TriggerNow(ctx context.Context, planID string, now time.Time) error {
	return c.repo.SetNextExecutionTime(ctx, planID, now)
}

func (c *Coordinator) State(ctx context.Context, planID string) (model.ScheduleState, error) {
	return c.repo.GetScheduleState(ctx, planID)
}
