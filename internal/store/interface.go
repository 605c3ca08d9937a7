package store

import (
	"context"
	"errors"
	"time"

	"stacker/internal/store/model"

	"github.com/shopspring/decimal"
)

// ErrConflict is returned when an optimistic update keeps losing to concurrent writers.
var ErrConflict = errors.New("store: concurrent update conflict")

// LedgerRepository persists accumulation summaries.
type LedgerRepository interface {
	// GetAccumulationSummary returns the summary for asset, creating a zero row if absent.
	GetAccumulationSummary(ctx context.Context, asset string) (model.AccumulationSummary, error)
	UpsertAccumulationSummary(ctx context.Context, summary model.AccumulationSummary) error
	// AddToAccumulation atomically adds the deltas and increments the buy count.
	AddToAccumulation(ctx context.Context, asset string, fiat, crypto decimal.Decimal) (model.AccumulationSummary, error)
	ListAccumulationSummaries(ctx context.Context) ([]model.AccumulationSummary, error)
}

// ExecutionRepository persists execution history and withdrawals.
type ExecutionRepository interface {
	InsertExecutionRecord(ctx context.Context, rec *model.ExecutionRecord) error
	ListExecutionRecords(ctx context.Context, planID string, limit int) ([]model.ExecutionRecord, error)
	InsertWithdrawal(ctx context.Context, rec *model.WithdrawalRecord) error
	UpdateWithdrawalStatus(ctx context.Context, id string, status model.WithdrawalStatus, txID, errMsg string) error
}

// ScheduleRepository persists per-plan schedule state.
type ScheduleRepository interface {
	GetNextExecutionTime(ctx context.Context, planID string) (*time.Time, error)
	SetNextExecutionTime(ctx context.Context, planID string, at time.Time) error
	GetScheduleState(ctx context.Context, planID string) (model.ScheduleState, error)
	MarkExecuted(ctx context.Context, planID string, at time.Time, outcome string) error
}

// Repository is the full storage capability used by the engine.
type Repository interface {
	LedgerRepository
	ExecutionRepository
	ScheduleRepository
	Close() error
}
