package runner

import (
	"time"

	"stacker/internal/gateway/notifier"
	"stacker/internal/policy"
	"stacker/internal/store/model"
	"stacker/internal/strategy"

	"github.com/shopspring/decimal"
)

// State is the step a Tick is in.
type State int

const (
	Idle State = iota
	FetchingBalance
	Sizing
	Gating
	Buying
	Settling
	WithdrawalCheck
	Persisting
	Notifying
)

func (s State) String() string {
	switch s {
	case FetchingBalance:
		return "fetching_balance"
	case Sizing:
		return "sizing"
	case Gating:
		return "gating"
	case Buying:
		return "buying"
	case Settling:
		return "settling"
	case WithdrawalCheck:
		return "withdrawal_check"
	case Persisting:
		return "persisting"
	case Notifying:
		return "notifying"
	default:
		return "idle"
	}
}

// Status is the terminal classification of a Tick.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	// StatusPending: the order was accepted but no crypto had settled when balances were re-read.
	StatusPending Status = "pending"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	// StatusPersistFailed: the order went through but the ledger, execution record
	// or withdrawal record could not be written. Stored totals may be behind the exchange.
	StatusPersistFailed Status = "persist_failed"
	// StatusRetry: a transient failure before an order was placed; retried after the retry delay.
	StatusRetry Status = "retry"
	// StatusAborted: cancelled before Buying; nothing was changed.
	StatusAborted Status = "aborted"
)

// Outcome describes what one Tick did.
type Outcome struct {
	PlanID string
	TickID string
	Status Status
	// State is the last step entered before the Tick ended.
	State State

	Sizing     strategy.Result
	Planned    decimal.Decimal
	Gate       policy.GateDecision
	Record     *model.ExecutionRecord
	Withdrawal *policy.WithdrawalDecision
	// WithdrawalRecord is set when a withdrawal was attempted.
	WithdrawalRecord *model.WithdrawalRecord
	Summary          *model.AccumulationSummary

	NextExecutionAt time.Time
	Severity        notifier.Severity
	Message         string
	Notified        bool
	Err             error
}
