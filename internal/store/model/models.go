package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Decimal columns are declared TEXT so SQLite keeps exact string values
// instead of coercing them to REAL.

// AccumulationSummary holds the running totals for one tracked asset.
type AccumulationSummary struct {
	Asset            string          `gorm:"column:asset;primaryKey" json:"asset"`
	CumulativeCrypto decimal.Decimal `gorm:"column:cumulative_crypto;type:TEXT;not null" json:"cumulative_crypto"`
	CumulativeFiat   decimal.Decimal `gorm:"column:cumulative_fiat;type:TEXT;not null" json:"cumulative_fiat"`
	BuyCount         int64           `gorm:"column:buy_count;not null;default:0" json:"buy_count"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (AccumulationSummary) TableName() string { return "accumulation_summaries" }

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPartial   ExecutionStatus = "partial"
)

// ExecutionRecord is the immutable history entry of one Tick that reached order placement.
type ExecutionRecord struct {
	ID             string          `gorm:"column:id;primaryKey" json:"id"`
	PlanID         string          `gorm:"column:plan_id;index:idx_exec_plan_time,priority:1" json:"plan_id"`
	Exchange       string          `gorm:"column:exchange" json:"exchange"`
	Crypto         string          `gorm:"column:crypto" json:"crypto"`
	Fiat           string          `gorm:"column:fiat" json:"fiat"`
	FiatSpent      decimal.Decimal `gorm:"column:fiat_spent;type:TEXT" json:"fiat_spent"`
	CryptoReceived decimal.Decimal `gorm:"column:crypto_received;type:TEXT" json:"crypto_received"`
	Price          decimal.Decimal `gorm:"column:price;type:TEXT" json:"price"`
	FeeAmount      decimal.Decimal `gorm:"column:fee_amount;type:TEXT" json:"fee_amount"`
	FeeAsset       string          `gorm:"column:fee_asset" json:"fee_asset,omitempty"`
	Status         ExecutionStatus `gorm:"column:status" json:"status"`
	OrderID        string          `gorm:"column:order_id" json:"order_id,omitempty"`
	Error          string          `gorm:"column:error" json:"error,omitempty"`
	Detail         datatypes.JSON  `gorm:"column:detail;type:TEXT" json:"detail,omitempty"`
	ExecutedAt     time.Time       `gorm:"column:executed_at;index:idx_exec_plan_time,priority:2" json:"executed_at"`
}

func (ExecutionRecord) TableName() string { return "execution_records" }

// Validate enforces the per-status invariants before a record is written.
func (r ExecutionRecord) Validate() error {
	if r.ID == "" || r.PlanID == "" {
		return fmt.Errorf("execution record requires id and plan_id")
	}
	switch r.Status {
	case ExecutionCompleted, ExecutionPartial:
		if !r.CryptoReceived.IsPositive() {
			return fmt.Errorf("%s execution %s must have positive crypto amount", r.Status, r.ID)
		}
		if r.FeeAmount.IsNegative() {
			return fmt.Errorf("%s execution %s has negative fee", r.Status, r.ID)
		}
	case ExecutionFailed:
		if !r.CryptoReceived.IsZero() {
			return fmt.Errorf("failed execution %s must have zero crypto amount", r.ID)
		}
	case ExecutionPending:
	default:
		return fmt.Errorf("execution %s has unknown status %q", r.ID, r.Status)
	}
	return nil
}

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// WithdrawalRecord tracks one withdrawal call; unlike executions its status is updated in place.
type WithdrawalRecord struct {
	ID          string           `gorm:"column:id;primaryKey" json:"id"`
	PlanID      string           `gorm:"column:plan_id;index" json:"plan_id"`
	ExecutionID string           `gorm:"column:execution_id;index" json:"execution_id"`
	Asset       string           `gorm:"column:asset" json:"asset"`
	Amount      decimal.Decimal  `gorm:"column:amount;type:TEXT" json:"amount"`
	Fee         decimal.Decimal  `gorm:"column:fee;type:TEXT" json:"fee"`
	Address     string           `gorm:"column:address" json:"address"`
	Status      WithdrawalStatus `gorm:"column:status" json:"status"`
	TxID        string           `gorm:"column:tx_id" json:"tx_id,omitempty"`
	Error       string           `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (WithdrawalRecord) TableName() string { return "withdrawal_records" }

// ScheduleState is the per-plan schedule; NextExecutionAt is nil until first computed.
type ScheduleState struct {
	PlanID          string     `gorm:"column:plan_id;primaryKey" json:"plan_id"`
	LastExecutedAt  *time.Time `gorm:"column:last_executed_at" json:"last_executed_at,omitempty"`
	NextExecutionAt *time.Time `gorm:"column:next_execution_at" json:"next_execution_at,omitempty"`
	LastOutcome     string     `gorm:"column:last_outcome" json:"last_outcome,omitempty"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (ScheduleState) TableName() string { return "schedule_states" }
