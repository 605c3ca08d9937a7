package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stacker/internal/store"
	"stacker/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	// Registers the pure-Go "sqlite" driver used when Options.PureGo is set.
	_ "modernc.org/sqlite"
)

// maxCASAttempts bounds the optimistic retry loop of AddToAccumulation.
const maxCASAttempts = 8

// Options selects the database file and driver.
type Options struct {
	Path string
	// PureGo uses modernc.org/sqlite instead of the cgo mattn driver.
	PureGo bool
}

// Store implements store.Repository using Gorm + SQLite.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Repository = (*Store)(nil)

// New opens (and migrates) the SQLite database described by opts.
func New(opts Options) (*Store, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	if opts.PureGo {
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
	} else {
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewFromDB(db)
}

// NewFromDB wraps an existing gorm connection and migrates the schema.
func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	models := []interface{}{
		&model.AccumulationSummary{},
		&model.ExecutionRecord{},
		&model.WithdrawalRecord{},
		&model.ScheduleState{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: a couple of connections keep HTTP reads from queueing behind Tick writes.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db, now: time.Now}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------- Ledger -------------------------

func (s *Store) GetAccumulationSummary(ctx context.Context, asset string) (model.AccumulationSummary, error) {
	asset = normalizeAsset(asset)
	if asset == "" {
		return model.AccumulationSummary{}, fmt.Errorf("asset is required")
	}
	return s.getOrCreateSummary(s.db.WithContext(ctx), asset)
}

// getOrCreateSummary relies on INSERT ... ON CONFLICT DO NOTHING so concurrent
// first readers end up with exactly one zero row.
func (s *Store) getOrCreateSummary(db *gorm.DB, asset string) (model.AccumulationSummary, error) {
	now := s.now().UTC()
	zero := model.AccumulationSummary{
		Asset:            asset,
		CumulativeCrypto: decimal.Zero,
		CumulativeFiat:   decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&zero).Error; err != nil {
		return model.AccumulationSummary{}, err
	}
	var out model.AccumulationSummary
	if err := db.Where("asset = ?", asset).First(&out).Error; err != nil {
		return model.AccumulationSummary{}, err
	}
	return out, nil
}

func (s *Store) UpsertAccumulationSummary(ctx context.Context, summary model.AccumulationSummary) error {
	summary.Asset = normalizeAsset(summary.Asset)
	if summary.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	now := s.now().UTC()
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset"}},
			DoUpdates: clause.AssignmentColumns([]string{"cumulative_crypto", "cumulative_fiat", "buy_count", "updated_at"}),
		}).
		Create(&summary).Error
}

// AddToAccumulation is a compare-and-swap on buy_count: the update only lands
// if no other writer incremented the row since it was read.
func (s *Store) AddToAccumulation(ctx context.Context, asset string, fiat, crypto decimal.Decimal) (model.AccumulationSummary, error) {
	asset = normalizeAsset(asset)
	if asset == "" {
		return model.AccumulationSummary{}, fmt.Errorf("asset is required")
	}
	db := s.db.WithContext(ctx)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := s.getOrCreateSummary(db, asset)
		if err != nil {
			return model.AccumulationSummary{}, err
		}
		next := cur
		next.CumulativeFiat = cur.CumulativeFiat.Add(fiat)
		next.CumulativeCrypto = cur.CumulativeCrypto.Add(crypto)
		next.BuyCount = cur.BuyCount + 1
		next.UpdatedAt = s.now().UTC()
		res := db.Model(&model.AccumulationSummary{}).
			Where("asset = ? AND buy_count = ?", asset, cur.BuyCount).
			Updates(map[string]interface{}{
				"cumulative_fiat":   next.CumulativeFiat,
				"cumulative_crypto": next.CumulativeCrypto,
				"buy_count":         next.BuyCount,
				"updated_at":        next.UpdatedAt,
			})
		if res.Error != nil {
			return model.AccumulationSummary{}, res.Error
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
	}
	return model.AccumulationSummary{}, fmt.Errorf("add to accumulation %s: %w", asset, store.ErrConflict)
}

func (s *Store) ListAccumulationSummaries(ctx context.Context) ([]model.AccumulationSummary, error) {
	var out []model.AccumulationSummary
	if err := s.db.WithContext(ctx).Order("asset ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// --------------------- Executions -------------------------

func (s *Store) InsertExecutionRecord(ctx context.Context, rec *model.ExecutionRecord) error {
	if rec == nil {
		return fmt.Errorf("execution record is nil")
	}
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = s.now().UTC()
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) ListExecutionRecords(ctx context.Context, planID string, limit int) ([]model.ExecutionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("executed_at DESC").Limit(limit)
	if planID = strings.TrimSpace(planID); planID != "" {
		q = q.Where("plan_id = ?", planID)
	}
	var out []model.ExecutionRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) InsertWithdrawal(ctx context.Context, rec *model.WithdrawalRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("withdrawal record requires id")
	}
	now := s.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.WithdrawalPending
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) UpdateWithdrawalStatus(ctx context.Context, id string, status model.WithdrawalStatus, txID, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&model.WithdrawalRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"tx_id":      strings.TrimSpace(txID),
			"error":      strings.TrimSpace(errMsg),
			"updated_at": s.now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// --------------------- Schedule -------------------------

func (s *Store) GetScheduleState(ctx context.Context, planID string) (model.ScheduleState, error) {
	var st model.ScheduleState
	err := s.db.WithContext(ctx).Where("plan_id = ?", planID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ScheduleState{PlanID: planID}, nil
	}
	if err != nil {
		return model.ScheduleState{}, err
	}
	return st, nil
}

func (s *Store) GetNextExecutionTime(ctx context.Context, planID string) (*time.Time, error) {
	st, err := s.GetScheduleState(ctx, planID)
	if err != nil {
		return nil, err
	}
	return st.NextExecutionAt, nil
}

func (s *Store) SetNextExecutionTime(ctx context.Context, planID string, at time.Time) error {
	at = at.UTC()
	st := model.ScheduleState{PlanID: planID, NextExecutionAt: &at, UpdatedAt: s.now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"next_execution_at", "updated_at"}),
		}).
		Create(&st).Error
}

func (s *Store) MarkExecuted(ctx context.Context, planID string, at time.Time, outcome string) error {
	at = at.UTC()
	st := model.ScheduleState{PlanID: planID, LastExecutedAt: &at, LastOutcome: outcome, UpdatedAt: s.now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_executed_at", "last_outcome", "updated_at"}),
		}).
		Create(&st).Error
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
