// Package runner executes one scheduled purchase for a plan.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stacker/internal/gateway/exchange"
	"stacker/internal/gateway/notifier"
	"stacker/internal/logger"
	"stacker/internal/market"
	"stacker/internal/plan"
	"stacker/internal/pkg/money"
	"stacker/internal/pkg/text"
	"stacker/internal/policy"
	"stacker/internal/scheduler"
	"stacker/internal/store"
	"stacker/internal/store/model"
	"stacker/internal/strategy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const maxErrorLen = 500

// Ledger accumulates settled buys per asset.
type Ledger interface {
	Summary(ctx context.Context, asset string) (model.AccumulationSummary, error)
	ApplyBuy(ctx context.Context, asset string, fiatSpent, cryptoReceived decimal.Decimal) (model.AccumulationSummary, error)
}

// Schedule moves a plan's next execution time.
type Schedule interface {
	Advance(ctx context.Context, planID string, sched scheduler.Schedule, now time.Time) (time.Time, error)
	AdvanceRetry(ctx context.Context, planID string, now time.Time) (time.Time, error)
	MarkLastExecuted(ctx context.Context, planID string, at time.Time, outcome string) error
}

// Sender delivers a rendered message. notifier.Retrier is the production Sender.
type Sender interface {
	Send(ctx context.Context, destination, text string, severity notifier.Severity) bool
}

type Options struct {
	Exchanges exchange.Registry
	Market    market.Provider
	Ledger    Ledger
	Records   store.ExecutionRepository
	Schedule  Schedule
	Notify    Sender
	// PlainMessages renders notifications without Markdown, for the log notifier.
	PlainMessages bool
}

type Runner struct {
	exchanges exchange.Registry
	market    market.Provider
	ledger    Ledger
	records   store.ExecutionRepository
	schedule  Schedule
	notify    Sender
	plain     bool

	nowFn func() time.Time
	newID func() string
}

func New(opts Options) (*Runner, error) {
	switch {
	case len(opts.Exchanges) == 0:
		return nil, fmt.Errorf("runner: no exchanges configured")
	case opts.Market == nil:
		return nil, fmt.Errorf("runner: market provider is required")
	case opts.Ledger == nil:
		return nil, fmt.Errorf("runner: ledger is required")
	case opts.Records == nil:
		return nil, fmt.Errorf("runner: execution repository is required")
	case opts.Schedule == nil:
		return nil, fmt.Errorf("runner: schedule coordinator is required")
	case opts.Notify == nil:
		return nil, fmt.Errorf("runner: notifier is required")
	}
	return &Runner{
		exchanges: opts.Exchanges,
		market:    opts.Market,
		ledger:    opts.Ledger,
		records:   opts.Records,
		schedule:  opts.Schedule,
		notify:    opts.Notify,
		plain:     opts.PlainMessages,
		nowFn:     time.Now,
		newID:     uuid.NewString,
	}, nil
}

// tick carries the working state of one Tick.
type tick struct {
	out   Outcome
	plan  plan.Plan
	pair  exchange.Pair
	sched scheduler.Schedule
	ex    exchange.Exchange
	log   *slog.Logger
	price *decimal.Decimal

	recordID    string
	pre         exchange.Balances
	post        *exchange.Balances
	order       exchange.OrderResult
	fiatSpent   decimal.Decimal
	cryptoGot   decimal.Decimal
	withdrawErr error
	persistErr  error
}

// Tick runs one purchase attempt for p and always returns an Outcome.
// Cancelling ctx before the order is placed aborts without side effects;
// once the order is placed the Tick runs to completion.
func (r *Runner) Tick(ctx context.Context, p plan.Plan) Outcome {
	t := &tick{plan: p.Clone().Normalize()}
	t.pair = t.plan.Pair()
	t.out = Outcome{PlanID: t.plan.ID, TickID: r.newID(), State: Idle}
	t.log = logger.With("plan", t.plan.ID, "tick", t.out.TickID)

	if err := r.prepare(t); err != nil {
		return r.finish(ctx, t, StatusFailed, err)
	}
	if ctx.Err() != nil {
		return r.abort(t, ctx.Err())
	}

	t.out.State = FetchingBalance
	pre, err := t.ex.GetBalances(ctx, t.pair)
	if err != nil {
		if ctx.Err() != nil {
			return r.abort(t, ctx.Err())
		}
		return r.finish(ctx, t, StatusRetry, fmt.Errorf("fetch balances: %w", err))
	}
	t.pre = pre

	t.out.State = Sizing
	mc := r.marketContext(ctx, t)
	if ctx.Err() != nil {
		return r.abort(t, ctx.Err())
	}
	t.out.Sizing = strategy.ComputeMultiplier(t.plan.Strategy, mc)
	t.out.Planned = money.RoundFiat(t.plan.BaseAmount.Mul(t.out.Sizing.Multiplier), t.plan.Decimals())

	t.out.State = Gating
	t.out.Gate = policy.Gate(t.pre.Fiat, t.out.Planned)
	if !t.out.Gate.Proceed {
		t.log.Info("purchase skipped", "reason", t.out.Gate.Reason)
		return r.finish(ctx, t, StatusSkipped, nil)
	}
	if ctx.Err() != nil {
		return r.abort(t, ctx.Err())
	}

	// Past this point the order may exist on the exchange.
	dctx := context.WithoutCancel(ctx)
	t.out.State = Buying
	order, err := t.ex.MarketBuy(dctx, t.pair, t.out.Gate.Amount)
	if err != nil {
		if exchange.IsRejected(err) {
			t.out.Record = r.failedRecord(t, err)
			t.persistErr = r.records.InsertExecutionRecord(dctx, t.out.Record)
			return r.finish(dctx, t, StatusFailed, fmt.Errorf("market buy: %w", err))
		}
		return r.finish(dctx, t, StatusRetry, fmt.Errorf("market buy: %w", err))
	}
	t.order = order
	t.recordID = r.newID()
	t.log.Info("order placed", "order_id", order.OrderID, "status", string(order.Status),
		"amount", t.out.Gate.Amount.String())

	t.out.State = Settling
	r.settle(dctx, t)

	t.out.State = WithdrawalCheck
	if t.cryptoGot.IsPositive() {
		r.withdraw(dctx, t)
	}

	t.out.State = Persisting
	status := r.persist(dctx, t)
	return r.finish(dctx, t, status, nil)
}

func (r *Runner) prepare(t *tick) error {
	sched, err := t.plan.ScheduleOf()
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	t.sched = sched
	ex, ok := r.exchanges.Get(t.plan.Exchange)
	if !ok {
		return fmt.Errorf("unknown exchange %q", t.plan.Exchange)
	}
	t.ex = ex
	return nil
}

// marketContext gathers what the plan's strategy needs. Missing data is left nil
// so sizing falls back to the classic amount.
func (r *Runner) marketContext(ctx context.Context, t *tick) strategy.MarketContext {
	var mc strategy.MarketContext
	price, err := r.market.CurrentPrice(ctx, t.plan.Crypto, t.plan.Fiat)
	if err != nil {
		t.log.Warn("current price unavailable", "err", err)
	} else if price.IsPositive() {
		mc.Price = &price
		t.price = &price
	}
	switch t.plan.Strategy.Kind {
	case strategy.KindAth:
		ath, err := r.market.AllTimeHigh(ctx, t.plan.Crypto, t.plan.Fiat)
		if err != nil {
			t.log.Warn("all-time high unavailable", "err", err)
		}
		mc.ATH = ath
	case strategy.KindFearGreed:
		index, err := r.market.FearGreedIndex(ctx)
		if err != nil {
			t.log.Warn("fear & greed index unavailable", "err", err)
		}
		mc.FearGreed = index
	}
	return mc
}

// settle derives what the order actually moved from the balance delta,
// falling back to the order result when balances cannot be re-read.
func (r *Runner) settle(ctx context.Context, t *tick) {
	post, err := t.ex.GetBalances(ctx, t.pair)
	if err != nil {
		t.log.Warn("post-buy balance query failed, using order result", "err", err)
		got := t.order.FilledQty
		if t.order.FeeAsset == t.pair.Crypto {
			got = got.Sub(t.order.Fee)
		}
		t.cryptoGot = decimal.Max(got, decimal.Zero)
		t.fiatSpent = t.order.QuoteSpent
	} else {
		t.post = &post
		t.cryptoGot = decimal.Max(post.Crypto.Sub(t.pre.Crypto), decimal.Zero)
		t.fiatSpent = t.pre.Fiat.Sub(post.Fiat)
	}
	if !t.fiatSpent.IsPositive() {
		t.fiatSpent = t.order.QuoteSpent
	}
	if !t.fiatSpent.IsPositive() {
		t.fiatSpent = t.out.Gate.Amount
	}
}

func (r *Runner) withdraw(ctx context.Context, t *tick) {
	cfg := t.plan.Withdrawal
	held := t.pre.Crypto.Add(t.cryptoGot)
	if t.post != nil {
		held = t.post.Crypto
	}

	var decision policy.WithdrawalDecision
	if !cfg.Enabled {
		decision = policy.EvaluateWithdrawal(cfg, held, decimal.Zero)
	} else if fee, err := t.ex.WithdrawalFeeQuote(ctx, t.pair.Crypto); err != nil {
		t.log.Warn("withdrawal fee quote failed", "err", err)
		decision = policy.EvaluateWithdrawalUnquoted(cfg, held)
	} else {
		decision = policy.EvaluateWithdrawal(cfg, held, fee)
	}
	t.out.Withdrawal = &decision
	if !decision.Approved {
		t.log.Info("withdrawal denied", "reasons", decision.Describe())
		return
	}

	rec := &model.WithdrawalRecord{
		ID:          r.newID(),
		PlanID:      t.plan.ID,
		ExecutionID: t.recordID,
		Asset:       t.pair.Crypto,
		Amount:      decision.Amount,
		Fee:         decision.Fee,
		Address:     cfg.Address,
		Status:      model.WithdrawalPending,
	}
	t.out.WithdrawalRecord = rec
	if err := r.records.InsertWithdrawal(ctx, rec); err != nil {
		t.persistErr = errors.Join(t.persistErr, fmt.Errorf("insert withdrawal: %w", err))
	}

	res, err := t.ex.Withdraw(ctx, t.pair.Crypto, decision.Amount, cfg.Address)
	if err != nil {
		t.withdrawErr = err
		rec.Status = model.WithdrawalFailed
		rec.Error = text.Truncate(err.Error(), maxErrorLen)
		t.log.Error("withdrawal failed", "amount", decision.Amount.String(), "err", err)
	} else {
		rec.Status = model.WithdrawalCompleted
		rec.TxID = firstNonEmpty(res.TxID, res.ID)
		t.log.Info("withdrawal submitted", "amount", decision.Amount.String(), "tx", rec.TxID)
	}
	if err := r.records.UpdateWithdrawalStatus(ctx, rec.ID, rec.Status, rec.TxID, rec.Error); err != nil {
		t.persistErr = errors.Join(t.persistErr, fmt.Errorf("update withdrawal: %w", err))
	}
}

// persist applies the buy to the ledger and writes the execution record.
func (r *Runner) persist(ctx context.Context, t *tick) Status {
	status := StatusCompleted
	recStatus := model.ExecutionCompleted
	switch {
	case !t.cryptoGot.IsPositive():
		status, recStatus = StatusPending, model.ExecutionPending
	case t.order.Status == exchange.OrderPartiallyFilled:
		status, recStatus = StatusPartial, model.ExecutionPartial
	}

	if t.cryptoGot.IsPositive() {
		summary, err := r.ledger.ApplyBuy(ctx, t.plan.LedgerKey, t.fiatSpent, t.cryptoGot)
		if err != nil {
			t.persistErr = errors.Join(t.persistErr, fmt.Errorf("apply buy: %w", err))
		} else {
			t.out.Summary = &summary
		}
	}

	rec := r.baseRecord(t)
	rec.Status = recStatus
	rec.FiatSpent = t.fiatSpent
	rec.CryptoReceived = t.cryptoGot
	if price, ok := money.Div(t.out.Gate.Amount, t.cryptoGot); ok {
		rec.Price = price
	}
	rec.FeeAmount = t.order.Fee
	rec.FeeAsset = t.order.FeeAsset
	rec.OrderID = t.order.OrderID
	t.out.Record = rec
	if err := r.records.InsertExecutionRecord(ctx, rec); err != nil {
		t.persistErr = errors.Join(t.persistErr, fmt.Errorf("insert execution record: %w", err))
	}
	if t.persistErr != nil {
		return StatusPersistFailed
	}
	return status
}

func (r *Runner) failedRecord(t *tick, cause error) *model.ExecutionRecord {
	rec := r.baseRecord(t)
	rec.Status = model.ExecutionFailed
	rec.FiatSpent = decimal.Zero
	rec.CryptoReceived = decimal.Zero
	rec.Error = text.Truncate(cause.Error(), maxErrorLen)
	return rec
}

func (r *Runner) baseRecord(t *tick) *model.ExecutionRecord {
	id := t.recordID
	if id == "" {
		id = r.newID()
	}
	return &model.ExecutionRecord{
		ID:         id,
		PlanID:     t.plan.ID,
		Exchange:   t.ex.Name(),
		Crypto:     t.pair.Crypto,
		Fiat:       t.pair.Fiat,
		Detail:     recordDetail(t),
		ExecutedAt: r.nowFn().UTC(),
	}
}

func recordDetail(t *tick) datatypes.JSON {
	detail := map[string]any{
		"tick_id":    t.out.TickID,
		"multiplier": t.out.Sizing.Multiplier.String(),
		"reason":     t.out.Sizing.Reason,
		"planned":    t.out.Planned.String(),
	}
	if t.out.Sizing.Fallback {
		detail["fallback"] = true
	}
	if t.price != nil {
		detail["market_price"] = t.price.String()
	}
	raw, _ := json.Marshal(detail)
	return datatypes.JSON(raw)
}

func (r *Runner) abort(t *tick, cause error) Outcome {
	t.out.Status = StatusAborted
	t.out.Err = cause
	t.log.Info("tick aborted", "state", t.out.State.String(), "err", cause)
	return t.out
}

// finish advances the schedule, then sends the single notification of the Tick.
func (r *Runner) finish(ctx context.Context, t *tick, status Status, cause error) Outcome {
	ctx = context.WithoutCancel(ctx)
	t.out.Status = status
	t.out.Err = errors.Join(cause, t.persistErr)
	now := r.nowFn()

	var next time.Time
	var err error
	switch {
	case status == StatusRetry:
		next, err = r.schedule.AdvanceRetry(ctx, t.plan.ID, now)
	case t.sched != nil:
		next, err = r.schedule.Advance(ctx, t.plan.ID, t.sched, now)
	default:
		next, err = r.schedule.AdvanceRetry(ctx, t.plan.ID, now)
	}
	if err != nil {
		t.log.Error("advance schedule failed", "err", err)
	}
	t.out.NextExecutionAt = next
	if err := r.schedule.MarkLastExecuted(ctx, t.plan.ID, now, string(status)); err != nil {
		t.log.Warn("mark last execution failed", "err", err)
	}

	if t.out.Summary == nil && status != StatusRetry && t.ex != nil {
		if summary, err := r.ledger.Summary(ctx, t.plan.LedgerKey); err == nil {
			t.out.Summary = &summary
		}
	}

	t.out.State = Notifying
	msg := r.compose(t, now)
	t.out.Severity = msg.Severity
	if r.plain {
		t.out.Message = msg.RenderPlain()
	} else {
		t.out.Message = msg.RenderMarkdown()
	}
	t.out.Notified = r.notify.Send(ctx, t.plan.NotifyChannel, t.out.Message, msg.Severity)

	attrs := []any{"status", string(status), "next", next.Format(time.RFC3339)}
	if t.out.Err != nil {
		attrs = append(attrs, "err", t.out.Err)
	}
	switch status {
	case StatusFailed, StatusPersistFailed:
		t.log.Error("tick finished", attrs...)
	case StatusRetry:
		t.log.Warn("tick finished", attrs...)
	default:
		t.log.Info("tick finished", attrs...)
	}
	return t.out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
