package apihttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stacker/internal/ledger"
	"stacker/internal/logger"
	"stacker/internal/plan"
	"stacker/internal/store/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	defaultExecutionLimit = 50
	maxExecutionLimit     = 500
)

type PlanSource interface {
	All() []plan.Plan
	Plan(id string) (plan.Plan, bool)
}

type ScheduleView interface {
	State(ctx context.Context, planID string) (model.ScheduleState, error)
	TriggerNow(ctx context.Context, planID string, now time.Time) error
}

type LedgerView interface {
	Summary(ctx context.Context, asset string) (model.AccumulationSummary, error)
	All(ctx context.Context) ([]model.AccumulationSummary, error)
}

type ExecutionView interface {
	ListExecutionRecords(ctx context.Context, planID string, limit int) ([]model.ExecutionRecord, error)
}

// PriceView is optional; summaries omit profit without it.
type PriceView interface {
	CurrentPrice(ctx context.Context, crypto, fiat string) (decimal.Decimal, error)
}

type Router struct {
	Plans      PlanSource
	Schedule   ScheduleView
	Ledger     LedgerView
	Executions ExecutionView
	Prices     PriceView

	nowFn func() time.Time
}

func NewRouter(plans PlanSource, schedule ScheduleView, led LedgerView, execs ExecutionView, prices PriceView) *Router {
	return &Router{Plans: plans, Schedule: schedule, Ledger: led, Executions: execs, Prices: prices, nowFn: time.Now}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/plans", r.handlePlans)
	group.GET("/plans/:id", r.handlePlan)
	group.GET("/plans/:id/summary", r.handlePlanSummary)
	group.GET("/plans/:id/executions", r.handlePlanExecutions)
	group.POST("/plans/:id/trigger", r.handleTrigger)
	group.GET("/summaries", r.handleSummaries)
}

type planView struct {
	plan.Plan
	State planSchedule `json:"schedule_state"`
}

type planSchedule struct {
	Description     string     `json:"description"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	LastOutcome     string     `json:"last_outcome,omitempty"`
}

type summaryView struct {
	model.AccumulationSummary
	AverageCost    *decimal.Decimal `json:"average_cost,omitempty"`
	CurrentPrice   *decimal.Decimal `json:"current_price,omitempty"`
	ProfitFraction *decimal.Decimal `json:"profit_fraction,omitempty"`
	ProfitFiat     *decimal.Decimal `json:"profit_fiat,omitempty"`
}

func (r *Router) handlePlans(c *gin.Context) {
	plans := r.Plans.All()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, r.view(c.Request.Context(), p))
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

func (r *Router) handlePlan(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.view(c.Request.Context(), p))
}

func (r *Router) handlePlanSummary(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	summary, err := r.Ledger.Summary(ctx, p.LedgerKey)
	if err != nil {
		logger.Errorf("summary %s: %v", p.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	view := summaryView{AccumulationSummary: summary}
	if avg, ok := ledger.AverageCost(summary); ok {
		view.AverageCost = &avg
	}
	if r.Prices != nil {
		if price, err := r.Prices.CurrentPrice(ctx, p.Crypto, p.Fiat); err == nil && price.IsPositive() {
			view.CurrentPrice = &price
			if frac, ok := ledger.ProfitFraction(summary, &price); ok {
				view.ProfitFraction = &frac
			}
			if abs, ok := ledger.ProfitFiat(summary, &price); ok {
				view.ProfitFiat = &abs
			}
		} else if err != nil {
			logger.Warnf("summary %s: price unavailable: %v", p.ID, err)
		}
	}
	c.JSON(http.StatusOK, view)
}

func (r *Router) handlePlanExecutions(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultExecutionLimit)))
	if limit <= 0 {
		limit = defaultExecutionLimit
	}
	if limit > maxExecutionLimit {
		limit = maxExecutionLimit
	}
	records, err := r.Executions.ListExecutionRecords(c.Request.Context(), p.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan_id": p.ID, "limit": limit, "executions": records})
}

func (r *Router) handleTrigger(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	if !p.Enabled {
		c.JSON(http.StatusConflict, gin.H{"error": "plan is disabled"})
		return
	}
	now := r.nowFn()
	if err := r.Schedule.TriggerNow(c.Request.Context(), p.ID, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("plan %s triggered manually", p.ID)
	c.JSON(http.StatusAccepted, gin.H{"plan_id": p.ID, "next_execution_at": now.UTC()})
}

func (r *Router) handleSummaries(c *gin.Context) {
	all, err := r.Ledger.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": all})
}

func (r *Router) lookup(c *gin.Context) (plan.Plan, bool) {
	id := strings.TrimSpace(c.Param("id"))
	p, ok := r.Plans.Plan(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found", "plan_id": id})
		return plan.Plan{}, false
	}
	return p, true
}

func (r *Router) view(ctx context.Context, p plan.Plan) planView {
	v := planView{Plan: p}
	if sched, err := p.ScheduleOf(); err == nil {
		v.State.Description = sched.String()
	}
	state, err := r.Schedule.State(ctx, p.ID)
	if err != nil {
		logger.Warnf("schedule state %s: %v", p.ID, err)
		return v
	}
	v.State.NextExecutionAt = state.NextExecutionAt
	v.State.LastExecutedAt = state.LastExecutedAt
	v.State.LastOutcome = state.LastOutcome
	return v
}
