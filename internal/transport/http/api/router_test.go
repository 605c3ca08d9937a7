package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stacker/internal/plan"
	"stacker/internal/scheduler"
	"stacker/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlans map[string]plan.Plan

func (f fakePlans) All() []plan.Plan {
	out := make([]plan.Plan, 0, len(f))
	for _, p := range f {
		out = append(out, p)
	}
	return out
}

func (f fakePlans) Plan(id string) (plan.Plan, bool) {
	p, ok := f[id]
	return p, ok
}

type fakeSchedule struct {
	states    map[string]model.ScheduleState
	triggered []string
}

func (f *fakeSchedule) State(_ context.Context, id string) (model.ScheduleState, error) {
	return f.states[id], nil
}

func (f *fakeSchedule) TriggerNow(_ context.Context, id string, now time.Time) error {
	f.triggered = append(f.triggered, id)
	st := f.states[id]
	st.NextExecutionAt = &now
	f.states[id] = st
	return nil
}

type fakeLedger map[string]model.AccumulationSummary

func (f fakeLedger) Summary(_ context.Context, asset string) (model.AccumulationSummary, error) {
	if s, ok := f[asset]; ok {
		return s, nil
	}
	return model.AccumulationSummary{Asset: asset}, nil
}

func (f fakeLedger) All(context.Context) ([]model.AccumulationSummary, error) {
	out := make([]model.AccumulationSummary, 0, len(f))
	for _, s := range f {
		out = append(out, s)
	}
	return out, nil
}

type fakeExecutions struct {
	records   []model.ExecutionRecord
	lastLimit int
}

func (f *fakeExecutions) ListExecutionRecords(_ context.Context, planID string, limit int) ([]model.ExecutionRecord, error) {
	f.lastLimit = limit
	var out []model.ExecutionRecord
	for _, r := range f.records {
		if r.PlanID == planID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixedPrice decimal.Decimal

func (p fixedPrice) CurrentPrice(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.Decimal(p), nil
}

type apiFixture struct {
	handler http.Handler
	sched   *fakeSchedule
	execs   *fakeExecutions
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	weekly := plan.Plan{
		ID: "btc-weekly", Exchange: "paper", Crypto: "BTC", Fiat: "CZK",
		BaseAmount: decimal.NewFromInt(100), Schedule: scheduler.Spec{IntervalMinutes: 10080}, Enabled: true,
	}.Normalize()
	paused := weekly
	paused.ID = "btc-paused"
	paused.Enabled = false

	sched := &fakeSchedule{states: map[string]model.ScheduleState{}}
	execs := &fakeExecutions{records: []model.ExecutionRecord{
		{ID: "r1", PlanID: "btc-weekly", Status: model.ExecutionCompleted, CryptoReceived: decimal.RequireFromString("0.0005")},
	}}
	led := fakeLedger{"BTC": {
		Asset:            "BTC",
		CumulativeFiat:   decimal.NewFromInt(150),
		CumulativeCrypto: decimal.RequireFromString("0.003"),
		BuyCount:         2,
	}}
	r := NewRouter(fakePlans{weekly.ID: weekly, paused.ID: paused}, sched, led, execs,
		fixedPrice(decimal.NewFromInt(60000)))
	srv, err := NewServer("", r)
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, srv.Addr())
	return apiFixture{handler: srv.Handler(), sched: sched, execs: execs}
}

func (f apiFixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListPlans(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/plans")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Plans []map[string]any `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Plans, 2)
}

func TestGetPlanNotFound(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/plans/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanSummaryIncludesProfit(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/plans/btc-weekly/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		BuyCount       int64           `json:"buy_count"`
		ProfitFraction decimal.Decimal `json:"profit_fraction"`
		ProfitFiat     decimal.Decimal `json:"profit_fiat"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.BuyCount)
	assert.True(t, body.ProfitFraction.Equal(decimal.RequireFromString("0.2")), body.ProfitFraction.String())
	assert.True(t, body.ProfitFiat.Equal(decimal.NewFromInt(30)))
}

func TestPlanExecutionsClampsLimit(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/plans/btc-weekly/executions?limit=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxExecutionLimit, f.execs.lastLimit)
	assert.Contains(t, rec.Body.String(), `"r1"`)
}

func TestTriggerPlan(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodPost, "/api/plans/btc-weekly/trigger")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"btc-weekly"}, f.sched.triggered)

	rec = f.do(http.MethodPost, "/api/plans/btc-paused/trigger")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, f.sched.triggered, 1)
}
