package runner

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stacker/internal/gateway/exchange"
	"stacker/internal/gateway/notifier"
	"stacker/internal/ledger"
	"stacker/internal/plan"
	"stacker/internal/policy"
	"stacker/internal/scheduler"
	"stacker/internal/store/gormstore"
	"stacker/internal/store/model"
	"stacker/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	pairBTCCZK = exchange.NewPair("BTC", "CZK")
	testNow    = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	weekly     = 7 * 24 * time.Hour
)

type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) Name() string { return "mock" }

func (m *mockExchange) GetBalances(ctx context.Context, pair exchange.Pair) (exchange.Balances, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(exchange.Balances), args.Error(1)
}

func (m *mockExchange) MarketBuy(ctx context.Context, pair exchange.Pair, amount decimal.Decimal) (exchange.OrderResult, error) {
	args := m.Called(ctx, pair, amount)
	return args.Get(0).(exchange.OrderResult), args.Error(1)
}

func (m *mockExchange) WithdrawalFeeQuote(ctx context.Context, asset string) (decimal.Decimal, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockExchange) Withdraw(ctx context.Context, asset string, amount decimal.Decimal, address string) (exchange.WithdrawalResult, error) {
	args := m.Called(ctx, asset, amount, address)
	return args.Get(0).(exchange.WithdrawalResult), args.Error(1)
}

type staticMarket struct {
	price     decimal.Decimal
	ath       *decimal.Decimal
	fearGreed *int
}

func (s staticMarket) CurrentPrice(context.Context, string, string) (decimal.Decimal, error) {
	if s.price.IsZero() {
		return decimal.Zero, errors.New("no price")
	}
	return s.price, nil
}

func (s staticMarket) AllTimeHigh(context.Context, string, string) (*decimal.Decimal, error) {
	return s.ath, nil
}

func (s staticMarket) FearGreedIndex(context.Context) (*int, error) {
	return s.fearGreed, nil
}

type sent struct {
	destination string
	text        string
	severity    notifier.Severity
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recordingSender) Send(_ context.Context, destination, text string, severity notifier.Severity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{destination: destination, text: text, severity: severity})
	return true
}

func (r *recordingSender) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.msgs...)
}

type fixture struct {
	runner *Runner
	ex     *mockExchange
	store  *gormstore.Store
	ledger *ledger.Ledger
	sender *recordingSender
}

func newFixture(t *testing.T, mkt staticMarket) *fixture {
	t.Helper()
	st, err := gormstore.New(gormstore.Options{Path: filepath.Join(t.TempDir(), "runner.db"), PureGo: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ex := &mockExchange{}
	led := ledger.New(st)
	sender := &recordingSender{}
	r, err := New(Options{
		Exchanges:     exchange.Registry{"mock": ex},
		Market:        mkt,
		Ledger:        led,
		Records:       st,
		Schedule:      scheduler.NewCoordinator(st, scheduler.DefaultRetryDelay),
		Notify:        sender,
		PlainMessages: true,
	})
	require.NoError(t, err)
	r.nowFn = func() time.Time { return testNow }
	return &fixture{runner: r, ex: ex, store: st, ledger: led, sender: sender}
}

func weeklyPlan() plan.Plan {
	return plan.Plan{
		ID:         "btc-weekly",
		Exchange:   "mock",
		Crypto:     "BTC",
		Fiat:       "CZK",
		BaseAmount: decimal.NewFromInt(100),
		Schedule:   scheduler.Spec{IntervalMinutes: 7 * 24 * 60},
		Enabled:    true,
	}.Normalize()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func decEq(want string) any {
	w := dec(want)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(w) })
}

func balances(fiat, crypto string) exchange.Balances {
	return exchange.Balances{Fiat: dec(fiat), Crypto: dec(crypto)}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestTickCompletedPurchase(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).Return(exchange.OrderResult{
		OrderID:    "42",
		Status:     exchange.OrderFilled,
		FilledQty:  dec("0.0005"),
		QuoteSpent: dec("100"),
	}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("150", "0.0005"), nil).Once()

	out := f.runner.Tick(ctx, weeklyPlan())

	require.NoError(t, out.Err)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, Notifying, out.State)
	assert.True(t, out.Planned.Equal(dec("100")))

	require.NotNil(t, out.Summary)
	assert.True(t, out.Summary.CumulativeFiat.Equal(dec("100")))
	assert.True(t, out.Summary.CumulativeCrypto.Equal(dec("0.0005")))
	assert.EqualValues(t, 1, out.Summary.BuyCount)

	require.NotNil(t, out.Withdrawal)
	assert.False(t, out.Withdrawal.Approved)
	assert.True(t, out.Withdrawal.Has(policy.Disabled))
	f.ex.AssertNotCalled(t, "WithdrawalFeeQuote", mock.Anything, mock.Anything)
	f.ex.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	records, err := f.store.ListExecutionRecords(ctx, "btc-weekly", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.ExecutionCompleted, records[0].Status)
	assert.True(t, records[0].CryptoReceived.Equal(dec("0.0005")))
	assert.True(t, records[0].FiatSpent.Equal(dec("100")))
	assert.True(t, records[0].Price.Equal(dec("200000")))
	assert.Equal(t, "42", records[0].OrderID)

	msgs := f.sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notifier.Information, msgs[0].severity)
	assert.Contains(t, msgs[0].text, "Bought 0.0005 BTC for 100.00 CZK")
	assert.Contains(t, msgs[0].text, "profit: +0.00%")

	assert.True(t, out.NextExecutionAt.Equal(testNow.Add(weekly)))
	state, err := f.store.GetScheduleState(ctx, "btc-weekly")
	require.NoError(t, err)
	require.NotNil(t, state.NextExecutionAt)
	assert.True(t, state.NextExecutionAt.Equal(testNow.Add(weekly)))
	assert.Equal(t, string(StatusCompleted), state.LastOutcome)
	f.ex.AssertExpectations(t)
}

type failingLedger struct {
	*ledger.Ledger
}

func (failingLedger) ApplyBuy(context.Context, string, decimal.Decimal, decimal.Decimal) (model.AccumulationSummary, error) {
	return model.AccumulationSummary{}, errors.New("disk full")
}

func TestTickReportsLedgerWriteFailure(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	f.runner.ledger = failingLedger{f.ledger}
	ctx := context.Background()

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{OrderID: "43", Status: exchange.OrderFilled, FilledQty: dec("0.0005"), QuoteSpent: dec("100")}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("150", "0.0005"), nil).Once()

	out := f.runner.Tick(ctx, weeklyPlan())

	assert.Equal(t, StatusPersistFailed, out.Status)
	assert.ErrorContains(t, out.Err, "disk full")
	assert.True(t, out.NextExecutionAt.Equal(testNow.Add(weekly)))

	records, err := f.store.ListExecutionRecords(ctx, "btc-weekly", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "43", records[0].OrderID)

	msgs := f.sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notifier.Error, msgs[0].severity)
	assert.Contains(t, msgs[0].text, "bookkeeping failed")
	assert.Contains(t, msgs[0].text, "disk full")

	state, err := f.store.GetScheduleState(ctx, "btc-weekly")
	require.NoError(t, err)
	assert.Equal(t, string(StatusPersistFailed), state.LastOutcome)
}

func TestTickSkipsWhenFundsAreShort(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("50", "0"), nil).Once()

	out := f.runner.Tick(ctx, weeklyPlan())

	assert.Equal(t, StatusSkipped, out.Status)
	assert.Nil(t, out.Record)
	f.ex.AssertNotCalled(t, "MarketBuy", mock.Anything, mock.Anything, mock.Anything)

	records, err := f.store.ListExecutionRecords(ctx, "btc-weekly", 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	msgs := f.sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notifier.Warning, msgs[0].severity)
	assert.Contains(t, msgs[0].text, "not enough money (50 CZK)")
	assert.True(t, out.NextExecutionAt.Equal(testNow.Add(weekly)))
}

func TestTickRetriesOnNetworkFailure(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{}, &exchange.NetworkError{Exchange: "mock", Op: "market_buy", Err: errors.New("timeout")}).Once()

	out := f.runner.Tick(ctx, weeklyPlan())

	assert.Equal(t, StatusRetry, out.Status)
	assert.Error(t, out.Err)
	assert.True(t, out.NextExecutionAt.Equal(testNow.Add(scheduler.DefaultRetryDelay)))

	records, err := f.store.ListExecutionRecords(ctx, "btc-weekly", 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	msgs := f.sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notifier.Warning, msgs[0].severity)
}

func TestTickRetriesWhenBalancesUnavailable(t *testing.T) {
	f := newFixture(t, staticMarket{})
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).
		Return(exchange.Balances{}, &exchange.NetworkError{Exchange: "mock", Op: "balances", Err: errors.New("reset")}).Once()

	out := f.runner.Tick(context.Background(), weeklyPlan())

	assert.Equal(t, StatusRetry, out.Status)
	assert.True(t, out.NextExecutionAt.Equal(testNow.Add(scheduler.DefaultRetryDelay)))
	require.Len(t, f.sender.all(), 1)
}

func TestTickRecordsRejectedOrder(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{}, &exchange.RejectedError{Exchange: "mock", Op: "market_buy", Code: "-2010", Message: "insufficient balance"}).Once()

	out := f.runner.Tick(ctx, weeklyPlan())

	assert.Equal(t, StatusFailed, out.Status)
	assert.True(t, exchange.IsRejected(out.Err))
	assert.True(t, out.NextExecutionAt.Equal(testNow.Add(weekly)))

	records, err := f.store.ListExecutionRecords(ctx, "btc-weekly", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.ExecutionFailed, records[0].Status)
	assert.True(t, records[0].CryptoReceived.IsZero())
	assert.Contains(t, records[0].Error, "insufficient balance")

	summary, err := f.ledger.Summary(ctx, "BTC")
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.BuyCount)

	msgs := f.sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notifier.Error, msgs[0].severity)
}

func TestTickAbortsWhenCancelledBeforeBuying(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.runner.Tick(ctx, weeklyPlan())

	assert.Equal(t, StatusAborted, out.Status)
	assert.ErrorIs(t, out.Err, context.Canceled)
	f.ex.AssertNotCalled(t, "GetBalances", mock.Anything, mock.Anything)
	assert.Empty(t, f.sender.all())

	state, err := f.store.GetScheduleState(context.Background(), "btc-weekly")
	require.NoError(t, err)
	assert.Nil(t, state.NextExecutionAt)
}

func TestTickWithdrawsWhenApproved(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()
	p := weeklyPlan()
	p.Withdrawal = policy.WithdrawalConfig{Enabled: true, Address: "bc1qexample", MaxFeeFraction: decPtr("0.01")}

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0.0095"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{OrderID: "7", Status: exchange.OrderFilled, FilledQty: dec("0.0005"), QuoteSpent: dec("100")}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("150", "0.01"), nil).Once()
	f.ex.On("WithdrawalFeeQuote", mock.Anything, "BTC").Return(dec("0.00005"), nil).Once()
	f.ex.On("Withdraw", mock.Anything, "BTC", decEq("0.01"), "bc1qexample").
		Return(exchange.WithdrawalResult{ID: "w-1", TxID: "tx-1", Status: exchange.WithdrawalSubmitted}, nil).Once()

	out := f.runner.Tick(ctx, p)

	require.NoError(t, out.Err)
	assert.Equal(t, StatusCompleted, out.Status)
	require.NotNil(t, out.Withdrawal)
	assert.True(t, out.Withdrawal.Approved)
	require.NotNil(t, out.WithdrawalRecord)
	assert.Equal(t, model.WithdrawalCompleted, out.WithdrawalRecord.Status)
	assert.Equal(t, "tx-1", out.WithdrawalRecord.TxID)
	assert.Equal(t, out.Record.ID, out.WithdrawalRecord.ExecutionID)
	assert.Contains(t, f.sender.all()[0].text, "tx: tx-1")
	f.ex.AssertExpectations(t)
}

func TestTickKeepsBuyWhenWithdrawalFails(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()
	p := weeklyPlan()
	p.Withdrawal = policy.WithdrawalConfig{Enabled: true, Address: "bc1qexample", MaxFeeFraction: decPtr("0.5")}

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{Status: exchange.OrderFilled, FilledQty: dec("0.0005"), QuoteSpent: dec("100")}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("150", "0.0005"), nil).Once()
	f.ex.On("WithdrawalFeeQuote", mock.Anything, "BTC").Return(dec("0.00001"), nil).Once()
	f.ex.On("Withdraw", mock.Anything, "BTC", decEq("0.0005"), "bc1qexample").
		Return(exchange.WithdrawalResult{}, &exchange.RejectedError{Exchange: "mock", Op: "withdraw", Message: "address not whitelisted"}).Once()

	out := f.runner.Tick(ctx, p)

	assert.Equal(t, StatusCompleted, out.Status)
	require.NotNil(t, out.WithdrawalRecord)
	assert.Equal(t, model.WithdrawalFailed, out.WithdrawalRecord.Status)
	require.NotNil(t, out.Summary)
	assert.EqualValues(t, 1, out.Summary.BuyCount)
	assert.Contains(t, f.sender.all()[0].text, "address not whitelisted")
}

func TestTickDeniesWithdrawalWithoutFeeQuote(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	p := weeklyPlan()
	p.Withdrawal = policy.WithdrawalConfig{Enabled: true, Address: "bc1qexample", MaxFeeFraction: decPtr("0.01")}

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{Status: exchange.OrderFilled, FilledQty: dec("0.0005"), QuoteSpent: dec("100")}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("150", "0.0005"), nil).Once()
	f.ex.On("WithdrawalFeeQuote", mock.Anything, "BTC").
		Return(decimal.Zero, &exchange.NetworkError{Exchange: "mock", Op: "fee", Err: errors.New("down")}).Once()

	out := f.runner.Tick(context.Background(), p)

	assert.Equal(t, StatusCompleted, out.Status)
	require.NotNil(t, out.Withdrawal)
	assert.True(t, out.Withdrawal.Has(policy.FeeQuoteUnavailable))
	f.ex.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTickFallsBackToOrderResultWhenSettlementUnreadable(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).Return(exchange.OrderResult{
		Status:     exchange.OrderFilled,
		FilledQty:  dec("0.00051"),
		QuoteSpent: dec("99.5"),
		Fee:        dec("0.00001"),
		FeeAsset:   "BTC",
	}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).
		Return(exchange.Balances{}, &exchange.NetworkError{Exchange: "mock", Op: "balances", Err: errors.New("reset")}).Once()

	out := f.runner.Tick(ctx, weeklyPlan())

	require.NoError(t, out.Err)
	assert.Equal(t, StatusCompleted, out.Status)
	require.NotNil(t, out.Record)
	assert.True(t, out.Record.CryptoReceived.Equal(dec("0.0005")))
	assert.True(t, out.Record.FiatSpent.Equal(dec("99.5")))
}

func TestTickLeavesLedgerWhenNothingSettled(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	ctx := context.Background()

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{OrderID: "9", Status: exchange.OrderAccepted}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("150", "0"), nil).Once()

	out := f.runner.Tick(ctx, weeklyPlan())

	assert.Equal(t, StatusPending, out.Status)
	require.NotNil(t, out.Record)
	assert.Equal(t, model.ExecutionPending, out.Record.Status)
	assert.Nil(t, out.Withdrawal)

	summary, err := f.ledger.Summary(ctx, "BTC")
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.BuyCount)
	assert.Equal(t, notifier.Warning, f.sender.all()[0].severity)
}

func TestTickClassifiesPartialFill(t *testing.T) {
	f := newFixture(t, staticMarket{price: dec("200000")})
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("250", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("100")).
		Return(exchange.OrderResult{Status: exchange.OrderPartiallyFilled, FilledQty: dec("0.0003"), QuoteSpent: dec("60")}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("190", "0.0003"), nil).Once()

	out := f.runner.Tick(context.Background(), weeklyPlan())

	assert.Equal(t, StatusPartial, out.Status)
	assert.Equal(t, model.ExecutionPartial, out.Record.Status)
	assert.True(t, out.Summary.CumulativeFiat.Equal(dec("60")))
}

func TestTickSizesFromAllTimeHigh(t *testing.T) {
	ath := dec("2000000")
	f := newFixture(t, staticMarket{price: dec("1000000"), ath: &ath})
	p := weeklyPlan()
	p.Strategy = strategy.Spec{Kind: strategy.KindAth, AthTiers: []strategy.AthTier{
		{MaxDistance: dec("0.1"), Multiplier: dec("1")},
		{MaxDistance: dec("0.6"), Multiplier: dec("2.5")},
		{MaxDistance: dec("1"), Multiplier: dec("3")},
	}}

	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("1000", "0"), nil).Once()
	f.ex.On("MarketBuy", mock.Anything, pairBTCCZK, decEq("250")).
		Return(exchange.OrderResult{Status: exchange.OrderFilled, FilledQty: dec("0.00025"), QuoteSpent: dec("250")}, nil).Once()
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("750", "0.00025"), nil).Once()

	out := f.runner.Tick(context.Background(), p)

	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, out.Sizing.Multiplier.Equal(dec("2.5")))
	assert.False(t, out.Sizing.Fallback)
	f.ex.AssertExpectations(t)
}

func TestTickFailsForUnknownExchange(t *testing.T) {
	f := newFixture(t, staticMarket{})
	p := weeklyPlan()
	p.Exchange = "nowhere"

	out := f.runner.Tick(context.Background(), p)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)
	msgs := f.sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notifier.Error, msgs[0].severity)
	assert.True(t, out.NextExecutionAt.Equal(testNow.Add(weekly)))
}

func TestTickSendsToPlanChannel(t *testing.T) {
	f := newFixture(t, staticMarket{})
	p := weeklyPlan()
	p.NotifyChannel = "-100200"
	f.ex.On("GetBalances", mock.Anything, pairBTCCZK).Return(balances("10", "0"), nil).Once()

	f.runner.Tick(context.Background(), p)

	msgs := f.sender.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "-100200", msgs[0].destination)
}
