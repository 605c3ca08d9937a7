package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"stacker/internal/store/gormstore"
	"stacker/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	st, err := gormstore.New(gormstore.Options{Path: filepath.Join(t.TempDir(), "ledger.db"), PureGo: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyBuyAccumulates(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.ApplyBuy(ctx, "BTC", d("100"), d("0.002"))
	require.NoError(t, err)
	got, err := l.ApplyBuy(ctx, "btc", d("50"), d("0.001"))
	require.NoError(t, err)

	assert.True(t, got.CumulativeFiat.Equal(d("150")))
	assert.True(t, got.CumulativeCrypto.Equal(d("0.003")))
	assert.EqualValues(t, 2, got.BuyCount)
}

func TestSummaryIsIdempotent(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	a, err := l.Summary(ctx, "ETH")
	require.NoError(t, err)
	b, err := l.Summary(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, a.Asset, b.Asset)
	assert.True(t, b.CumulativeFiat.IsZero())
	assert.EqualValues(t, 0, b.BuyCount)

	all, err := l.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApplyBuyRejectsNegative(t *testing.T) {
	l := newLedger(t)
	_, err := l.ApplyBuy(context.Background(), "BTC", d("-1"), d("0.1"))
	assert.Error(t, err)
	_, err = l.ApplyBuy(context.Background(), "", d("1"), d("0.1"))
	assert.Error(t, err)
}

func TestApplyBuyConcurrentSameAsset(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyBuy(ctx, "BTC", d("10"), d("0.0001"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := l.Summary(ctx, "BTC")
	require.NoError(t, err)
	assert.EqualValues(t, n, got.BuyCount)
	assert.True(t, got.CumulativeFiat.Equal(d("60")))
	assert.True(t, got.CumulativeCrypto.Equal(d("0.0006")))
}

func TestProfit(t *testing.T) {
	s := model.AccumulationSummary{CumulativeCrypto: d("0.003"), CumulativeFiat: d("150")}

	price := d("60000")
	frac, ok := ProfitFraction(s, &price)
	require.True(t, ok)
	assert.True(t, frac.Equal(d("0.2")), frac.String())

	p, ok := ProfitFiat(s, &price)
	require.True(t, ok)
	assert.True(t, p.Equal(d("30")), p.String())

	_, ok = ProfitFraction(s, nil)
	assert.False(t, ok)
	_, ok = ProfitFraction(model.AccumulationSummary{}, &price)
	assert.False(t, ok)

	avg, ok := AverageCost(s)
	require.True(t, ok)
	assert.True(t, avg.Equal(d("50000")))
	_, ok = AverageCost(model.AccumulationSummary{})
	assert.False(t, ok)
}
