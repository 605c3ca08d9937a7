package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stacker/internal/policy"
	"stacker/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlans = `
plans:
  - id: btc-weekly
    exchange: Binance
    crypto: btc
    fiat: czk
    base_amount: 100
    schedule:
      cron: "0 8 * * 1"
    strategy:
      kind: ath
      ath_tiers:
        - {max_distance: 0.1, multiplier: 1}
        - {max_distance: 0.5, multiplier: "1.5"}
        - {max_distance: 1, multiplier: 2}
    withdrawal:
      enabled: true
      address: bc1qexample
    enabled: true
  - id: eth-daily
    exchange: paper
    crypto: ETH
    fiat: EUR
    base_amount: "25.50"
    schedule:
      interval_minutes: 1440
    strategy:
      kind: fear_greed
      fear_greed_tiers:
        - {max_index: 25, multiplier: 2}
        - {max_index: 100, multiplier: 1}
    enabled: false
`

func writePlans(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseNormalizesPlans(t *testing.T) {
	plans, err := Parse([]byte(samplePlans))
	require.NoError(t, err)
	require.Len(t, plans, 2)

	btc := plans[0]
	assert.Equal(t, "binance", btc.Exchange)
	assert.Equal(t, "BTC", btc.Crypto)
	assert.Equal(t, "CZK", btc.Fiat)
	assert.Equal(t, "BTC", btc.LedgerKey)
	assert.EqualValues(t, 2, btc.Decimals())
	assert.Equal(t, "100", btc.BaseAmount.String())
	assert.Equal(t, strategy.KindAth, btc.Strategy.Kind)
	assert.Len(t, btc.Strategy.AthTiers, 3)
	assert.True(t, btc.Withdrawal.FeeLimit().Equal(policy.DefaultMaxFeeFraction))
	assert.Equal(t, "BTC/CZK", btc.Pair().String())

	sched, err := btc.ScheduleOf()
	require.NoError(t, err)
	monday := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC), sched.Next(monday))

	eth := plans[1]
	assert.Equal(t, "25.5", eth.BaseAmount.String())
	assert.False(t, eth.Enabled)
}

func TestParseKeepsExplicitZeroes(t *testing.T) {
	plans, err := Parse([]byte(`
plans:
  - id: btc-jpy
    exchange: paper
    crypto: BTC
    fiat: JPY
    base_amount: 10000
    fiat_decimals: 0
    schedule: {every: 1d}
    withdrawal: {enabled: true, address: bc1qexample, max_fee_fraction: 0}
`))
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.EqualValues(t, 0, plans[0].Decimals())
	assert.True(t, plans[0].Withdrawal.FeeLimit().IsZero())
}

func TestSchemaRejectsWrongTypes(t *testing.T) {
	require.NoError(t, validateSchema([]byte(samplePlans)))

	cases := map[string]string{
		"plans not a list":   `plans: {id: a}`,
		"missing plans":      `other: 1`,
		"decimals too large": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 10, fiat_decimals: 9, schedule: {every: 1d}}`,
		"bad decimal string": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: "1,5", schedule: {every: 1d}}`,
	}
	for name, content := range cases {
		assert.Error(t, validateSchema([]byte(content)), name)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 10, schedule: {interval_minutes: 5}, colour: red}`,
		"two schedules": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 10, schedule: {interval_minutes: 5, cron: "* * * * *"}}`,
		"non positive amount": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 0, schedule: {interval_minutes: 5}}`,
		"bad tiers": `
plans:
  - id: a
    exchange: paper
    crypto: BTC
    fiat: EUR
    base_amount: 10
    schedule: {interval_minutes: 5}
    strategy: {kind: ath, ath_tiers: [{max_distance: 0.5, multiplier: 2}]}`,
		"duplicate id": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 10, schedule: {interval_minutes: 5}}
  - {id: a, exchange: paper, crypto: ETH, fiat: EUR, base_amount: 10, schedule: {interval_minutes: 5}}`,
		"bad cron": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 10, schedule: {cron: "every tuesday"}}`,
		"amount not numeric": `
plans:
  - {id: a, exchange: paper, crypto: BTC, fiat: EUR, base_amount: ten, schedule: {interval_minutes: 5}}`,
	}
	for name, content := range cases {
		_, err := Parse([]byte(content))
		assert.Error(t, err, name)
	}
}

func TestRegistryReloadKeepsPreviousOnError(t *testing.T) {
	path := writePlans(t, samplePlans)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"btc-weekly"}, r.EnabledIDs())
	assert.Len(t, r.All(), 2)
	assert.EqualValues(t, 1, r.Snapshot().Version)

	p, ok := r.Plan("btc-weekly")
	require.True(t, ok)
	p.Strategy.AthTiers[0].Multiplier = p.Strategy.AthTiers[0].Multiplier.Add(p.Strategy.AthTiers[0].Multiplier)
	again, _ := r.Plan("btc-weekly")
	assert.Equal(t, "1", again.Strategy.AthTiers[0].Multiplier.String(), "copies are isolated")

	require.NoError(t, os.WriteFile(path, []byte("plans: [{id: broken}]"), 0o600))
	assert.Error(t, r.Reload())
	assert.Len(t, r.All(), 2)

	require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - {id: solo, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 10, schedule: {every: 1d}, enabled: true}`), 0o600))
	require.NoError(t, r.Reload())
	assert.Equal(t, []string{"solo"}, r.EnabledIDs())
	assert.EqualValues(t, 2, r.Snapshot().Version)
	_, ok = r.Plan("btc-weekly")
	assert.False(t, ok)
}

func TestRegistryWatchAppliesEdits(t *testing.T) {
	path := writePlans(t, samplePlans)
	r, err := NewRegistry(path)
	require.NoError(t, err)
	changed := make(chan Snapshot, 4)
	r.OnChange(func(s Snapshot) { changed <- s })
	require.NoError(t, r.Watch())

	require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - {id: solo, exchange: paper, crypto: BTC, fiat: EUR, base_amount: 10, schedule: {every: 1d}, enabled: true}`), 0o600))

	select {
	case snap := <-changed:
		_, ok := snap.Plans["solo"]
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
