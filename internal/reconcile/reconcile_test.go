package reconcile

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/position"
	"github.com/aristath/sentinel/internal/priceingest"
	"github.com/aristath/sentinel/internal/strand"
)

func newTestSetup(t *testing.T) (*Reconciler, *position.Store, *priceingest.Store, *strand.Store) {
	t.Helper()
	dir := t.TempDir()

	positions, err := position.New(filepath.Join(dir, "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = positions.Close() })

	prices, err := priceingest.New(filepath.Join(dir, "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = prices.Close() })

	strands, err := strand.New(filepath.Join(dir, "strands.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = strands.Close() })

	r := New(positions, prices, strands, "hyperliquid_price_data_ohlc", map[string]bool{"hyperliquid": true}, zerolog.Nop())
	return r, positions, prices, strands
}

func TestRun_UpdatesCurrentValueAndPnL(t *testing.T) {
	r, positions, prices, _ := newTestSetup(t)

	require.NoError(t, positions.Upsert(position.Position{
		ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: position.StatusActive,
		TotalTokensBought: 10, TotalQuantity: 10, TotalAllocationUSD: 100,
	}))
	require.NoError(t, prices.PutMinute(priceingest.Row{TokenContract: "0xabc", Chain: "eth", PriceUSD: 20}))

	require.NoError(t, r.Run())

	got, found, err := positions.Get("p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 200.0, got.CurrentUSDValue)
	assert.Equal(t, 100.0, got.TotalPnLUSD)
	assert.Equal(t, 100.0, got.TotalPnLPct)
}

func TestRun_UsesStreamPriceForStreamingChain(t *testing.T) {
	r, positions, prices, _ := newTestSetup(t)

	require.NoError(t, positions.Upsert(position.Position{
		ID: "p1", TokenContract: "BTC", TokenChain: "hyperliquid", Status: position.StatusActive,
		TotalTokensBought: 1, TotalQuantity: 1, TotalAllocationUSD: 100,
	}))
	require.NoError(t, prices.PutStreamCandle("hyperliquid_price_data_ohlc", priceingest.Bar{
		TokenContract: "BTC", Timeframe: "1m", Close: 300,
	}))

	require.NoError(t, r.Run())

	got, found, err := positions.Get("p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 300.0, got.CurrentUSDValue)
}

func TestRun_SkipsPositionWithNoPriceData(t *testing.T) {
	r, positions, _, _ := newTestSetup(t)

	require.NoError(t, positions.Upsert(position.Position{
		ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: position.StatusActive,
	}))

	require.NoError(t, r.Run(), "missing price data must not error the cycle")

	got, _, err := positions.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.CurrentUSDValue)
}

func TestRun_DiscrepancyAppendsReconciliationNoteAndCorrectsQuantity(t *testing.T) {
	r, positions, prices, strands := newTestSetup(t)

	require.NoError(t, positions.Upsert(position.Position{
		ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: position.StatusActive,
		TotalTokensBought: 10, TotalTokensSold: 2, TotalQuantity: 10, TotalAllocationUSD: 100,
	}))
	require.NoError(t, prices.PutMinute(priceingest.Row{TokenContract: "0xabc", Chain: "eth", PriceUSD: 5}))

	require.NoError(t, r.Run())

	got, _, err := positions.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.TotalQuantity, "expected quantity should win over stale stored quantity")

	notes, err := strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindReconciliationNote}})
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestName(t *testing.T) {
	r, _, _, _ := newTestSetup(t)
	assert.Equal(t, "reconciliation_engine", r.Name())
}
