package collector

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/position"
	"github.com/aristath/sentinel/internal/priceingest"
	"github.com/aristath/sentinel/internal/ratelimit"
)

type stubPriceAPI struct {
	pairs []Pair
	err   error
	calls int64
}

func (s *stubPriceAPI) FetchPairs(ctx context.Context, tokenContract, chain string) ([]Pair, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.pairs, nil
}

type recordingStep struct {
	name string
	ran  int32
}

func (r *recordingStep) Name() string { return r.name }
func (r *recordingStep) Run() error {
	atomic.AddInt32(&r.ran, 1)
	return nil
}

func newTestCollector(t *testing.T, api PriceAPI, postCycle ...postCycleStep) (*Collector, *position.Store, *priceingest.Store) {
	t.Helper()
	dir := t.TempDir()

	positions, err := position.New(filepath.Join(dir, "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = positions.Close() })

	prices, err := priceingest.New(filepath.Join(dir, "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = prices.Close() })

	bucket := ratelimit.New(100)
	cfg := Config{Budget: 100, ConcurrencyCap: 4}
	c := New(cfg, positions, prices, bucket, api, zerolog.Nop(), postCycle...)
	return c, positions, prices
}

func TestCollector_Run_WritesPriceRowForScheduledToken(t *testing.T) {
	api := &stubPriceAPI{pairs: []Pair{{PairAddress: "p1", PriceUSD: 42, LiquidityUSD: 1000}}}
	c, positions, prices := newTestCollector(t, api)

	require.NoError(t, positions.Upsert(position.Position{ID: "1", TokenContract: "0xabc", TokenChain: "eth", Status: position.StatusActive}))

	require.NoError(t, c.Run())

	row, found, err := prices.Latest("0xabc", "eth")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 42.0, row.PriceUSD)
}

func TestCollector_Run_SkipsStreamingChains(t *testing.T) {
	api := &stubPriceAPI{pairs: []Pair{{PairAddress: "p1", PriceUSD: 42, LiquidityUSD: 1000}}}
	dir := t.TempDir()
	positions, err := position.New(filepath.Join(dir, "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = positions.Close() })
	prices, err := priceingest.New(filepath.Join(dir, "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = prices.Close() })

	require.NoError(t, positions.Upsert(position.Position{ID: "1", TokenContract: "0xabc", TokenChain: "hyperliquid", Status: position.StatusActive}))

	bucket := ratelimit.New(100)
	cfg := Config{Budget: 100, ConcurrencyCap: 4, StreamingChains: map[string]bool{"hyperliquid": true}}
	c := New(cfg, positions, prices, bucket, api, zerolog.Nop())

	require.NoError(t, c.Run())
	assert.Equal(t, int64(0), atomic.LoadInt64(&api.calls), "streaming-chain tokens must not be queried")
}

func TestCollector_Run_PerTokenFailureDoesNotAbortCycle(t *testing.T) {
	api := &stubPriceAPI{err: ErrRateLimited{}}
	step := &recordingStep{name: "post"}
	c, positions, _ := newTestCollector(t, api, step)

	require.NoError(t, positions.Upsert(position.Position{ID: "1", TokenContract: "0xabc", TokenChain: "eth", Status: position.StatusActive}))

	require.NoError(t, c.Run())
	assert.Equal(t, int32(1), atomic.LoadInt32(&step.ran), "post-cycle steps still run after per-token errors")
}

func TestCollector_Name(t *testing.T) {
	c, _, _ := newTestCollector(t, &stubPriceAPI{})
	assert.Equal(t, "tiered_collector", c.Name())
}
