package streamvenue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/priceingest"
)

func newTestIngester(t *testing.T) *Ingester {
	t.Helper()
	dir := t.TempDir()
	prices, err := priceingest.New(filepath.Join(dir, "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = prices.Close() })

	return New(Config{URL: "wss://example.invalid", Table: "hyperliquid_price_data_ohlc"}, prices, zerolog.Nop())
}

func TestStatus_DeadBeforeAnyMessage(t *testing.T) {
	i := newTestIngester(t)
	assert.Equal(t, "dead", i.Status())
}

func TestStatus_OKWithinTwoMinutes(t *testing.T) {
	i := newTestIngester(t)
	i.lastMessage = time.Now()
	assert.Equal(t, "ok", i.Status())
}

func TestStatus_StaleBetweenTwoAndTenMinutes(t *testing.T) {
	i := newTestIngester(t)
	i.lastMessage = time.Now().Add(-5 * time.Minute)
	assert.Equal(t, "stale", i.Status())
}

func TestStatus_DeadAfterTenMinutes(t *testing.T) {
	i := newTestIngester(t)
	i.lastMessage = time.Now().Add(-11 * time.Minute)
	assert.Equal(t, "dead", i.Status())
}

func TestMarginClient_MarginBalanceUSD_DecodesResponse(t *testing.T) {
	m := MarginClient{
		URL: "http://example.invalid/margin",
		HTTPGetter: func(ctx context.Context, url string) ([]byte, error) {
			return []byte(`{"margin_balance_usd": 1234.5}`), nil
		},
	}
	bal, err := m.MarginBalanceUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234.5, bal)
}

func TestMarginClient_MarginBalanceUSD_PropagatesGetterError(t *testing.T) {
	m := MarginClient{
		HTTPGetter: func(ctx context.Context, url string) ([]byte, error) {
			return nil, errors.New("network down")
		},
	}
	_, err := m.MarginBalanceUSD(context.Background())
	assert.Error(t, err)
}

func TestMarginClient_MarginBalanceUSD_RejectsMalformedJSON(t *testing.T) {
	m := MarginClient{
		HTTPGetter: func(ctx context.Context, url string) ([]byte, error) {
			return []byte(`not json`), nil
		},
	}
	_, err := m.MarginBalanceUSD(context.Background())
	assert.Error(t, err)
}
