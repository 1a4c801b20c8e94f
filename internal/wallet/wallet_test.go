package wallet

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsert_InsertsThenReplaces(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(Balance{Chain: "ethereum", BalanceUSD: 100, LastUpdated: time.Now()}))
	require.NoError(t, s.Upsert(Balance{Chain: "ethereum", BalanceUSD: 200, LastUpdated: time.Now()}))

	got, found, err := s.Get("ethereum")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 200.0, got.BalanceUSD)
}

func TestGet_ReturnsFalseForUnknownChain(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.Get("nowhere")
	require.NoError(t, err)
	assert.False(t, found)
}

type stubChainRPC struct {
	native, usdc float64
	err          error
}

func (s *stubChainRPC) GetBalance(ctx context.Context, chain string, tokenAddress *string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if tokenAddress != nil {
		return s.usdc, nil
	}
	return s.native, nil
}

type stubMarginClient struct {
	balance float64
	err     error
}

func (s *stubMarginClient) MarginBalanceUSD(ctx context.Context) (float64, error) {
	return s.balance, s.err
}

func TestRefresher_Run_UpsertsHomeChainBalance(t *testing.T) {
	store := newTestStore(t)
	rpc := &stubChainRPC{native: 2, usdc: 500}
	cfg := Config{HomeChain: "ethereum", WalletAddress: "0xwallet"}

	r := NewRefresher(cfg, rpc, nil, store, zerolog.Nop())
	require.NoError(t, r.Run())

	got, found, err := store.Get("ethereum")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2.0, got.NativeBalance)
	assert.Equal(t, 500.0, got.USDCBalance)
	assert.Equal(t, 500.0, got.BalanceUSD)
}

func TestRefresher_Run_SkipsMarginWhenPerpVenueDisabled(t *testing.T) {
	store := newTestStore(t)
	rpc := &stubChainRPC{native: 1, usdc: 1}
	margin := &stubMarginClient{balance: 999}
	cfg := Config{HomeChain: "ethereum", PerpVenueEnabled: false}

	r := NewRefresher(cfg, rpc, margin, store, zerolog.Nop())
	require.NoError(t, r.Run())

	_, found, err := store.Get("perp_venue")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRefresher_Run_RefreshesMarginWhenEnabled(t *testing.T) {
	store := newTestStore(t)
	rpc := &stubChainRPC{native: 1, usdc: 1}
	margin := &stubMarginClient{balance: 999}
	cfg := Config{HomeChain: "ethereum", PerpVenueEnabled: true}

	r := NewRefresher(cfg, rpc, margin, store, zerolog.Nop())
	require.NoError(t, r.Run())

	got, found, err := store.Get("perp_venue")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 999.0, got.BalanceUSD)
}

func TestRefresher_Run_HomeChainErrorDoesNotFailRun(t *testing.T) {
	store := newTestStore(t)
	rpc := &stubChainRPC{err: errors.New("rpc down")}
	cfg := Config{HomeChain: "ethereum"}

	r := NewRefresher(cfg, rpc, nil, store, zerolog.Nop())
	assert.NoError(t, r.Run(), "RPC failure must not fail the post-cycle step")
}

func TestName(t *testing.T) {
	r := NewRefresher(Config{}, &stubChainRPC{}, nil, newTestStore(t), zerolog.Nop())
	assert.Equal(t, "wallet_refresher", r.Name())
}
