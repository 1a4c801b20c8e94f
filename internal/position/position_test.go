package position

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsert_InsertsThenReplaces(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(Position{ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: StatusActive}))
	require.NoError(t, s.Upsert(Position{ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: StatusDormant}))

	got, found, err := s.Get("p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusDormant, got.Status)
}

func TestGet_ReturnsFalseForUnknownID(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTrackedTokens_ExcludesClosedPositions(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(Position{ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: StatusActive}))
	require.NoError(t, s.Upsert(Position{ID: "p2", TokenContract: "0xdef", TokenChain: "eth", Status: StatusClosed}))

	tracked, err := s.TrackedTokens()
	require.NoError(t, err)
	if assert.Len(t, tracked, 1) {
		assert.Equal(t, "0xabc", tracked[0].TokenContract)
	}
}

func TestPrioritySet_MatchesTimeframeAndStatus(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(Position{ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: StatusActive, Timeframe: "1m"}))
	require.NoError(t, s.Upsert(Position{ID: "p2", TokenContract: "0xdef", TokenChain: "eth", Status: StatusActive, Timeframe: "1h"}))

	set, err := s.PrioritySet("1m")
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.True(t, set[TrackedToken{TokenContract: "0xabc", Chain: "eth"}])
}

func TestActivePositions_OnlyReturnsActiveStatus(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(Position{ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: StatusActive}))
	require.NoError(t, s.Upsert(Position{ID: "p2", TokenContract: "0xdef", TokenChain: "eth", Status: StatusWatchlist}))

	active, err := s.ActivePositions()
	require.NoError(t, err)
	if assert.Len(t, active, 1) {
		assert.Equal(t, "p1", active[0].ID)
	}
}

func TestUpdateReconciliation_WritesFieldsAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Upsert(Position{ID: "p1", TokenContract: "0xabc", TokenChain: "eth", Status: StatusActive}))

	require.NoError(t, s.UpdateReconciliation("p1", 10, 500, 50, 0.1))

	got, found, err := s.Get("p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10.0, got.TotalQuantity)
	assert.Equal(t, 500.0, got.CurrentUSDValue)
	assert.Equal(t, 50.0, got.TotalPnLUSD)
	assert.Equal(t, 0.1, got.TotalPnLPct)
	assert.WithinDuration(t, time.Now().UTC(), got.PnLLastCalculatedAt, 5*time.Second)
}

func TestDB_ExposesUnderlyingDatabase(t *testing.T) {
	s := newTestStore(t)
	assert.NotNil(t, s.DB())
}
