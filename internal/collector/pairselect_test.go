package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBestPair_NoPairsReturnsFalse(t *testing.T) {
	_, ok := SelectBestPair("ethereum", "0xabc", nil)
	assert.False(t, ok)
}

func TestSelectBestPair_NativeWrapperPrefersStableQuote(t *testing.T) {
	weth := "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	pairs := []Pair{
		{PairAddress: "p1", QuoteSymbol: "RANDOM", LiquidityUSD: 1000},
		{PairAddress: "p2", QuoteSymbol: "USDC", LiquidityUSD: 500},
	}
	best, ok := SelectBestPair("ethereum", weth, pairs)
	require.True(t, ok)
	assert.Equal(t, "p2", best.PairAddress, "should prefer stable quote over higher liquidity")
}

func TestSelectBestPair_NonNativePrefersWrapperQuote(t *testing.T) {
	weth := "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	pairs := []Pair{
		{PairAddress: "p1", QuoteAddress: "0xother", LiquidityUSD: 1000},
		{PairAddress: "p2", QuoteAddress: weth, LiquidityUSD: 200},
	}
	best, ok := SelectBestPair("ethereum", "0xsometoken", pairs)
	require.True(t, ok)
	assert.Equal(t, "p2", best.PairAddress)
}

func TestSelectBestPair_FallsBackToHighestLiquidity(t *testing.T) {
	pairs := []Pair{
		{PairAddress: "p1", QuoteAddress: "0xother1", LiquidityUSD: 1000},
		{PairAddress: "p2", QuoteAddress: "0xother2", LiquidityUSD: 2000},
	}
	best, ok := SelectBestPair("ethereum", "0xsometoken", pairs)
	require.True(t, ok)
	assert.Equal(t, "p2", best.PairAddress)
}

func TestSelectBestPair_TiesBreakOnPairAddress(t *testing.T) {
	pairs := []Pair{
		{PairAddress: "zzz", LiquidityUSD: 100},
		{PairAddress: "aaa", LiquidityUSD: 100},
	}
	best, ok := SelectBestPair("solana", "0xsometoken", pairs)
	require.True(t, ok)
	assert.Equal(t, "aaa", best.PairAddress)
}

func TestIsNativeWrapper_CaseInsensitive(t *testing.T) {
	assert.True(t, IsNativeWrapper("Ethereum", "0xC02aaa39b223FE8D0a0e5C4F27eAD9083C756Cc2"))
	assert.False(t, IsNativeWrapper("ethereum", "0xdeadbeef"))
}

func TestIsStableQuoteSymbol(t *testing.T) {
	assert.True(t, IsStableQuoteSymbol("usdc"))
	assert.False(t, IsStableQuoteSymbol("weth"))
}
