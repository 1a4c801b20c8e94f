package collector

import (
	"testing"

	"github.com/aristath/sentinel/internal/priceingest"
	"github.com/stretchr/testify/assert"
)

func TestExtractPriceRow_PinsNativeWrapperPriceTo1(t *testing.T) {
	weth := "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	pair := Pair{PriceNative: 0.5, PriceUSD: 3000}

	row := ExtractPriceRow("ethereum", weth, pair, func() (priceingest.Row, bool) { return priceingest.Row{}, false })
	assert.Equal(t, 1.0, row.PriceNative)
}

func TestExtractPriceRow_ComputesLiquidityChangeFromPrior(t *testing.T) {
	pair := Pair{LiquidityUSD: 1200}
	prior := priceingest.Row{LiquidityUSD: 1000}

	row := ExtractPriceRow("ethereum", "0xabc", pair, func() (priceingest.Row, bool) { return prior, true })
	assert.Equal(t, 200.0, row.LiquidityChange1m)
}

func TestExtractPriceRow_ZeroLiquidityChangeWithNoPrior(t *testing.T) {
	pair := Pair{LiquidityUSD: 1200}
	row := ExtractPriceRow("ethereum", "0xabc", pair, func() (priceingest.Row, bool) { return priceingest.Row{}, false })
	assert.Equal(t, 0.0, row.LiquidityChange1m)
}

func TestExtractPriceRow_Volume1mIsVolume5mDividedByFive(t *testing.T) {
	pair := Pair{Volume5m: 50}
	row := ExtractPriceRow("ethereum", "0xabc", pair, func() (priceingest.Row, bool) { return priceingest.Row{}, false })
	assert.Equal(t, 10.0, row.Volume1m)
}

func TestExtractPriceRow_BaseTokenKeepsPriceAndQuoteSymbolAsIs(t *testing.T) {
	pair := Pair{
		QuoteAddress: "0xquote",
		QuoteSymbol:  "USDC",
		BaseSymbol:   "FOO",
		PriceUSD:     2.0,
		PriceNative:  0.001,
	}
	row := ExtractPriceRow("ethereum", "0xbase", pair, func() (priceingest.Row, bool) { return priceingest.Row{}, false })
	assert.Equal(t, 2.0, row.PriceUSD)
	assert.Equal(t, 0.001, row.PriceNative)
	assert.Equal(t, "USDC", row.QuoteToken)
}

func TestExtractPriceRow_QuoteTokenInvertsPriceAndRecordsBaseSymbol(t *testing.T) {
	pair := Pair{
		QuoteAddress: "0xQUOTE",
		QuoteSymbol:  "USDC",
		BaseSymbol:   "FOO",
		PriceUSD:     2.0,
		PriceNative:  0.001,
	}
	row := ExtractPriceRow("ethereum", "0xquote", pair, func() (priceingest.Row, bool) { return priceingest.Row{}, false })
	assert.Equal(t, 0.5, row.PriceUSD)
	assert.Equal(t, 1000.0, row.PriceNative)
	assert.Equal(t, "FOO", row.QuoteToken)
}
