package collector

import (
	"strings"
	"time"

	"github.com/aristath/sentinel/internal/priceingest"
)

// ExtractPriceRow derives a price row from the selected pair per §4.3's
// "Derived fields" rule. The upstream pair always quotes price in terms
// of its base token; when the tracked token is the pair's quote side
// instead, the price is inverted and the quote symbol recorded is the
// pair's base token, not the tracked token itself. lookupPrior returns
// the latest prior row for the same (token, chain), if any, used for
// liquidity_change_1m.
func ExtractPriceRow(chain, tokenContract string, pair Pair, lookupPrior func() (priceingest.Row, bool)) priceingest.Row {
	priceUSD := pair.PriceUSD
	priceNative := pair.PriceNative
	quoteToken := pair.QuoteSymbol

	isBaseToken := !sameAddress(pair.QuoteAddress, tokenContract)
	if !isBaseToken {
		if priceUSD != 0 {
			priceUSD = 1 / priceUSD
		}
		if priceNative != 0 {
			priceNative = 1 / priceNative
		}
		quoteToken = pair.BaseSymbol
	}

	if IsNativeWrapper(chain, tokenContract) {
		priceNative = 1.0
	}

	liquidityChange := 0.0
	if prior, ok := lookupPrior(); ok {
		liquidityChange = pair.LiquidityUSD - prior.LiquidityUSD
	}

	return priceingest.Row{
		TokenContract:     tokenContract,
		Chain:             chain,
		Timestamp:         time.Now().UTC().Truncate(time.Minute),
		PriceUSD:          priceUSD,
		PriceNative:       priceNative,
		QuoteToken:        quoteToken,
		LiquidityUSD:      pair.LiquidityUSD,
		LiquidityChange1m: liquidityChange,
		Volume1m:          pair.Volume5m / 5,
		Volume5m:          pair.Volume5m,
		Volume1h:          pair.Volume1h,
		Volume6h:          pair.Volume6h,
		Volume24h:         pair.Volume24h,
		PriceChange24h:    pair.PriceChange24h,
		MarketCap:         pair.MarketCap,
		FDV:               pair.FDV,
		DexID:             pair.DexID,
		PairAddress:       pair.PairAddress,
		Source:            "dexscreener_like",
	}
}

// sameAddress compares two contract addresses case-insensitively.
func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
