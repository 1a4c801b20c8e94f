package collector

import "sort"

// SelectBestPair implements §4.3's best-pair selection rule.
//
//   - If t is the chain's native wrapper token: pick the highest-liquidity
//     pair whose quote symbol is in {USDC, USDT}; fall back to overall
//     highest liquidity.
//   - Otherwise: pick the highest-liquidity pair whose quote address
//     equals the chain's native wrapper; fall back to overall highest
//     liquidity.
//
// Ties break on highest liquidity_usd, then lexicographically smallest
// pair_address.
func SelectBestPair(chain, tokenContract string, pairs []Pair) (Pair, bool) {
	if len(pairs) == 0 {
		return Pair{}, false
	}

	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LiquidityUSD != sorted[j].LiquidityUSD {
			return sorted[i].LiquidityUSD > sorted[j].LiquidityUSD
		}
		return sorted[i].PairAddress < sorted[j].PairAddress
	})

	isNative := IsNativeWrapper(chain, tokenContract)

	var preferred []Pair
	if isNative {
		for _, p := range sorted {
			if IsStableQuoteSymbol(p.QuoteSymbol) {
				preferred = append(preferred, p)
			}
		}
	} else {
		wrapper, ok := NativeWrapperAddress(chain)
		if ok {
			for _, p := range sorted {
				if equalFoldAddr(p.QuoteAddress, wrapper) {
					preferred = append(preferred, p)
				}
			}
		}
	}

	if len(preferred) > 0 {
		return preferred[0], true
	}
	return sorted[0], true
}

func equalFoldAddr(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
