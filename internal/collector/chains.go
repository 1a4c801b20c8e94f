package collector

import "strings"

// nativeWrapper is the wrapped-native-token contract address per chain,
// used by best-pair selection (§4.3) to recognize "this token is the
// chain's own asset" vs. an arbitrary listed token. Addresses are taken
// from the original collector's hardcoded per-chain table.
var nativeWrapper = map[string]string{
	"ethereum": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", // WETH
	"base":     "0x4200000000000000000000000000000000000006", // WETH (Base)
	"bsc":      "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", // WBNB
	"solana":   "so11111111111111111111111111111111111111112", // wSOL
}

// stableQuoteSymbols is the set of stablecoin quote-token symbols
// preferred when the tracked token itself is a chain's native wrapper.
var stableQuoteSymbols = map[string]bool{
	"USDC": true,
	"USDT": true,
}

// IsNativeWrapper reports whether tokenContract is chain's native wrapper.
func IsNativeWrapper(chain, tokenContract string) bool {
	wrapper, ok := nativeWrapper[strings.ToLower(chain)]
	if !ok {
		return false
	}
	return strings.EqualFold(wrapper, tokenContract)
}

// NativeWrapperAddress returns chain's native wrapper contract, if known.
func NativeWrapperAddress(chain string) (string, bool) {
	addr, ok := nativeWrapper[strings.ToLower(chain)]
	return addr, ok
}

// IsStableQuoteSymbol reports whether symbol is a preferred stable quote.
func IsStableQuoteSymbol(symbol string) bool {
	return stableQuoteSymbols[strings.ToUpper(symbol)]
}
