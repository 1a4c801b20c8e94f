package collector

import "context"

// Pair is one candidate trading pair returned by the upstream DEX-listed
// price API for a queried token contract (§6.1).
type Pair struct {
	ChainID      string
	BaseSymbol   string
	BaseAddress  string
	QuoteSymbol  string
	QuoteAddress string
	PriceNative  float64
	PriceUSD     float64
	LiquidityUSD float64
	Volume5m     float64
	Volume1h     float64
	Volume6h     float64
	Volume24h    float64
	PriceChange24h float64
	MarketCap    float64
	FDV          float64
	DexID        string
	PairAddress  string
}

// PriceAPI is the upstream DEX-listed price API client contract (§6.1).
// Its concrete HTTP implementation is out of scope (§1 Non-goals); only
// the rate contract and response shape matter to the collector.
type PriceAPI interface {
	// FetchPairs returns every candidate pair for tokenContract on chain,
	// or an error. A 429 response must be surfaced as ErrRateLimited so
	// the collector can count it as a non-retriable failure this cycle.
	FetchPairs(ctx context.Context, tokenContract, chain string) ([]Pair, error)
}

// ErrRateLimited is returned by PriceAPI.FetchPairs on HTTP 429.
type ErrRateLimited struct{}

func (ErrRateLimited) Error() string { return "upstream price api: rate limited (429)" }
