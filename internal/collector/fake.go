package collector

import "context"

// FakePriceAPI is a deterministic, no-network PriceAPI used as a default
// when no upstream DEX-listed price API is configured. It returns no
// pairs rather than reaching out to a provider (out of scope).
type FakePriceAPI struct{}

func (FakePriceAPI) FetchPairs(_ context.Context, _, _ string) ([]Pair, error) {
	return nil, nil
}
