package wallet

import "context"

// FakeChainRPC is a deterministic, no-network ChainRPC used as a default
// when no real chain RPC endpoint is configured. It reports a constant
// zero balance rather than reaching out to a provider (out of scope).
type FakeChainRPC struct{}

func (FakeChainRPC) GetBalance(_ context.Context, _ string, _ *string) (float64, error) {
	return 0, nil
}

// FakeMarginClient is the perpetual-venue analogue of FakeChainRPC.
type FakeMarginClient struct{}

func (FakeMarginClient) MarginBalanceUSD(_ context.Context) (float64, error) {
	return 0, nil
}
