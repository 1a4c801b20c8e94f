package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeChainRPC_AlwaysReturnsZero(t *testing.T) {
	rpc := FakeChainRPC{}
	bal, err := rpc.GetBalance(context.Background(), "ethereum", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, bal)
}

func TestFakeMarginClient_AlwaysReturnsZero(t *testing.T) {
	m := FakeMarginClient{}
	bal, err := m.MarginBalanceUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, bal)
}
