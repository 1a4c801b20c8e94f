package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakePriceAPI_FetchPairsReturnsEmpty(t *testing.T) {
	api := FakePriceAPI{}
	pairs, err := api.FetchPairs(context.Background(), "0xabc", "eth")
	require.NoError(t, err)
	assert.Nil(t, pairs)
}
