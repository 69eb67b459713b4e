package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/promptchain/pkg/chain"
)

func TestInvoice(t *testing.T) {
	card, err := NewRateCard(0.5)
	require.NoError(t, err)
	require.True(t, card.Enabled())

	inv := card.Invoice(chain.Trace{Name: "c", Steps: make([]chain.StepRecord, 3), TotalTokens: 2500})
	assert.Equal(t, 3, inv.Steps)
	assert.InDelta(t, 1.25, inv.AmountUSD, 1e-9)
	assert.Equal(t, "2500 tokens x $0.5000/1k = $1.2500", inv.String())

	_, err = NewRateCard(-1)
	assert.Error(t, err)
	assert.False(t, RateCard{}.Enabled())
}
