// Package billing estimates run cost from token counts.
package billing

import (
	"fmt"

	"github.com/your-org/promptchain/pkg/chain"
)

// RateCard defines pricing in USD per 1000 tokens.
type RateCard struct {
	USDPer1KTokens float64
}

// Invoice is the cost estimate for one run.
type Invoice struct {
	Chain          string  `json:"chain"`
	Steps          int     `json:"steps"`
	Tokens         int     `json:"tokens"`
	USDPer1KTokens float64 `json:"usd_per_1k_tokens"`
	AmountUSD      float64 `json:"amount_usd"`
}

func NewRateCard(usdPer1K float64) (RateCard, error) {
	if usdPer1K < 0 {
		return RateCard{}, fmt.Errorf("negative price is invalid")
	}
	return RateCard{USDPer1KTokens: usdPer1K}, nil
}

// Enabled reports whether the card has a non-zero price.
func (r RateCard) Enabled() bool { return r.USDPer1KTokens > 0 }

// Invoice prices a trace. Estimated token counts are priced like reported ones.
func (r RateCard) Invoice(tr chain.Trace) Invoice {
	amount := (float64(tr.TotalTokens) / 1000.0) * r.USDPer1KTokens
	return Invoice{
		Chain:          tr.Name,
		Steps:          len(tr.Steps),
		Tokens:         tr.TotalTokens,
		USDPer1KTokens: r.USDPer1KTokens,
		AmountUSD:      amount,
	}
}

func (i Invoice) String() string {
	return fmt.Sprintf("%d tokens x $%.4f/1k = $%.4f", i.Tokens, i.USDPer1KTokens, i.AmountUSD)
}
