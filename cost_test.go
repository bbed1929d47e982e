package llmrelay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPricing() ModelInfo {
	return ModelInfo{
		InputPrice:       3.0,
		OutputPrice:      15.0,
		CacheWritesPrice: 3.75,
		CacheReadsPrice:  0.3,
	}
}

func TestCalculateCostAnthropic(t *testing.T) {
	info := testPricing()

	breakdown := CalculateCostAnthropic(info, 1000, 500, 2000, 3000)

	assert.InDelta(t, 0.0189, breakdown.TotalCost, 1e-9)
	assert.Equal(t, 6000, breakdown.TotalInputTokens)
}

func TestCalculateCostOpenAI(t *testing.T) {
	info := testPricing()

	// Cache-inclusive input: the same realized traffic as the Anthropic case
	// reports input as the sum of all input-side tokens.
	breakdown := CalculateCostOpenAI(info, 6000, 500, 2000, 3000)

	assert.InDelta(t, 0.0189, breakdown.TotalCost, 1e-9)
	assert.Equal(t, 6000, breakdown.TotalInputTokens)
}

func TestCalculateCostOpenAI_CacheExceedsInput(t *testing.T) {
	info := testPricing()

	// Reported cache counts can exceed the input count; billable input
	// clamps at zero rather than going negative.
	breakdown := CalculateCostOpenAI(info, 100, 0, 80, 80)

	expected := 80*3.75/1e6 + 80*0.3/1e6
	assert.InDelta(t, expected, breakdown.TotalCost, 1e-9)
}

func TestCalculateCost_MissingPrices(t *testing.T) {
	var info ModelInfo

	breakdown := CalculateCostAnthropic(info, 1000, 500, 2000, 3000)

	assert.Equal(t, 0.0, breakdown.TotalCost)
	assert.False(t, math.IsNaN(breakdown.TotalCost))
}

func TestPricingForContext_Tiers(t *testing.T) {
	higherInput := 6.0
	info := ModelInfo{
		ContextWindow: 1_000_000,
		InputPrice:    3.0,
		OutputPrice:   15.0,
		Tiers: []PricingTier{
			{ContextWindow: 200_000},
			{ContextWindow: 1_000_000, InputPrice: &higherInput},
		},
	}

	tests := []struct {
		name          string
		inputTokens   int
		expectedInput float64
	}{
		{"below first threshold", 100_000, 3.0},
		{"exactly first threshold", 200_000, 3.0},
		{"above first threshold", 200_001, 6.0},
		{"large context", 900_000, 6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breakdown := CalculateCostAnthropic(info, tt.inputTokens, 0, 0, 0)
			expected := float64(tt.inputTokens) * tt.expectedInput / 1e6
			assert.InDelta(t, expected, breakdown.TotalCost, 1e-9)
		})
	}
}

func TestPricingForServiceTier(t *testing.T) {
	priorityInput := 6.0
	priorityOutput := 30.0
	info := ModelInfo{
		InputPrice:  3.0,
		OutputPrice: 15.0,
		Tiers: []PricingTier{
			{ServiceTier: "priority", InputPrice: &priorityInput, OutputPrice: &priorityOutput},
		},
	}

	substituted := info.PricingForServiceTier("priority")
	breakdown := CalculateCostOpenAI(substituted, 1000, 100, 0, 0)
	assert.InDelta(t, 1000*6.0/1e6+100*30.0/1e6, breakdown.TotalCost, 1e-9)

	// Unknown tier names leave base prices untouched.
	unchanged := info.PricingForServiceTier("flex")
	breakdown = CalculateCostOpenAI(unchanged, 1000, 100, 0, 0)
	assert.InDelta(t, 1000*3.0/1e6+100*15.0/1e6, breakdown.TotalCost, 1e-9)
}

func TestUsageAccumulator(t *testing.T) {
	var acc UsageAccumulator
	require.False(t, acc.Seen)

	cw, cr := 2000, 3000
	acc.Add(UsageDelta{InputTokens: 1000, CacheWriteTokens: &cw, CacheReadTokens: &cr})
	acc.Add(UsageDelta{OutputTokens: 500})

	require.True(t, acc.Seen)
	assert.Equal(t, 1000, acc.InputTokens)
	assert.Equal(t, 500, acc.OutputTokens)
	assert.InDelta(t, 0.0189, acc.Cost(testPricing(), false), 1e-9)
}
