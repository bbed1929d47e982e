package llmrelay

// CostBreakdown is the result of a cost calculation.
type CostBreakdown struct {
	TotalCost         float64
	TotalInputTokens  int
	TotalOutputTokens int
}

// CalculateCostAnthropic computes cost under the non-cache-inclusive token
// convention: inputTokens excludes cached tokens, so billable input is
// inputTokens itself and total input is the sum of all three input buckets.
// Anthropic-family vendors report usage this way.
func CalculateCostAnthropic(info ModelInfo, inputTokens, outputTokens, cacheWriteTokens, cacheReadTokens int) CostBreakdown {
	totalInput := inputTokens + cacheWriteTokens + cacheReadTokens
	pricing := info.pricingForContext(totalInput)
	return CostBreakdown{
		TotalCost:         tokenCost(pricing, inputTokens, outputTokens, cacheWriteTokens, cacheReadTokens),
		TotalInputTokens:  totalInput,
		TotalOutputTokens: outputTokens,
	}
}

// CalculateCostOpenAI computes cost under the cache-inclusive token
// convention: inputTokens already includes cached tokens, so billable input
// is what remains after subtracting the cache buckets. OpenAI-family vendors
// report usage this way; conflating the two conventions would double- or
// under-count.
func CalculateCostOpenAI(info ModelInfo, inputTokens, outputTokens, cacheWriteTokens, cacheReadTokens int) CostBreakdown {
	billableInput := inputTokens - cacheWriteTokens - cacheReadTokens
	if billableInput < 0 {
		billableInput = 0
	}
	pricing := info.pricingForContext(inputTokens)
	return CostBreakdown{
		TotalCost:         tokenCost(pricing, billableInput, outputTokens, cacheWriteTokens, cacheReadTokens),
		TotalInputTokens:  inputTokens,
		TotalOutputTokens: outputTokens,
	}
}

type effectivePricing struct {
	input       float64
	output      float64
	cacheWrites float64
	cacheReads  float64
}

func tokenCost(p effectivePricing, input, output, cacheWrite, cacheRead int) float64 {
	cacheWritesCost := p.cacheWrites / 1_000_000 * float64(cacheWrite)
	cacheReadsCost := p.cacheReads / 1_000_000 * float64(cacheRead)
	inputCost := p.input / 1_000_000 * float64(input)
	outputCost := p.output / 1_000_000 * float64(output)
	return cacheWritesCost + cacheReadsCost + inputCost + outputCost
}

// pricingForContext selects effective prices for a realized input-token
// count: the first tier whose threshold is >= the count wins; fields absent
// from the matched tier fall back to the base prices. Missing prices stay
// zero so cost degrades to zero instead of failing.
func (info ModelInfo) pricingForContext(realizedInputTokens int) effectivePricing {
	base := effectivePricing{
		input:       info.InputPrice,
		output:      info.OutputPrice,
		cacheWrites: info.CacheWritesPrice,
		cacheReads:  info.CacheReadsPrice,
	}
	for _, tier := range info.Tiers {
		if tier.ServiceTier != "" || tier.ContextWindow <= 0 {
			continue
		}
		if realizedInputTokens <= tier.ContextWindow {
			return base.overlay(tier)
		}
	}
	return base
}

// PricingForServiceTier returns a copy of the descriptor with prices
// substituted from the named service tier, when declared. Adapters whose
// vendors report a service tier apply this before costing.
func (info ModelInfo) PricingForServiceTier(name string) ModelInfo {
	if name == "" {
		return info
	}
	for _, tier := range info.Tiers {
		if tier.ServiceTier != name {
			continue
		}
		p := effectivePricing{
			input:       info.InputPrice,
			output:      info.OutputPrice,
			cacheWrites: info.CacheWritesPrice,
			cacheReads:  info.CacheReadsPrice,
		}.overlay(tier)
		out := info
		out.InputPrice = p.input
		out.OutputPrice = p.output
		out.CacheWritesPrice = p.cacheWrites
		out.CacheReadsPrice = p.cacheReads
		out.Tiers = nil
		return out
	}
	return info
}

func (p effectivePricing) overlay(tier PricingTier) effectivePricing {
	if tier.InputPrice != nil {
		p.input = *tier.InputPrice
	}
	if tier.OutputPrice != nil {
		p.output = *tier.OutputPrice
	}
	if tier.CacheWritesPrice != nil {
		p.cacheWrites = *tier.CacheWritesPrice
	}
	if tier.CacheReadsPrice != nil {
		p.cacheReads = *tier.CacheReadsPrice
	}
	return p
}

// UsageAccumulator folds incremental usage events into stream totals so
// adapters can emit the terminal cost event from one place.
//
// Reasoning tokens are billed as output tokens. Adapters whose vendors
// report reasoning tokens excluded from the output count (Gemini) must fold
// them into OutputTokens as well; vendors that already include them
// (OpenAI completion_tokens) set ReasoningTokens for information only.
type UsageAccumulator struct {
	InputTokens      int
	OutputTokens     int
	CacheWriteTokens int
	CacheReadTokens  int
	ReasoningTokens  int
	Seen             bool
}

// Add folds one usage event into the totals.
func (a *UsageAccumulator) Add(u UsageDelta) {
	a.Seen = true
	a.InputTokens += u.InputTokens
	a.OutputTokens += u.OutputTokens
	if u.CacheWriteTokens != nil {
		a.CacheWriteTokens += *u.CacheWriteTokens
	}
	if u.CacheReadTokens != nil {
		a.CacheReadTokens += *u.CacheReadTokens
	}
	if u.ReasoningTokens != nil {
		a.ReasoningTokens += *u.ReasoningTokens
	}
}

// Cost computes the stream's total cost under the given token convention.
func (a *UsageAccumulator) Cost(info ModelInfo, cacheInclusive bool) float64 {
	if cacheInclusive {
		return CalculateCostOpenAI(info, a.InputTokens, a.OutputTokens, a.CacheWriteTokens, a.CacheReadTokens).TotalCost
	}
	return CalculateCostAnthropic(info, a.InputTokens, a.OutputTokens, a.CacheWriteTokens, a.CacheReadTokens).TotalCost
}
