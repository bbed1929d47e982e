// Package openrouter adapts the OpenRouter aggregation endpoint. OpenRouter
// speaks the Chat Completions dialect, so the adapter is a thin configuration
// of the shared core: the aggregator's base URL, attribution headers, usage
// accounting opt-in, and OpenRouter's own reasoning parameter shape.
package openrouter

import (
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
	"github.com/vireo-ai/vireo-llm-go/providers/openai"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// New builds an OpenRouter adapter.
func New(settings llmrelay.Settings, logger *zap.Logger) (*openai.Core, error) {
	table, _ := llmrelay.ModelsFor(llmrelay.ProviderOpenRouter)
	model := table.Resolve(settings.ModelID)
	params := llmrelay.ResolveParams(model, settings, llmrelay.FormatOpenAI)

	// Usage accounting is opt-in on OpenRouter; without it the stream ends
	// with no usage frame and cost would be estimated.
	extra := map[string]any{
		"usage": map[string]any{"include": true},
	}
	if reasoning := reasoningBody(params); reasoning != nil {
		extra["reasoning"] = reasoning
	}

	return openai.NewCore(openai.CoreConfig{
		Provider: llmrelay.ProviderOpenRouter,
		Label:    "OpenRouter",
		BaseURL:  defaultBaseURL,
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/vireo-ai/vireo-llm-go",
			"X-Title":      "vireo-llm-go",
		},
		Table:     table,
		Settings:  settings,
		ExtraBody: extra,
		Logger:    logger,
	})
}

// reasoningBody maps the resolved reasoning config onto OpenRouter's
// normalized reasoning object, which it translates per upstream vendor.
func reasoningBody(params llmrelay.ResolvedParams) map[string]any {
	if params.Reasoning == nil {
		return nil
	}
	if params.Reasoning.BudgetTokens != nil {
		return map[string]any{"max_tokens": *params.Reasoning.BudgetTokens}
	}
	if params.Reasoning.Effort != "" {
		return map[string]any{"effort": params.Reasoning.Effort}
	}
	return nil
}
