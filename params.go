package llmrelay

import (
	"math"
	"strings"
)

// Format identifies the target protocol family a request is shaped for.
type Format string

const (
	FormatAnthropic       Format = "anthropic"
	FormatOpenAI          Format = "openai"
	FormatOpenAIResponses Format = "openai-responses"
	FormatGemini          Format = "gemini"
	FormatClaudeCode      Format = "claude-code"
)

// Resolver defaults. Exported so adapters and callers agree on the
// protocol-level constants.
const (
	// DefaultMaxTokens substitutes for models that declare no max output
	// tokens when the target format requires one.
	DefaultMaxTokens = 4096

	// DefaultReasoningBudget is the thinking token budget when the user has
	// not configured one.
	DefaultReasoningBudget = 8192

	// AnthropicReasoningMaxTokens is the fixed max-output default for
	// budget-reasoning Anthropic-family contexts, irrespective of the
	// model's nominal max.
	AnthropicReasoningMaxTokens = 16384

	// ClaudeCodeDefaultMaxTokens is the max-output default for
	// Claude-Code-routed configurations.
	ClaudeCodeDefaultMaxTokens = 8192

	// minReasoningBudget is the smallest budget Anthropic-family vendors
	// accept.
	minReasoningBudget = 1024

	// maxTokensContextFraction caps explicit max tokens at a fraction of the
	// context window, an anti-runaway-cost guard.
	maxTokensContextFraction = 0.2
)

// maxTokenCapExemptPrefixes names model families exempt from the
// context-fraction cap. Configuration data, not control flow: extend the
// list rather than branching on model names elsewhere.
var maxTokenCapExemptPrefixes = []string{
	"gpt-5",
}

// ReasoningEffortDisabled suppresses effort-based reasoning entirely.
const ReasoningEffortDisabled = "disable"

// ReasoningConfig is the reasoning parameter derived for a request. Exactly
// one of BudgetTokens or Effort is set.
type ReasoningConfig struct {
	BudgetTokens *int
	Effort       string
}

// ResolvedParams are the effective request parameters for one call.
// MaxTokens of zero means the field is omitted from the vendor request;
// Temperature nil likewise.
type ResolvedParams struct {
	MaxTokens   int
	Temperature *float64
	Reasoning   *ReasoningConfig
}

// ResolveParams derives effective request parameters from a model's declared
// capabilities and user settings, per target protocol family. Pure: the same
// inputs always produce the same output, and the descriptor is never
// mutated.
func ResolveParams(model ResolvedModel, settings Settings, format Format) ResolvedParams {
	params := ResolvedParams{}
	params.Reasoning = resolveReasoning(model.Info, settings)
	params.MaxTokens = resolveMaxTokens(model, settings, format, params.Reasoning)
	params.Temperature = resolveTemperature(settings, params.Reasoning)
	return params
}

func resolveReasoning(info ModelInfo, settings Settings) *ReasoningConfig {
	// A mandated budget wins over every user toggle.
	if info.RequiredReasoningBudget {
		budget := reasoningBudget(settings)
		return &ReasoningConfig{BudgetTokens: &budget}
	}
	if info.SupportsReasoningBudget && settings.EnableReasoningBudget {
		budget := reasoningBudget(settings)
		return &ReasoningConfig{BudgetTokens: &budget}
	}
	if info.SupportsReasoningEffort && settings.ReasoningEffort != ReasoningEffortDisabled {
		effort := settings.ReasoningEffort
		if effort == "" {
			effort = info.DefaultReasoningEffort
		}
		if effort == "" {
			return nil
		}
		if len(info.ReasoningEfforts) > 0 && !containsString(info.ReasoningEfforts, effort) {
			return nil
		}
		return &ReasoningConfig{Effort: effort}
	}
	return nil
}

func reasoningBudget(settings Settings) int {
	budget := DefaultReasoningBudget
	if settings.ReasoningBudget != nil && *settings.ReasoningBudget > 0 {
		budget = *settings.ReasoningBudget
	}
	if budget < minReasoningBudget {
		budget = minReasoningBudget
	}
	return budget
}

func resolveMaxTokens(model ResolvedModel, settings Settings, format Format, reasoning *ReasoningConfig) int {
	if format == FormatClaudeCode {
		if settings.ClaudeCodeMaxTokens != nil && *settings.ClaudeCodeMaxTokens > 0 {
			return *settings.ClaudeCodeMaxTokens
		}
		return ClaudeCodeDefaultMaxTokens
	}

	budgeted := reasoning != nil && reasoning.BudgetTokens != nil
	if budgeted && (format == FormatAnthropic) {
		if settings.MaxTokens != nil && *settings.MaxTokens > 0 {
			return *settings.MaxTokens
		}
		return AnthropicReasoningMaxTokens
	}

	maxTokens := model.Info.MaxTokens
	if settings.MaxTokens != nil && *settings.MaxTokens > 0 {
		maxTokens = *settings.MaxTokens
	}
	if maxTokens > 0 {
		if limit := contextFractionCap(model.Info.ContextWindow); limit > 0 && maxTokens > limit && !capExempt(model.ID) {
			maxTokens = limit
		}
		return maxTokens
	}
	if formatRequiresMaxTokens(format) {
		return DefaultMaxTokens
	}
	return 0
}

func contextFractionCap(contextWindow int) int {
	if contextWindow <= 0 {
		return 0
	}
	return int(math.Ceil(float64(contextWindow) * maxTokensContextFraction))
}

func capExempt(modelID string) bool {
	for _, prefix := range maxTokenCapExemptPrefixes {
		if strings.HasPrefix(modelID, prefix) {
			return true
		}
	}
	return false
}

func formatRequiresMaxTokens(format Format) bool {
	return format == FormatAnthropic || format == FormatClaudeCode
}

func resolveTemperature(settings Settings, reasoning *ReasoningConfig) *float64 {
	// Budgeted thinking requires temperature 1 on Anthropic-family APIs,
	// even when the caller configured something else.
	if reasoning != nil && reasoning.BudgetTokens != nil {
		one := 1.0
		return &one
	}
	return settings.Temperature
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
