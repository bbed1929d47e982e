package llmrelay

import (
	"context"

	"go.uber.org/zap"
)

// Adapter is the uniform contract every provider implements.
//
// CreateMessage opens a streaming completion and returns a channel of
// StreamEvent. The channel is closed when the stream completes or fails; a
// failure is delivered as a final event with Error set. Adapters never retry
// internally - the caller owns retry policy. Cancelling ctx stops the stream
// promptly with a clean early close (no cancellation error event).
//
// CompletePrompt is a non-streaming single-shot convenience call used for
// one-off completions such as internal summarization.
//
// GetModel resolves the configured model id against the provider's model
// table. Unknown ids never fail: they resolve to the provider default or a
// synthesized minimal descriptor.
type Adapter interface {
	CreateMessage(ctx context.Context, req *CreateRequest) (<-chan StreamEvent, error)
	CompletePrompt(ctx context.Context, prompt string) (string, error)
	GetModel() ResolvedModel
	Name() ProviderID
}

// ProviderID identifies a provider configuration key. Using a typed constant
// prevents typos and keeps the adapter set closed.
type ProviderID string

// Known provider identifiers. Providers without a dedicated adapter are
// OpenAI-compatible endpoints served by the shared chat-completions core.
const (
	ProviderAnthropic       ProviderID = "anthropic"
	ProviderClaudeCode      ProviderID = "claude-code"
	ProviderOpenAI          ProviderID = "openai"
	ProviderOpenAIResponses ProviderID = "openai-responses"
	ProviderGemini          ProviderID = "gemini"
	ProviderOpenRouter      ProviderID = "openrouter"
	ProviderMistral         ProviderID = "mistral"
	ProviderDeepSeek        ProviderID = "deepseek"
	ProviderGroq            ProviderID = "groq"
	ProviderXAI             ProviderID = "xai"
	ProviderTogether        ProviderID = "together"
	ProviderFireworks       ProviderID = "fireworks"
	ProviderCerebras        ProviderID = "cerebras"
	ProviderMoonshot        ProviderID = "moonshot"
	ProviderQwen            ProviderID = "qwen"
	ProviderZAI             ProviderID = "zai"
	ProviderBaseten         ProviderID = "baseten"
	ProviderNebius          ProviderID = "nebius"
	ProviderSambaNova       ProviderID = "sambanova"
	ProviderHyperbolic      ProviderID = "hyperbolic"
	ProviderFeatherless     ProviderID = "featherless"
	ProviderLorem           ProviderID = "lorem"
)

// String returns the string representation of the provider ID.
func (p ProviderID) String() string {
	return string(p)
}

// Config selects and configures an adapter. The factory in the providers
// package maps Provider to the matching constructor.
type Config struct {
	Provider ProviderID
	Settings Settings

	// Logger receives provider diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Settings holds the user-facing knobs shared by all adapters. Fields that
// do not apply to a given provider are ignored by it.
type Settings struct {
	// ModelID selects the model. Empty resolves to the provider default.
	ModelID string

	// APIKey authenticates with the provider.
	APIKey string

	// AuthToken, when set, is sent as a bearer Authorization header instead
	// of the provider's API-key header. Used for proxied or token-rotating
	// configurations.
	AuthToken string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// MaxTokens overrides the model's declared max output tokens.
	MaxTokens *int

	// Temperature overrides the per-format default sampling temperature.
	Temperature *float64

	// EnableReasoningBudget opts in to budget-based reasoning on models that
	// support but do not require it.
	EnableReasoningBudget bool

	// ReasoningBudget is the thinking token budget. Nil uses the default.
	ReasoningBudget *int

	// ReasoningEffort selects effort-based reasoning: "minimal", "low",
	// "medium" or "high". "disable" suppresses the reasoning parameter
	// entirely. Empty falls back to the model's declared default.
	ReasoningEffort string

	// ClaudeCodeMaxTokens overrides max output tokens on Claude-Code-routed
	// configurations.
	ClaudeCodeMaxTokens *int
}
