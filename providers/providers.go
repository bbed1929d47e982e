// Package providers constructs adapters from configuration. It is the only
// package that knows every concrete adapter; callers depend on the Adapter
// interface alone.
package providers

import (
	"fmt"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
	"github.com/vireo-ai/vireo-llm-go/providers/anthropic"
	"github.com/vireo-ai/vireo-llm-go/providers/gemini"
	"github.com/vireo-ai/vireo-llm-go/providers/lorem"
	"github.com/vireo-ai/vireo-llm-go/providers/mistral"
	"github.com/vireo-ai/vireo-llm-go/providers/openai"
	"github.com/vireo-ai/vireo-llm-go/providers/openrouter"
)

// compatEndpoint describes an OpenAI-compatible vendor served by the shared
// chat-completions core. Adding a provider here is a data change, not code.
type compatEndpoint struct {
	label        string
	baseURL      string
	defaultModel string
}

var compatEndpoints = map[llmrelay.ProviderID]compatEndpoint{
	llmrelay.ProviderDeepSeek:    {"DeepSeek", "https://api.deepseek.com/v1", "deepseek-chat"},
	llmrelay.ProviderGroq:        {"Groq", "https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
	llmrelay.ProviderXAI:         {"xAI", "https://api.x.ai/v1", "grok-4"},
	llmrelay.ProviderTogether:    {"Together", "https://api.together.xyz/v1", "meta-llama/Llama-3.3-70B-Instruct-Turbo"},
	llmrelay.ProviderFireworks:   {"Fireworks", "https://api.fireworks.ai/inference/v1", "accounts/fireworks/models/llama-v3p1-70b-instruct"},
	llmrelay.ProviderCerebras:    {"Cerebras", "https://api.cerebras.ai/v1", "llama-3.3-70b"},
	llmrelay.ProviderMoonshot:    {"Moonshot", "https://api.moonshot.ai/v1", "kimi-k2-0711-preview"},
	llmrelay.ProviderQwen:        {"Qwen", "https://dashscope-intl.aliyuncs.com/compatible-mode/v1", "qwen-plus"},
	llmrelay.ProviderZAI:         {"Z.AI", "https://api.z.ai/api/paas/v4", "glm-4.5"},
	llmrelay.ProviderBaseten:     {"Baseten", "https://inference.baseten.co/v1", "deepseek-ai/DeepSeek-V3-0324"},
	llmrelay.ProviderNebius:      {"Nebius", "https://api.studio.nebius.com/v1", "deepseek-ai/DeepSeek-V3-0324"},
	llmrelay.ProviderSambaNova:   {"SambaNova", "https://api.sambanova.ai/v1", "Meta-Llama-3.3-70B-Instruct"},
	llmrelay.ProviderHyperbolic:  {"Hyperbolic", "https://api.hyperbolic.xyz/v1", "meta-llama/Llama-3.3-70B-Instruct"},
	llmrelay.ProviderFeatherless: {"Featherless", "https://api.featherless.ai/v1", "meta-llama/Meta-Llama-3.1-70B-Instruct"},
}

// New builds the adapter selected by cfg.Provider.
func New(cfg llmrelay.Config) (llmrelay.Adapter, error) {
	switch cfg.Provider {
	case llmrelay.ProviderAnthropic:
		return anthropic.New(cfg.Settings, cfg.Logger)

	case llmrelay.ProviderClaudeCode:
		return anthropic.NewClaudeCode(cfg.Settings, cfg.Logger)

	case llmrelay.ProviderOpenAI:
		return openai.New(cfg.Settings, cfg.Logger)

	case llmrelay.ProviderOpenAIResponses:
		return openai.NewResponses(cfg.Settings, cfg.Logger)

	case llmrelay.ProviderGemini:
		return gemini.New(cfg.Settings, cfg.Logger)

	case llmrelay.ProviderOpenRouter:
		return openrouter.New(cfg.Settings, cfg.Logger)

	case llmrelay.ProviderMistral:
		return mistral.New(cfg.Settings, cfg.Logger)

	case llmrelay.ProviderLorem:
		return lorem.New(cfg.Settings, cfg.Logger), nil

	default:
		endpoint, ok := compatEndpoints[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
		}
		table, _ := llmrelay.ModelsFor(cfg.Provider)
		return openai.NewCore(openai.CoreConfig{
			Provider:       cfg.Provider,
			Label:          endpoint.label,
			BaseURL:        endpoint.baseURL,
			Table:          table,
			DefaultModelID: endpoint.defaultModel,
			Settings:       cfg.Settings,
			Logger:         cfg.Logger,
		})
	}
}
