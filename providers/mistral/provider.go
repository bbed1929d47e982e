// Package mistral adapts the Mistral La Plateforme endpoint, an
// OpenAI-compatible Chat Completions dialect served by the shared core.
package mistral

import (
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
	"github.com/vireo-ai/vireo-llm-go/providers/openai"
)

const defaultBaseURL = "https://api.mistral.ai/v1"

// New builds a Mistral adapter.
func New(settings llmrelay.Settings, logger *zap.Logger) (*openai.Core, error) {
	table, _ := llmrelay.ModelsFor(llmrelay.ProviderMistral)
	return openai.NewCore(openai.CoreConfig{
		Provider: llmrelay.ProviderMistral,
		Label:    "Mistral",
		BaseURL:  defaultBaseURL,
		Table:    table,
		Settings: settings,
		Logger:   logger,
	})
}
