package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

func TestNew_KnownProviders(t *testing.T) {
	tests := []struct {
		provider llmrelay.ProviderID
		settings llmrelay.Settings
	}{
		{llmrelay.ProviderAnthropic, llmrelay.Settings{APIKey: "k"}},
		{llmrelay.ProviderClaudeCode, llmrelay.Settings{AuthToken: "t"}},
		{llmrelay.ProviderOpenAI, llmrelay.Settings{APIKey: "k"}},
		{llmrelay.ProviderOpenAIResponses, llmrelay.Settings{APIKey: "k"}},
		{llmrelay.ProviderGemini, llmrelay.Settings{APIKey: "k"}},
		{llmrelay.ProviderOpenRouter, llmrelay.Settings{APIKey: "k"}},
		{llmrelay.ProviderMistral, llmrelay.Settings{APIKey: "k"}},
		{llmrelay.ProviderLorem, llmrelay.Settings{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			adapter, err := New(llmrelay.Config{Provider: tt.provider, Settings: tt.settings})
			require.NoError(t, err)
			assert.Equal(t, tt.provider, adapter.Name())
		})
	}
}

func TestNew_CompatEndpoints(t *testing.T) {
	for provider := range compatEndpoints {
		t.Run(string(provider), func(t *testing.T) {
			adapter, err := New(llmrelay.Config{
				Provider: provider,
				Settings: llmrelay.Settings{APIKey: "k"},
			})
			require.NoError(t, err)
			assert.Equal(t, provider, adapter.Name())
		})
	}
}

func TestNew_CompatDefaultModel(t *testing.T) {
	adapter, err := New(llmrelay.Config{
		Provider: llmrelay.ProviderGroq,
		Settings: llmrelay.Settings{APIKey: "k"},
	})
	require.NoError(t, err)
	assert.Equal(t, "llama-3.3-70b-versatile", adapter.GetModel().ID)
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(llmrelay.Config{Provider: llmrelay.ProviderAnthropic})
	assert.ErrorIs(t, err, llmrelay.ErrInvalidAPIKey)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(llmrelay.Config{Provider: "telepathy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
