package llmrelay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsFor_EmbeddedTables(t *testing.T) {
	tests := []struct {
		provider     ProviderID
		defaultModel string
	}{
		{ProviderAnthropic, "claude-sonnet-4-5"},
		{ProviderOpenAI, "gpt-5"},
		{ProviderGemini, "gemini-2.5-pro"},
		{ProviderOpenRouter, "anthropic/claude-sonnet-4.5"},
		{ProviderMistral, "mistral-large-latest"},
		{ProviderDeepSeek, "deepseek-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.provider.String(), func(t *testing.T) {
			table, ok := ModelsFor(tt.provider)
			require.True(t, ok)
			assert.Equal(t, tt.defaultModel, table.DefaultModelID)

			info, ok := table.Models[table.DefaultModelID]
			require.True(t, ok)
			assert.Positive(t, info.ContextWindow)
			assert.Positive(t, info.MaxTokens)
		})
	}
}

func TestModelsFor_UnknownProvider(t *testing.T) {
	_, ok := ModelsFor(ProviderGroq)
	assert.False(t, ok)
}

func TestModelTable_Resolve(t *testing.T) {
	table := ModelTable{
		Provider:       "test",
		DefaultModelID: "model-a",
		Models: map[string]ModelInfo{
			"model-a": {ContextWindow: 100_000, MaxTokens: 4096},
			"model-b": {ContextWindow: 200_000, MaxTokens: 8192},
		},
	}

	tests := []struct {
		name   string
		id     string
		wantID string
	}{
		{"empty id resolves default", "", "model-a"},
		{"known id resolves itself", "model-b", "model-b"},
		{"unknown id falls back to default", "model-z", "model-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := table.Resolve(tt.id)
			assert.Equal(t, tt.wantID, resolved.ID)
			assert.Positive(t, resolved.Info.ContextWindow)
		})
	}
}

func TestModelTable_Resolve_Synthesized(t *testing.T) {
	resolved := ModelTable{}.Resolve("totally-unknown")

	assert.Equal(t, "totally-unknown", resolved.ID)
	assert.Equal(t, 128_000, resolved.Info.ContextWindow)
	assert.True(t, resolved.Info.SupportsNativeTools)
	assert.Zero(t, resolved.Info.InputPrice)
}

func TestLoadModelTableFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	data := []byte(`provider: custom-test
default_model: my-model
models:
  my-model:
    context_window: 32000
    max_tokens: 2048
    input_price: 1.5
    output_price: 4.5
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, LoadModelTableFromFile(path))

	table, ok := ModelsFor(ProviderID("custom-test"))
	require.True(t, ok)
	info := table.Models["my-model"]
	assert.Equal(t, 32_000, info.ContextWindow)
	assert.Equal(t, 1.5, info.InputPrice)
}

func TestLoadModelTableFromFile_MissingProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_model: x\n"), 0o644))

	assert.Error(t, LoadModelTableFromFile(path))
}

func TestRegisterModelTable(t *testing.T) {
	RegisterModelTable(ModelTable{
		Provider:       "registered-test",
		DefaultModelID: "m",
		Models:         map[string]ModelInfo{"m": {ContextWindow: 1000, MaxTokens: 100}},
	})

	table, ok := ModelsFor(ProviderID("registered-test"))
	require.True(t, ok)
	assert.Equal(t, "m", table.DefaultModelID)
}

func TestAnthropicLongContextTier(t *testing.T) {
	table, ok := ModelsFor(ProviderAnthropic)
	require.True(t, ok)

	info, ok := table.Models["claude-sonnet-4-5-1m"]
	require.True(t, ok)
	require.NotEmpty(t, info.Tiers)

	// Above the 200k threshold the long-context tier prices apply.
	base := CalculateCostAnthropic(info, 100_000, 0, 0, 0)
	long := CalculateCostAnthropic(info, 300_000, 0, 0, 0)
	assert.Greater(t, long.TotalCost/3, base.TotalCost)
}
