package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

func TestNewCore_RequiresCredentials(t *testing.T) {
	_, err := NewCore(CoreConfig{Table: testTable()})
	assert.ErrorIs(t, err, llmrelay.ErrInvalidAPIKey)

	_, err = NewCore(CoreConfig{Table: testTable(), Settings: llmrelay.Settings{AuthToken: "tok"}})
	assert.NoError(t, err)
}

func TestBuildRequest_Defaults(t *testing.T) {
	core, err := NewCore(CoreConfig{
		Table:    testTable(),
		Settings: llmrelay.Settings{APIKey: "k"},
	})
	require.NoError(t, err)

	model := core.GetModel()
	params := llmrelay.ResolveParams(model, core.cfg.Settings, llmrelay.FormatOpenAI)
	req := &llmrelay.CreateRequest{
		System:   "be helpful",
		Messages: []llmrelay.Message{llmrelay.UserMessage("hi")},
	}

	out, err := core.buildRequest(req, model, params, true)
	require.NoError(t, err)

	assert.Equal(t, "test-model", out.Model)
	assert.True(t, out.Stream)
	require.NotNil(t, out.StreamOptions)
	assert.True(t, out.StreamOptions.IncludeUsage)

	require.Len(t, out.Messages, 2)
	assert.Equal(t, "system", out.Messages[0].Role)
	assert.Equal(t, "be helpful", out.Messages[0].Content)
	assert.Equal(t, "user", out.Messages[1].Role)
	assert.Equal(t, "hi", out.Messages[1].Content)
}

func TestBuildRequest_SystemDemotedForAverseModels(t *testing.T) {
	table := llmrelay.ModelTable{
		Provider:       "test",
		DefaultModelID: "deepseek-reasoner",
		Models: map[string]llmrelay.ModelInfo{
			"deepseek-reasoner": {ContextWindow: 64_000, MaxTokens: 8192},
		},
	}
	core, err := NewCore(CoreConfig{Table: table, Settings: llmrelay.Settings{APIKey: "k"}})
	require.NoError(t, err)

	model := core.GetModel()
	params := llmrelay.ResolveParams(model, core.cfg.Settings, llmrelay.FormatOpenAI)
	req := &llmrelay.CreateRequest{
		System:   "be helpful",
		Messages: []llmrelay.Message{llmrelay.UserMessage("hi")},
	}

	out, err := core.buildRequest(req, model, params, false)
	require.NoError(t, err)

	assert.Equal(t, "user", out.Messages[0].Role)
	assert.Equal(t, "be helpful", out.Messages[0].Content)
}

func TestBuildRequest_EffortUsesMaxCompletionTokens(t *testing.T) {
	table := llmrelay.ModelTable{
		Provider:       "test",
		DefaultModelID: "gpt-5",
		Models: map[string]llmrelay.ModelInfo{
			"gpt-5": {
				ContextWindow:           400_000,
				MaxTokens:               128_000,
				SupportsReasoningEffort: true,
				DefaultReasoningEffort:  "medium",
			},
		},
	}
	core, err := NewCore(CoreConfig{Table: table, Settings: llmrelay.Settings{APIKey: "k"}})
	require.NoError(t, err)

	model := core.GetModel()
	params := llmrelay.ResolveParams(model, core.cfg.Settings, llmrelay.FormatOpenAI)

	out, err := core.buildRequest(simpleRequest(), model, params, true)
	require.NoError(t, err)

	assert.Equal(t, "medium", out.ReasoningEffort)
	assert.Zero(t, out.MaxTokens)
	assert.Equal(t, 128_000, out.MaxCompletionTokens)
}

func TestBuildRequest_ToolsNormalizedAndChoiceSet(t *testing.T) {
	core, err := NewCore(CoreConfig{Table: testTable(), Settings: llmrelay.Settings{APIKey: "k"}})
	require.NoError(t, err)

	model := core.GetModel()
	params := llmrelay.ResolveParams(model, core.cfg.Settings, llmrelay.FormatOpenAI)
	req := simpleRequest()
	req.Tools = []llmrelay.Tool{{
		Type: "function",
		Function: llmrelay.FunctionSpec{
			Name: "lookup",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"q": map[string]any{"type": "string"},
				},
			},
		},
	}}

	out, err := core.buildRequest(req, model, params, true)
	require.NoError(t, err)

	assert.Equal(t, "auto", out.ToolChoice)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, false, out.Tools[0].Function.Parameters["additionalProperties"])
}

func TestConvertUserMessage_ToolResultsSplitOut(t *testing.T) {
	msg := llmrelay.Message{
		Role: llmrelay.RoleUser,
		Blocks: []llmrelay.Block{
			llmrelay.ToolResultBlock("t1", "result data", false),
			llmrelay.TextBlock("next question"),
		},
	}

	out := convertUserMessage(msg)

	require.Len(t, out, 2)
	assert.Equal(t, "tool", out[0].Role)
	assert.Equal(t, "t1", out[0].ToolCallID)
	assert.Equal(t, "result data", out[0].Content)
	assert.Equal(t, "user", out[1].Role)
	assert.Equal(t, "next question", out[1].Content)
}

func TestConvertAssistantMessage_ToolCalls(t *testing.T) {
	msg := llmrelay.Message{
		Role: llmrelay.RoleAssistant,
		Blocks: []llmrelay.Block{
			llmrelay.TextBlock("calling a tool"),
			llmrelay.ToolUseBlock("t1", "lookup", json.RawMessage(`{"q":"x"}`)),
		},
	}

	out := convertAssistantMessage(msg)

	assert.Equal(t, "calling a tool", out.Content)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "t1", out.ToolCalls[0].ID)
	assert.Equal(t, "lookup", out.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"q":"x"}`, out.ToolCalls[0].Function.Arguments)
}
