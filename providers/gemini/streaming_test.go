package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

func sseServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.Contains(t, r.URL.Path, ":streamGenerateContent")
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			_, _ = w.Write([]byte("data: " + frame + "\n\n"))
		}
	}))
}

func providerFor(t *testing.T, server *httptest.Server) *Provider {
	t.Helper()
	p, err := New(llmrelay.Settings{APIKey: "test-key", BaseURL: server.URL}, nil)
	require.NoError(t, err)
	return p
}

func collectEvents(t *testing.T, events <-chan llmrelay.StreamEvent) []llmrelay.StreamEvent {
	t.Helper()
	var out []llmrelay.StreamEvent
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func simpleRequest() *llmrelay.CreateRequest {
	return &llmrelay.CreateRequest{
		Messages: []llmrelay.Message{llmrelay.UserMessage("hi")},
	}
}

func TestCreateMessage_TextThoughtAndUsage(t *testing.T) {
	server := sseServer(t, []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"planning","thought":true}]}}],"usageMetadata":{"promptTokenCount":40,"candidatesTokenCount":0}}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"},{"text":" world"}]}}],"usageMetadata":{"promptTokenCount":100,"candidatesTokenCount":50,"thoughtsTokenCount":20}}`,
	})
	defer server.Close()

	events, err := providerFor(t, server).CreateMessage(context.Background(), simpleRequest())
	require.NoError(t, err)
	got := collectEvents(t, events)

	var text, reasoning string
	var tokenUsage *llmrelay.UsageDelta
	var cost *llmrelay.UsageDelta
	for _, event := range got {
		assert.NoError(t, event.Error)
		if event.Text != nil {
			text += event.Text.Text
		}
		if event.Reasoning != nil {
			reasoning += event.Reasoning.Text
		}
		if event.Usage != nil && event.Usage.TotalCost == nil {
			tokenUsage = event.Usage
		}
		if event.Usage != nil && event.Usage.TotalCost != nil {
			cost = event.Usage
		}
	}

	assert.Equal(t, "Hello world", text)
	assert.Equal(t, "planning", reasoning)

	// Cumulative usage: only the last chunk's counts survive, with thought
	// tokens folded into output.
	require.NotNil(t, tokenUsage)
	assert.Equal(t, 100, tokenUsage.InputTokens)
	assert.Equal(t, 70, tokenUsage.OutputTokens)
	require.NotNil(t, tokenUsage.ReasoningTokens)
	assert.Equal(t, 20, *tokenUsage.ReasoningTokens)
	require.NotNil(t, cost)
}

func TestCreateMessage_FunctionCallArrivesWhole(t *testing.T) {
	server := sseServer(t, []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"lookup","args":{"q":"x"}}}]}}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5}}`,
	})
	defer server.Close()

	events, err := providerFor(t, server).CreateMessage(context.Background(), simpleRequest())
	require.NoError(t, err)
	got := collectEvents(t, events)

	var call *llmrelay.ToolCall
	for _, event := range got {
		assert.Nil(t, event.ToolCallPartial, "arguments arrive whole, never fragmented")
		if event.ToolCall != nil {
			call = event.ToolCall
		}
	}
	require.NotNil(t, call)
	assert.NotEmpty(t, call.ID)
	assert.Equal(t, "lookup", call.Name)
	assert.JSONEq(t, `{"q":"x"}`, call.Arguments)
}

func TestCreateMessage_EmptyFunctionArgs(t *testing.T) {
	server := sseServer(t, []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"ping"}}]}}]}`,
	})
	defer server.Close()

	events, err := providerFor(t, server).CreateMessage(context.Background(), simpleRequest())
	require.NoError(t, err)
	got := collectEvents(t, events)

	var call *llmrelay.ToolCall
	for _, event := range got {
		if event.ToolCall != nil {
			call = event.ToolCall
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, "{}", call.Arguments)
}

func TestCreateMessage_GroundingSources(t *testing.T) {
	server := sseServer(t, []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"answer"}]},"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://example.com","title":"Example"}},{}]}}]}`,
	})
	defer server.Close()

	events, err := providerFor(t, server).CreateMessage(context.Background(), simpleRequest())
	require.NoError(t, err)
	got := collectEvents(t, events)

	var sources []llmrelay.GroundingSource
	for _, event := range got {
		if event.Grounding != nil {
			sources = event.Grounding.Sources
		}
	}
	require.Len(t, sources, 1)
	assert.Equal(t, llmrelay.GroundingSource{Title: "Example", URL: "https://example.com"}, sources[0])
}

func TestCreateMessage_CachedContentTokens(t *testing.T) {
	server := sseServer(t, []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]}}],"usageMetadata":{"promptTokenCount":100,"candidatesTokenCount":10,"cachedContentTokenCount":60}}`,
	})
	defer server.Close()

	events, err := providerFor(t, server).CreateMessage(context.Background(), simpleRequest())
	require.NoError(t, err)
	got := collectEvents(t, events)

	var tokenUsage *llmrelay.UsageDelta
	for _, event := range got {
		if event.Usage != nil && event.Usage.TotalCost == nil {
			tokenUsage = event.Usage
		}
	}
	require.NotNil(t, tokenUsage)
	require.NotNil(t, tokenUsage.CacheReadTokens)
	assert.Equal(t, 60, *tokenUsage.CacheReadTokens)
}

func TestCreateMessage_ErrorChunkTerminates(t *testing.T) {
	server := sseServer(t, []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"partial"}]}}]}`,
		`{"error":{"code":503,"message":"model overloaded","status":"UNAVAILABLE"}}`,
	})
	defer server.Close()

	events, err := providerFor(t, server).CreateMessage(context.Background(), simpleRequest())
	require.NoError(t, err)
	got := collectEvents(t, events)

	last := got[len(got)-1]
	require.Error(t, last.Error)
	assert.Contains(t, last.Error.Error(), "model overloaded")
}

func TestCreateMessage_MissingUsageIsEstimated(t *testing.T) {
	server := sseServer(t, []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]}}]}`,
	})
	defer server.Close()

	events, err := providerFor(t, server).CreateMessage(context.Background(), simpleRequest())
	require.NoError(t, err)
	got := collectEvents(t, events)

	var tokenUsage *llmrelay.UsageDelta
	for _, event := range got {
		if event.Usage != nil && event.Usage.TotalCost == nil {
			tokenUsage = event.Usage
		}
	}
	require.NotNil(t, tokenUsage)
	assert.Greater(t, tokenUsage.OutputTokens, 0)
}

func TestCreateMessage_HTTPErrorClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer server.Close()

	p, err := New(llmrelay.Settings{APIKey: "test-key", BaseURL: server.URL}, nil)
	require.NoError(t, err)
	_, err = p.CreateMessage(context.Background(), simpleRequest())
	assert.ErrorIs(t, err, llmrelay.ErrInvalidAPIKey)
}

func TestBuildRequest(t *testing.T) {
	budget := 4096
	p, err := New(llmrelay.Settings{
		APIKey:                "k",
		EnableReasoningBudget: true,
		ReasoningBudget:       &budget,
	}, nil)
	require.NoError(t, err)

	req := &llmrelay.CreateRequest{
		System:   "be helpful",
		Messages: []llmrelay.Message{llmrelay.UserMessage("hi")},
		Tools: []llmrelay.Tool{{
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
		}},
	}
	params := llmrelay.ResolveParams(p.GetModel(), p.settings, llmrelay.FormatGemini)

	out, err := p.buildRequest(req, params)
	require.NoError(t, err)

	require.NotNil(t, out.SystemInstruction)
	assert.Equal(t, "be helpful", out.SystemInstruction.Parts[0].Text)
	require.Len(t, out.Tools, 1)
	require.Len(t, out.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "lookup", out.Tools[0].FunctionDeclarations[0].Name)
	require.NotNil(t, out.GenerationConfig)
	require.NotNil(t, out.GenerationConfig.ThinkingConfig)
	assert.Equal(t, 4096, out.GenerationConfig.ThinkingConfig.ThinkingBudget)
	assert.True(t, out.GenerationConfig.ThinkingConfig.IncludeThoughts)
}

func TestConvertContents_ToolRoundTrip(t *testing.T) {
	contents := convertContents([]llmrelay.Message{
		llmrelay.UserMessage("look it up"),
		{Role: llmrelay.RoleAssistant, Blocks: []llmrelay.Block{
			llmrelay.ToolUseBlock("call_1", "lookup", json.RawMessage(`{"q":"x"}`)),
		}},
		{Role: llmrelay.RoleUser, Blocks: []llmrelay.Block{
			llmrelay.ToolResultBlock("call_1", "found it", false),
		}},
	})

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "lookup", contents[1].Parts[0].FunctionCall.Name)

	response := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, response)
	assert.Equal(t, "lookup", response.Name)
	assert.Equal(t, map[string]any{"result": "found it"}, response.Response)
}

func TestConvertContents_ErrorResult(t *testing.T) {
	contents := convertContents([]llmrelay.Message{
		{Role: llmrelay.RoleAssistant, Blocks: []llmrelay.Block{
			llmrelay.ToolUseBlock("call_1", "lookup", json.RawMessage(`{}`)),
		}},
		{Role: llmrelay.RoleUser, Blocks: []llmrelay.Block{
			llmrelay.ToolResultBlock("call_1", "boom", true),
		}},
	})

	require.Len(t, contents, 2)
	response := contents[1].Parts[0].FunctionResponse
	require.NotNil(t, response)
	assert.Equal(t, map[string]any{"error": "boom"}, response.Response)
}
