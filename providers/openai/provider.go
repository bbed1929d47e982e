// Package openai implements the OpenAI Chat Completions adapter and the
// shared streaming core reused by every OpenAI-compatible provider variant
// (OpenRouter, Mistral, DeepSeek, Groq, and the rest of the compatible
// endpoint table). It also hosts the OpenAI Responses API adapter.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

const defaultBaseURL = "https://api.openai.com/v1"

// systemRoleAverseModelPrefixes names models documented to prefer user-turn
// prompts over system-role messages. Configuration data, not control flow.
var systemRoleAverseModelPrefixes = []string{
	"o1",
	"deepseek-reasoner",
}

// CoreConfig configures the shared chat-completions core. Provider variants
// differ only in this data: endpoint, headers, model table, extra body
// fields.
type CoreConfig struct {
	Provider llmrelay.ProviderID
	// Label prefixes error messages, e.g. "OpenAI", "DeepSeek".
	Label   string
	BaseURL string
	// Headers are added to every request in addition to auth.
	Headers map[string]string
	Table   llmrelay.ModelTable
	// DefaultModelID overrides the table default when the table carries none
	// (compatible endpoints without an embedded table).
	DefaultModelID string
	Settings       llmrelay.Settings
	Format         llmrelay.Format
	// ExtraBody fields are merged into the request JSON verbatim.
	ExtraBody  map[string]any
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Core is the generic OpenAI-compatible adapter. Concrete variants are
// built by calling NewCore with their own CoreConfig rather than by
// inheritance.
type Core struct {
	cfg        CoreConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCore builds a chat-completions adapter from cfg.
func NewCore(cfg CoreConfig) (*Core, error) {
	if cfg.Settings.APIKey == "" && cfg.Settings.AuthToken == "" {
		return nil, llmrelay.ErrInvalidAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Settings.BaseURL != "" {
		cfg.BaseURL = cfg.Settings.BaseURL
	}
	if cfg.Label == "" {
		cfg.Label = "OpenAI"
	}
	if cfg.Format == "" {
		cfg.Format = llmrelay.FormatOpenAI
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Core{cfg: cfg, httpClient: httpClient, logger: logger}, nil
}

// New builds the plain OpenAI Chat Completions adapter.
func New(settings llmrelay.Settings, logger *zap.Logger) (*Core, error) {
	table, _ := llmrelay.ModelsFor(llmrelay.ProviderOpenAI)
	return NewCore(CoreConfig{
		Provider: llmrelay.ProviderOpenAI,
		Label:    "OpenAI",
		Table:    table,
		Settings: settings,
		Logger:   logger,
	})
}

// Name returns the provider identifier this core was configured as.
func (c *Core) Name() llmrelay.ProviderID {
	return c.cfg.Provider
}

// GetModel resolves the configured model id. Unknown ids never fail.
func (c *Core) GetModel() llmrelay.ResolvedModel {
	id := c.cfg.Settings.ModelID
	if id == "" {
		id = c.cfg.DefaultModelID
	}
	return c.cfg.Table.Resolve(id)
}

// ==== wire types ====

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string         `json:"reasoning_effort,omitempty"`
	Tools               []llmrelay.Tool `json:"tools,omitempty"`
	ToolChoice          string         `json:"tool_choice,omitempty"`
	Stream              bool           `json:"stream"`
	StreamOptions       *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ==== request construction ====

func (c *Core) buildRequest(req *llmrelay.CreateRequest, model llmrelay.ResolvedModel, params llmrelay.ResolvedParams, stream bool) (*chatRequest, error) {
	systemRole := "system"
	if demoteSystemPrompt(model.ID) {
		systemRole = "user"
	}

	out := &chatRequest{
		Model:       model.ID,
		Messages:    convertMessages(req.System, req.Messages, systemRole),
		Temperature: params.Temperature,
		Stream:      stream,
	}
	if stream {
		out.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	if params.Reasoning != nil && params.Reasoning.Effort != "" {
		out.ReasoningEffort = params.Reasoning.Effort
		// Effort-reasoning models take max_completion_tokens instead.
		out.MaxCompletionTokens = params.MaxTokens
	} else {
		out.MaxTokens = params.MaxTokens
	}

	if len(req.Tools) > 0 {
		tools, err := llmrelay.NormalizeToolsStrict(req.Tools)
		if err != nil {
			return nil, err
		}
		out.Tools = tools
		out.ToolChoice = "auto"
	}
	return out, nil
}

func demoteSystemPrompt(modelID string) bool {
	for _, prefix := range systemRoleAverseModelPrefixes {
		if strings.HasPrefix(modelID, prefix) {
			return true
		}
	}
	return false
}

func convertMessages(system string, messages []llmrelay.Message, systemRole string) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, chatMessage{Role: systemRole, Content: system})
	}
	for _, msg := range messages {
		switch msg.Role {
		case llmrelay.RoleUser:
			out = append(out, convertUserMessage(msg)...)
		case llmrelay.RoleAssistant:
			out = append(out, convertAssistantMessage(msg))
		}
	}
	return out
}

// convertUserMessage splits tool results out of the user turn: tool-role
// messages must directly follow the assistant turn that issued the calls.
func convertUserMessage(msg llmrelay.Message) []chatMessage {
	var out []chatMessage
	var parts []contentPart
	for _, block := range msg.Blocks {
		switch block.Type {
		case llmrelay.BlockTypeToolResult:
			out = append(out, chatMessage{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    block.Text,
			})
		case llmrelay.BlockTypeText:
			parts = append(parts, contentPart{Type: "text", Text: block.Text})
		case llmrelay.BlockTypeImage:
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: "data:" + block.MediaType + ";base64," + block.Data},
			})
		}
	}
	if len(parts) == 1 && parts[0].Type == "text" {
		out = append(out, chatMessage{Role: "user", Content: parts[0].Text})
	} else if len(parts) > 0 {
		out = append(out, chatMessage{Role: "user", Content: parts})
	}
	return out
}

func convertAssistantMessage(msg llmrelay.Message) chatMessage {
	out := chatMessage{Role: "assistant"}
	var text strings.Builder
	for _, block := range msg.Blocks {
		switch block.Type {
		case llmrelay.BlockTypeText:
			text.WriteString(block.Text)
		case llmrelay.BlockTypeToolUse:
			out.ToolCalls = append(out.ToolCalls, chatToolCall{
				ID:   block.ToolUseID,
				Type: "function",
				Function: chatToolFunction{
					Name:      block.ToolName,
					Arguments: string(block.ToolInput),
				},
			})
		}
		// Thinking blocks are not replayed to chat-completions vendors.
	}
	if text.Len() > 0 {
		out.Content = text.String()
	}
	return out
}

// ==== HTTP plumbing ====

func (c *Core) post(ctx context.Context, path string, payload *chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	for key, value := range c.cfg.ExtraBody {
		if body, err = sjson.SetBytes(body, key, value); err != nil {
			return nil, fmt.Errorf("merge extra body: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	key := c.cfg.Settings.APIKey
	if c.cfg.Settings.AuthToken != "" {
		key = c.cfg.Settings.AuthToken
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llmrelay.CompletionError(c.cfg.Label, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}
	return resp, nil
}

func (c *Core) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	err := llmrelay.ClassifyHTTPStatus(c.cfg.Label, resp.StatusCode, message)
	c.logger.Warn("completion request failed",
		zap.String("provider", c.cfg.Label),
		zap.Int("status", resp.StatusCode),
		zap.Error(err))
	return err
}

// CompletePrompt runs a single-shot non-streaming completion.
func (c *Core) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	model := c.GetModel()
	params := llmrelay.ResolveParams(model, c.cfg.Settings, c.cfg.Format)
	payload, err := c.buildRequest(&llmrelay.CreateRequest{
		Messages: []llmrelay.Message{llmrelay.UserMessage(prompt)},
	}, model, params, false)
	if err != nil {
		return "", err
	}
	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llmrelay.CompletionError(c.cfg.Label, err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", llmrelay.CompletionError(c.cfg.Label, fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
