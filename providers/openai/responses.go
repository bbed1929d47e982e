package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

// ResponsesProvider is the adapter for the OpenAI Responses API. Unlike the
// chat-completions core it speaks a typed event stream, supports stateless
// multi-turn reasoning via encrypted continuation tokens, and receives tool
// declarations in a flat (not nested) shape.
type ResponsesProvider struct {
	settings   llmrelay.Settings
	table      llmrelay.ModelTable
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewResponses builds a Responses API adapter.
func NewResponses(settings llmrelay.Settings, logger *zap.Logger) (*ResponsesProvider, error) {
	if settings.APIKey == "" && settings.AuthToken == "" {
		return nil, llmrelay.ErrInvalidAPIKey
	}
	baseURL := defaultBaseURL
	if settings.BaseURL != "" {
		baseURL = settings.BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	table, _ := llmrelay.ModelsFor(llmrelay.ProviderOpenAI)
	return &ResponsesProvider{
		settings:   settings,
		table:      table,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logger,
	}, nil
}

// Name returns the provider identifier.
func (p *ResponsesProvider) Name() llmrelay.ProviderID {
	return llmrelay.ProviderOpenAIResponses
}

// GetModel resolves the configured model id against the OpenAI table.
func (p *ResponsesProvider) GetModel() llmrelay.ResolvedModel {
	return p.table.Resolve(p.settings.ModelID)
}

// ==== wire types ====

type responsesRequest struct {
	Model           string              `json:"model"`
	Instructions    string              `json:"instructions,omitempty"`
	Input           []responsesInput    `json:"input"`
	Tools           []responsesTool     `json:"tools,omitempty"`
	Reasoning       *responsesReasoning `json:"reasoning,omitempty"`
	MaxOutputTokens int                 `json:"max_output_tokens,omitempty"`
	Temperature     *float64            `json:"temperature,omitempty"`
	Stream          bool                `json:"stream"`
	Store           bool                `json:"store"`
	Include         []string            `json:"include,omitempty"`
}

type responsesInput struct {
	// Conversation item fields.
	Role    string                  `json:"role,omitempty"`
	Content []responsesContentPart  `json:"content,omitempty"`
	// Typed item fields (function calls, reasoning continuations).
	Type             string `json:"type,omitempty"`
	CallID           string `json:"call_id,omitempty"`
	Name             string `json:"name,omitempty"`
	Arguments        string `json:"arguments,omitempty"`
	Output           string `json:"output,omitempty"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
}

type responsesContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// responsesTool is the Responses API's flat tool declaration.
type responsesTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Strict      bool           `json:"strict"`
}

type responsesReasoning struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type responsesEvent struct {
	Type     string             `json:"type"`
	Delta    string             `json:"delta"`
	ItemID   string             `json:"item_id"`
	Item     *responsesItem     `json:"item"`
	Response *responsesResponse `json:"response"`
}

type responsesItem struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Name             string `json:"name"`
	CallID           string `json:"call_id"`
	Arguments        string `json:"arguments"`
	EncryptedContent string `json:"encrypted_content"`
}

type responsesResponse struct {
	Usage *responsesUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type responsesUsage struct {
	InputTokens        int `json:"input_tokens"`
	OutputTokens       int `json:"output_tokens"`
	InputTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	OutputTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
}

// ==== request construction ====

func (p *ResponsesProvider) buildRequest(req *llmrelay.CreateRequest, model llmrelay.ResolvedModel, params llmrelay.ResolvedParams) (*responsesRequest, error) {
	out := &responsesRequest{
		Model:           model.ID,
		Instructions:    req.System,
		Input:           convertResponsesInput(req),
		MaxOutputTokens: params.MaxTokens,
		Temperature:     params.Temperature,
		Stream:          true,
		Store:           false,
		Include:         []string{"reasoning.encrypted_content"},
	}
	if params.Reasoning != nil && params.Reasoning.Effort != "" {
		out.Reasoning = &responsesReasoning{Effort: params.Reasoning.Effort, Summary: "auto"}
	}
	if len(req.Tools) > 0 {
		normalized, err := llmrelay.NormalizeToolsStrict(req.Tools)
		if err != nil {
			return nil, err
		}
		for _, tool := range normalized {
			out.Tools = append(out.Tools, responsesTool{
				Type:        "function",
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
				Strict:      true,
			})
		}
	}
	return out, nil
}

func convertResponsesInput(req *llmrelay.CreateRequest) []responsesInput {
	var out []responsesInput
	// Replaying the prior turn's encrypted reasoning item preserves the
	// reasoning chain across turns. The token is opaque; it is never decoded.
	if req.Metadata != nil && req.Metadata.PreviousContinuation != "" {
		out = append(out, responsesInput{
			Type:             "reasoning",
			EncryptedContent: req.Metadata.PreviousContinuation,
		})
	}
	for _, msg := range req.Messages {
		partType := "input_text"
		if msg.Role == llmrelay.RoleAssistant {
			partType = "output_text"
		}
		var parts []responsesContentPart
		for _, block := range msg.Blocks {
			switch block.Type {
			case llmrelay.BlockTypeText:
				parts = append(parts, responsesContentPart{Type: partType, Text: block.Text})
			case llmrelay.BlockTypeImage:
				parts = append(parts, responsesContentPart{
					Type:     "input_image",
					ImageURL: "data:" + block.MediaType + ";base64," + block.Data,
				})
			case llmrelay.BlockTypeToolUse:
				out = append(out, responsesInput{
					Type:      "function_call",
					CallID:    block.ToolUseID,
					Name:      block.ToolName,
					Arguments: string(block.ToolInput),
				})
			case llmrelay.BlockTypeToolResult:
				out = append(out, responsesInput{
					Type:   "function_call_output",
					CallID: block.ToolUseID,
					Output: block.Text,
				})
			}
		}
		if len(parts) > 0 {
			out = append(out, responsesInput{Role: msg.Role, Content: parts})
		}
	}
	return out
}

// ==== streaming ====

// CreateMessage opens a Responses API stream and translates its typed
// events into the uniform event sequence.
func (p *ResponsesProvider) CreateMessage(ctx context.Context, req *llmrelay.CreateRequest) (<-chan llmrelay.StreamEvent, error) {
	model := p.GetModel()
	params := llmrelay.ResolveParams(model, p.settings, llmrelay.FormatOpenAIResponses)

	payload, err := p.buildRequest(req, model, params)
	if err != nil {
		return nil, err
	}
	resp, err := p.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	events := make(chan llmrelay.StreamEvent, 10)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		if err := p.stream(ctx, resp.Body, req, model, params, events); err != nil {
			if isContextDone(err) {
				return
			}
			p.logger.Warn("stream failed", zap.String("provider", "OpenAI Responses"), zap.Error(err))
			events <- llmrelay.ErrorEvent(llmrelay.CompletionError("OpenAI Responses", err))
		}
	}()
	return events, nil
}

func (p *ResponsesProvider) stream(ctx context.Context, body io.Reader, req *llmrelay.CreateRequest, model llmrelay.ResolvedModel, params llmrelay.ResolvedParams, events chan<- llmrelay.StreamEvent) error {
	acc := llmrelay.NewToolCallAccumulator()
	var usage llmrelay.UsageAccumulator
	// The Responses stream keys argument deltas by item id, not index.
	itemIndex := make(map[string]int)
	nextIndex := 0

	err := llmrelay.ScanSSE(ctx, body, func(data string) error {
		var event responsesEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			p.logger.Debug("skipping malformed stream frame", zap.Error(err))
			return nil
		}

		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" {
				events <- llmrelay.TextEvent(event.Delta)
			}

		case "response.reasoning_text.delta", "response.reasoning_summary_text.delta":
			if event.Delta != "" {
				events <- llmrelay.ReasoningEvent(event.Delta)
			}

		case "response.output_item.added":
			if event.Item == nil || event.Item.Type != "function_call" {
				return nil
			}
			index := nextIndex
			nextIndex++
			itemIndex[event.Item.ID] = index
			id, name := event.Item.CallID, event.Item.Name
			acc.Update(index, id, name, "")
			events <- llmrelay.StreamEvent{ToolCallPartial: &llmrelay.ToolCallPartial{
				Index: index,
				ID:    &id,
				Name:  &name,
			}}

		case "response.function_call_arguments.delta":
			index, ok := itemIndex[event.ItemID]
			if !ok || event.Delta == "" {
				return nil
			}
			args := event.Delta
			acc.Update(index, "", "", args)
			events <- llmrelay.StreamEvent{ToolCallPartial: &llmrelay.ToolCallPartial{
				Index:     index,
				Arguments: &args,
			}}

		case "response.output_item.done":
			if event.Item == nil {
				return nil
			}
			switch event.Item.Type {
			case "function_call":
				if index, ok := itemIndex[event.Item.ID]; ok {
					if call, ok := acc.Complete(index); ok {
						events <- llmrelay.StreamEvent{ToolCall: &call}
					}
				}
			case "reasoning":
				if event.Item.EncryptedContent != "" {
					events <- llmrelay.StreamEvent{Continuation: &llmrelay.ContinuationDelta{
						Token: event.Item.EncryptedContent,
					}}
				}
			}

		case "response.completed", "response.done":
			if event.Response != nil && event.Response.Usage != nil {
				delta := usageFromResponses(event.Response.Usage)
				usage.Add(delta)
				events <- llmrelay.UsageEvent(delta)
			}

		case "response.failed", "error":
			message := "response failed"
			if event.Response != nil && event.Response.Error != nil {
				message = event.Response.Error.Message
			} else if m := gjson.Get(data, "message"); m.Exists() {
				message = m.String()
			}
			return fmt.Errorf("error in stream: %s", message)
		}
		// Unmapped status-only events are ignored, not errors.
		return nil
	})
	if err != nil {
		return err
	}

	if !usage.Seen {
		estimated := llmrelay.EstimateUsage(req.PromptChars(), maxTokensOrDefault(params))
		usage.Add(estimated)
		events <- llmrelay.UsageEvent(estimated)
	}
	events <- llmrelay.CostEvent(usage.Cost(model.Info, true))
	return nil
}

func usageFromResponses(u *responsesUsage) llmrelay.UsageDelta {
	delta := llmrelay.UsageDelta{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
	}
	if u.InputTokensDetails != nil && u.InputTokensDetails.CachedTokens > 0 {
		cached := u.InputTokensDetails.CachedTokens
		delta.CacheReadTokens = &cached
	}
	if u.OutputTokensDetails != nil && u.OutputTokensDetails.ReasoningTokens > 0 {
		reasoning := u.OutputTokensDetails.ReasoningTokens
		delta.ReasoningTokens = &reasoning
	}
	return delta
}

func (p *ResponsesProvider) post(ctx context.Context, payload *responsesRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	key := p.settings.APIKey
	if p.settings.AuthToken != "" {
		key = p.settings.AuthToken
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, llmrelay.CompletionError("OpenAI Responses", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		message := gjson.GetBytes(raw, "error.message").String()
		if message == "" {
			message = string(raw)
		}
		err := llmrelay.ClassifyHTTPStatus("OpenAI Responses", resp.StatusCode, message)
		p.logger.Warn("completion request failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// CompletePrompt runs a single-shot completion through the non-streaming
// chat endpoint; the Responses adapter reuses the chat core for this.
func (p *ResponsesProvider) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	core, err := NewCore(CoreConfig{
		Provider: llmrelay.ProviderOpenAIResponses,
		Label:    "OpenAI Responses",
		BaseURL:  p.baseURL,
		Table:    p.table,
		Settings: p.settings,
		Logger:   p.logger,
	})
	if err != nil {
		return "", err
	}
	return core.CompletePrompt(ctx, prompt)
}
