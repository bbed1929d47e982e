package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

type chatChunk struct {
	Model       string        `json:"model"`
	ServiceTier string        `json:"service_tier"`
	Choices     []chunkChoice `json:"choices"`
	Usage       *chatUsage    `json:"usage"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content *string `json:"content"`
	// ReasoningContent is DeepSeek-style; Reasoning is OpenRouter-style.
	ReasoningContent *string         `json:"reasoning_content"`
	Reasoning        *string         `json:"reasoning"`
	ToolCalls        []toolCallDelta `json:"tool_calls"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// CreateMessage opens a streaming completion and translates the vendor's SSE
// deltas into the uniform event sequence.
func (c *Core) CreateMessage(ctx context.Context, req *llmrelay.CreateRequest) (<-chan llmrelay.StreamEvent, error) {
	model := c.GetModel()
	params := llmrelay.ResolveParams(model, c.cfg.Settings, c.cfg.Format)

	payload, err := c.buildRequest(req, model, params, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	events := make(chan llmrelay.StreamEvent, 10)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		if err := c.streamChat(ctx, resp.Body, req, model, params, events); err != nil {
			if isContextDone(err) {
				// Caller cancelled: stop yielding promptly, no error event.
				return
			}
			c.logger.Warn("stream failed", zap.String("provider", c.cfg.Label), zap.Error(err))
			events <- llmrelay.ErrorEvent(llmrelay.CompletionError(c.cfg.Label, err))
		}
	}()
	return events, nil
}

func (c *Core) streamChat(ctx context.Context, body io.Reader, req *llmrelay.CreateRequest, model llmrelay.ResolvedModel, params llmrelay.ResolvedParams, events chan<- llmrelay.StreamEvent) error {
	matcher := llmrelay.NewTagMatcher("think")
	acc := llmrelay.NewToolCallAccumulator()
	var usage llmrelay.UsageAccumulator
	serviceTier := ""

	err := llmrelay.ScanSSE(ctx, body, func(data string) error {
		// A 200 stream can still carry an explicit vendor error payload;
		// that terminates the stream, unlike mere parse noise.
		if msg := gjson.Get(data, "error.message"); msg.Exists() {
			return fmt.Errorf("error in stream: %s", msg.String())
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream frame",
				zap.String("provider", c.cfg.Label), zap.Error(err))
			return nil
		}
		if chunk.ServiceTier != "" {
			serviceTier = chunk.ServiceTier
		}

		if chunk.Usage != nil {
			delta := usageFromChat(chunk.Usage)
			usage.Add(delta)
			events <- llmrelay.UsageEvent(delta)
		}

		if len(chunk.Choices) == 0 {
			return nil
		}
		delta := chunk.Choices[0].Delta

		if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
			events <- llmrelay.ReasoningEvent(*delta.ReasoningContent)
		}
		if delta.Reasoning != nil && *delta.Reasoning != "" {
			events <- llmrelay.ReasoningEvent(*delta.Reasoning)
		}
		if delta.Content != nil && *delta.Content != "" {
			for _, span := range matcher.Update(*delta.Content) {
				events <- spanEvent(span)
			}
		}

		for _, tc := range delta.ToolCalls {
			partial := llmrelay.ToolCallPartial{Index: tc.Index}
			if tc.ID != "" {
				id := tc.ID
				partial.ID = &id
			}
			if tc.Function.Name != "" {
				name := tc.Function.Name
				partial.Name = &name
			}
			if tc.Function.Arguments != "" {
				args := tc.Function.Arguments
				partial.Arguments = &args
			}
			events <- llmrelay.StreamEvent{ToolCallPartial: &partial}
			acc.Update(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, span := range matcher.Final() {
		events <- spanEvent(span)
	}
	for _, call := range acc.Drain() {
		call := call
		events <- llmrelay.StreamEvent{ToolCall: &call}
	}

	if !usage.Seen {
		estimated := llmrelay.EstimateUsage(req.PromptChars(), maxTokensOrDefault(params))
		usage.Add(estimated)
		events <- llmrelay.UsageEvent(estimated)
	}

	info := model.Info.PricingForServiceTier(serviceTier)
	events <- llmrelay.CostEvent(usage.Cost(info, true))
	return nil
}

func usageFromChat(u *chatUsage) llmrelay.UsageDelta {
	delta := llmrelay.UsageDelta{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
	}
	if u.PromptTokensDetails != nil && u.PromptTokensDetails.CachedTokens > 0 {
		cached := u.PromptTokensDetails.CachedTokens
		delta.CacheReadTokens = &cached
	}
	if u.CompletionTokensDetails != nil && u.CompletionTokensDetails.ReasoningTokens > 0 {
		reasoning := u.CompletionTokensDetails.ReasoningTokens
		delta.ReasoningTokens = &reasoning
	}
	return delta
}

func spanEvent(span llmrelay.TagSpan) llmrelay.StreamEvent {
	if span.Matched {
		return llmrelay.ReasoningEvent(span.Data)
	}
	return llmrelay.TextEvent(span.Data)
}

func maxTokensOrDefault(params llmrelay.ResolvedParams) int {
	if params.MaxTokens > 0 {
		return params.MaxTokens
	}
	return llmrelay.DefaultMaxTokens
}

func isContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
