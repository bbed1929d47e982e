package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

// CreateMessage opens a streaming completion and translates content-block
// events into the uniform event sequence. The channel closes when the stream
// completes; failures arrive as a final error event. Context cancellation is
// a clean early close, not an error.
func (p *Provider) CreateMessage(ctx context.Context, req *llmrelay.CreateRequest) (<-chan llmrelay.StreamEvent, error) {
	client, err := p.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	model := p.GetModel()
	params := llmrelay.ResolveParams(model, p.settings, p.format)

	apiParams, err := p.buildMessageParams(req, model, params)
	if err != nil {
		return nil, err
	}

	events := make(chan llmrelay.StreamEvent, 10)
	go func() {
		defer close(events)

		stream := client.Messages.NewStreaming(ctx, apiParams)
		acc := llmrelay.NewToolCallAccumulator()
		var usage llmrelay.UsageAccumulator

		for stream.Next() {
			for _, event := range translateEvent(stream.Current(), acc, &usage) {
				select {
				case <-ctx.Done():
					return
				case events <- event:
				}
			}
		}

		if err := stream.Err(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			classified := classifySDKError(p.label(), err)
			p.logger.Warn("stream failed", zap.String("provider", p.label()), zap.Error(classified))
			events <- llmrelay.ErrorEvent(llmrelay.CompletionError(p.label(), classified))
			return
		}

		for _, call := range acc.Drain() {
			events <- llmrelay.StreamEvent{ToolCall: &call}
		}
		if !usage.Seen {
			estimated := llmrelay.EstimateUsage(req.PromptChars(), params.MaxTokens)
			usage.Add(estimated)
			events <- llmrelay.UsageEvent(estimated)
		}
		events <- llmrelay.CostEvent(usage.Cost(model.Info, false))
	}()

	return events, nil
}

// translateEvent maps one vendor stream event onto zero or more uniform
// events, tracking tool-call assembly and token usage along the way.
func translateEvent(event anthropic.MessageStreamEventUnion, acc *llmrelay.ToolCallAccumulator, usage *llmrelay.UsageAccumulator) []llmrelay.StreamEvent {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		delta := llmrelay.UsageDelta{
			InputTokens: int(e.Message.Usage.InputTokens),
		}
		if e.Message.Usage.CacheCreationInputTokens > 0 {
			cw := int(e.Message.Usage.CacheCreationInputTokens)
			delta.CacheWriteTokens = &cw
		}
		if e.Message.Usage.CacheReadInputTokens > 0 {
			cr := int(e.Message.Usage.CacheReadInputTokens)
			delta.CacheReadTokens = &cr
		}
		usage.Add(delta)
		return []llmrelay.StreamEvent{llmrelay.UsageEvent(delta)}

	case anthropic.ContentBlockStartEvent:
		if e.ContentBlock.Type != "tool_use" {
			return nil
		}
		index := int(e.Index)
		id, name := e.ContentBlock.ID, e.ContentBlock.Name
		acc.Update(index, id, name, "")
		return []llmrelay.StreamEvent{{ToolCallPartial: &llmrelay.ToolCallPartial{
			Index: index,
			ID:    &id,
			Name:  &name,
		}}}

	case anthropic.ContentBlockDeltaEvent:
		switch e.Delta.Type {
		case "text_delta":
			return []llmrelay.StreamEvent{llmrelay.TextEvent(e.Delta.Text)}
		case "thinking_delta":
			return []llmrelay.StreamEvent{llmrelay.ReasoningEvent(e.Delta.Thinking)}
		case "input_json_delta":
			if e.Delta.PartialJSON == "" {
				return nil
			}
			index := int(e.Index)
			args := e.Delta.PartialJSON
			acc.Update(index, "", "", args)
			return []llmrelay.StreamEvent{{ToolCallPartial: &llmrelay.ToolCallPartial{
				Index:     index,
				Arguments: &args,
			}}}
		}
		// signature_delta carries verification metadata, not content.
		return nil

	case anthropic.ContentBlockStopEvent:
		if call, ok := acc.Complete(int(e.Index)); ok {
			return []llmrelay.StreamEvent{{ToolCall: &call}}
		}
		return nil

	case anthropic.MessageDeltaEvent:
		if e.Usage.OutputTokens == 0 {
			return nil
		}
		delta := llmrelay.UsageDelta{OutputTokens: int(e.Usage.OutputTokens)}
		usage.Add(delta)
		return []llmrelay.StreamEvent{llmrelay.UsageEvent(delta)}

	default:
		// message_stop and ping carry nothing the consumer needs.
		return nil
	}
}

// classifySDKError maps SDK transport errors onto the shared error taxonomy
// so callers can test with errors.Is regardless of adapter.
func classifySDKError(provider string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmrelay.ClassifyHTTPStatus(provider, apiErr.StatusCode, apiErr.Error())
	}
	return err
}
