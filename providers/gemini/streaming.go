package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

// ==== stream wire types ====

type streamChunk struct {
	Candidates    []streamCandidate `json:"candidates"`
	UsageMetadata *usageMetadata    `json:"usageMetadata"`
	Error         *apiError         `json:"error"`
}

type streamCandidate struct {
	Content           *geminiContent     `json:"content"`
	FinishReason      string             `json:"finishReason"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata"`
}

type usageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks"`
}

type groundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// CreateMessage opens a streaming generateContent call and translates Gemini
// chunks into the uniform event sequence.
func (p *Provider) CreateMessage(ctx context.Context, req *llmrelay.CreateRequest) (<-chan llmrelay.StreamEvent, error) {
	model := p.GetModel()
	params := llmrelay.ResolveParams(model, p.settings, llmrelay.FormatGemini)

	payload, err := p.buildRequest(req, params)
	if err != nil {
		return nil, err
	}
	resp, err := p.post(ctx, "/models/"+model.ID+":streamGenerateContent?alt=sse", payload)
	if err != nil {
		return nil, err
	}

	events := make(chan llmrelay.StreamEvent, 10)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		if err := p.stream(ctx, resp.Body, req, model, params, events); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			p.logger.Warn("stream failed", zap.String("provider", "Gemini"), zap.Error(err))
			events <- llmrelay.ErrorEvent(llmrelay.CompletionError("Gemini", err))
		}
	}()
	return events, nil
}

func (p *Provider) stream(ctx context.Context, body io.Reader, req *llmrelay.CreateRequest, model llmrelay.ResolvedModel, params llmrelay.ResolvedParams, events chan<- llmrelay.StreamEvent) error {
	var usage llmrelay.UsageAccumulator

	err := llmrelay.ScanSSE(ctx, body, func(data string) error {
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			p.logger.Debug("skipping malformed stream frame", zap.Error(err))
			return nil
		}
		if chunk.Error != nil {
			return fmt.Errorf("error in stream: %s", chunk.Error.Message)
		}

		for _, candidate := range chunk.Candidates {
			if candidate.Content != nil {
				for _, part := range candidate.Content.Parts {
					emitPart(part, events)
				}
			}
			if g := candidate.GroundingMetadata; g != nil && len(g.GroundingChunks) > 0 {
				sources := make([]llmrelay.GroundingSource, 0, len(g.GroundingChunks))
				for _, gc := range g.GroundingChunks {
					if gc.Web != nil {
						sources = append(sources, llmrelay.GroundingSource{
							Title: gc.Web.Title,
							URL:   gc.Web.URI,
						})
					}
				}
				if len(sources) > 0 {
					events <- llmrelay.StreamEvent{Grounding: &llmrelay.GroundingDelta{Sources: sources}}
				}
			}
		}

		// Gemini repeats cumulative usage on every chunk; only the last one
		// counts, so replace rather than accumulate.
		if chunk.UsageMetadata != nil {
			usage = llmrelay.UsageAccumulator{}
			usage.Add(usageFromMetadata(chunk.UsageMetadata))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !usage.Seen {
		estimated := llmrelay.EstimateUsage(req.PromptChars(), params.MaxTokens)
		usage.Add(estimated)
	}
	events <- llmrelay.UsageEvent(llmrelay.UsageDelta{
		InputTokens:     usage.InputTokens,
		OutputTokens:    usage.OutputTokens,
		CacheReadTokens: intPtrIfPositive(usage.CacheReadTokens),
		ReasoningTokens: intPtrIfPositive(usage.ReasoningTokens),
	})
	events <- llmrelay.CostEvent(usage.Cost(model.Info, true))
	return nil
}

// emitPart maps one candidate part onto an event. Thought parts become
// reasoning; functionCall parts arrive whole, so the completed tool call is
// emitted directly with a synthetic id.
func emitPart(part geminiPart, events chan<- llmrelay.StreamEvent) {
	switch {
	case part.FunctionCall != nil:
		args := string(part.FunctionCall.Args)
		if args == "" {
			args = "{}"
		}
		events <- llmrelay.StreamEvent{ToolCall: &llmrelay.ToolCall{
			ID:        uuid.NewString(),
			Name:      part.FunctionCall.Name,
			Arguments: args,
		}}
	case part.Text != "" && part.Thought:
		events <- llmrelay.ReasoningEvent(part.Text)
	case part.Text != "":
		events <- llmrelay.TextEvent(part.Text)
	}
}

// usageFromMetadata converts Gemini usage. candidatesTokenCount excludes
// thought tokens, so they are folded into the output count to keep output
// billing whole.
func usageFromMetadata(u *usageMetadata) llmrelay.UsageDelta {
	delta := llmrelay.UsageDelta{
		InputTokens:  u.PromptTokenCount,
		OutputTokens: u.CandidatesTokenCount + u.ThoughtsTokenCount,
	}
	if u.ThoughtsTokenCount > 0 {
		thoughts := u.ThoughtsTokenCount
		delta.ReasoningTokens = &thoughts
	}
	if u.CachedContentTokenCount > 0 {
		cached := u.CachedContentTokenCount
		delta.CacheReadTokens = &cached
	}
	return delta
}

func intPtrIfPositive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
