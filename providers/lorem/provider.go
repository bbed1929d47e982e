// Package lorem is a mock adapter that streams lorem ipsum text. It needs no
// API key and is used for development, demos, and exercising consumers of the
// streaming contract without burning tokens.
package lorem

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"
	"go.uber.org/zap"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

// Provider implements the Adapter interface with generated text.
type Provider struct {
	settings  llmrelay.Settings
	generator *loremgen.Lorem
	logger    *zap.Logger
}

// New creates a lorem adapter. No credentials are required.
func New(settings llmrelay.Settings, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		settings:  settings,
		generator: loremgen.New(),
		logger:    logger,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() llmrelay.ProviderID {
	return llmrelay.ProviderLorem
}

// GetModel resolves the configured model id. The lorem catalog is synthetic:
// any id is accepted, prices stay zero.
func (p *Provider) GetModel() llmrelay.ResolvedModel {
	id := p.settings.ModelID
	if id == "" {
		id = "lorem-fast"
	}
	return llmrelay.ModelTable{}.Resolve(id)
}

// streamDelay returns the inter-word delay encoded in the model name.
// lorem-slow streams 2 words/second, lorem-fast 30, anything else 10.
func streamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// CreateMessage streams generated words, rotating text, reasoning, and a tool
// call when the request declares tools, then finishes with fake usage and a
// zero cost event.
func (p *Provider) CreateMessage(ctx context.Context, req *llmrelay.CreateRequest) (<-chan llmrelay.StreamEvent, error) {
	model := p.GetModel()
	delay := streamDelay(model.ID)

	events := make(chan llmrelay.StreamEvent, 10)
	go func() {
		defer close(events)

		outputTokens := 0
		emit := func(event llmrelay.StreamEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case events <- event:
				return true
			}
		}

		if !p.streamWords(ctx, events, delay, 20, llmrelay.TextEvent, &outputTokens) {
			return
		}
		if !p.streamWords(ctx, events, delay, 20, llmrelay.ReasoningEvent, &outputTokens) {
			return
		}
		if len(req.Tools) > 0 {
			if !p.streamToolCall(emit, req.Tools[0]) {
				return
			}
			outputTokens += 20
		}
		if !p.streamWords(ctx, events, delay, 20, llmrelay.TextEvent, &outputTokens) {
			return
		}

		usage := llmrelay.UsageDelta{
			InputTokens:  llmrelay.CountRequestTokens(req),
			OutputTokens: outputTokens,
		}
		if !emit(llmrelay.UsageEvent(usage)) {
			return
		}
		emit(llmrelay.CostEvent(0))
	}()
	return events, nil
}

// streamWords emits targetWords single-word fragments with the model's delay
// between them. Returns false when the consumer cancelled.
func (p *Provider) streamWords(ctx context.Context, events chan<- llmrelay.StreamEvent, delay time.Duration, targetWords int, wrap func(string) llmrelay.StreamEvent, outputTokens *int) bool {
	text := p.generator.Sentence(targetWords, targetWords)
	for i, word := range strings.Fields(text) {
		fragment := word
		if i > 0 {
			fragment = " " + word
		}
		select {
		case <-ctx.Done():
			return false
		case events <- wrap(fragment):
			*outputTokens++
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
	return true
}

// streamToolCall emits a realistic partial-then-complete sequence for the
// first declared tool, with generated argument values.
func (p *Provider) streamToolCall(emit func(llmrelay.StreamEvent) bool, tool llmrelay.Tool) bool {
	id := "toolu_" + uuid.NewString()
	name := tool.Function.Name
	args, err := json.Marshal(map[string]any{"query": p.generator.Word(2, 8)})
	if err != nil {
		args = []byte("{}")
	}
	argsStr := string(args)

	if !emit(llmrelay.StreamEvent{ToolCallPartial: &llmrelay.ToolCallPartial{
		Index: 0,
		ID:    &id,
		Name:  &name,
	}}) {
		return false
	}
	if !emit(llmrelay.StreamEvent{ToolCallPartial: &llmrelay.ToolCallPartial{
		Index:     0,
		Arguments: &argsStr,
	}}) {
		return false
	}
	return emit(llmrelay.StreamEvent{ToolCall: &llmrelay.ToolCall{
		ID:        id,
		Name:      name,
		Arguments: argsStr,
	}})
}

// CompletePrompt returns a paragraph of generated text.
func (p *Provider) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return p.generator.Paragraph(3, 5), nil
}
