package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

// buildMessageParams constructs Messages API parameters from a request. It is
// shared between CreateMessage and CompletePrompt.
func (p *Provider) buildMessageParams(req *llmrelay.CreateRequest, model llmrelay.ResolvedModel, params llmrelay.ResolvedParams) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages, model.Info.SupportsPromptCache)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model.ID),
		Messages:  messages,
		MaxTokens: int64(params.MaxTokens),
	}

	apiParams.System = p.systemBlocks(req.System, model.Info.SupportsPromptCache)

	if params.Temperature != nil {
		apiParams.Temperature = anthropic.Float(*params.Temperature)
	}

	if params.Reasoning != nil && params.Reasoning.BudgetTokens != nil {
		apiParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(*params.Reasoning.BudgetTokens))
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		apiParams.Tools = tools
	}

	return apiParams, nil
}

// systemBlocks builds the system prompt blocks. The last block carries a
// cache breakpoint so the system prompt is written to the prompt cache once
// and read on every subsequent turn.
func (p *Provider) systemBlocks(system string, cache bool) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if p.format == llmrelay.FormatClaudeCode {
		blocks = append(blocks, anthropic.TextBlockParam{Text: claudeCodeSystemPrefix})
	}
	if system != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: system})
	}
	if len(blocks) > 0 && cache {
		blocks[len(blocks)-1].CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
	return blocks
}

// convertMessages converts library messages to SDK message params. When the
// model supports prompt caching, the last block of each of the last two user
// messages is marked as a cache breakpoint, giving the vendor a stable prefix
// to cache across agentic turns.
func convertMessages(messages []llmrelay.Message, cache bool) ([]anthropic.MessageParam, error) {
	breakpoints := map[int]bool{}
	if cache {
		remaining := 2
		for i := len(messages) - 1; i >= 0 && remaining > 0; i-- {
			if messages[i].Role == llmrelay.RoleUser {
				breakpoints[i] = true
				remaining--
			}
		}
	}

	result := make([]anthropic.MessageParam, 0, len(messages))
	for i, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
		for j, block := range msg.Blocks {
			converted, err := convertBlock(block)
			if err != nil {
				return nil, fmt.Errorf("message %d, block %d: %w", i, j, err)
			}
			blocks = append(blocks, converted)
		}
		if len(blocks) == 0 {
			continue
		}
		if breakpoints[i] {
			markCacheBreakpoint(&blocks[len(blocks)-1])
		}

		switch msg.Role {
		case llmrelay.RoleUser:
			result = append(result, anthropic.NewUserMessage(blocks...))
		case llmrelay.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}
	}
	return result, nil
}

func convertBlock(block llmrelay.Block) (anthropic.ContentBlockParamUnion, error) {
	switch block.Type {
	case llmrelay.BlockTypeText:
		return anthropic.NewTextBlock(block.Text), nil

	case llmrelay.BlockTypeToolUse:
		var input any
		if len(block.ToolInput) > 0 {
			if err := json.Unmarshal(block.ToolInput, &input); err != nil {
				return anthropic.ContentBlockParamUnion{}, fmt.Errorf("tool_use input: %w", err)
			}
		} else {
			input = map[string]any{}
		}
		return anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName), nil

	case llmrelay.BlockTypeToolResult:
		return anthropic.NewToolResultBlock(block.ToolUseID, block.Text, block.IsError), nil

	case llmrelay.BlockTypeImage:
		return anthropic.NewImageBlockBase64(block.MediaType, block.Data), nil

	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported block type %q", block.Type)
	}
}

// markCacheBreakpoint sets ephemeral cache control on whichever variant the
// union holds.
func markCacheBreakpoint(block *anthropic.ContentBlockParamUnion) {
	switch {
	case block.OfText != nil:
		block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfToolResult != nil:
		block.OfToolResult.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfToolUse != nil:
		block.OfToolUse.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfImage != nil:
		block.OfImage.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
}
