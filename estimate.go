package llmrelay

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoderOnce sync.Once
	tokenEncoder     *tiktoken.Tiktoken
)

// CountTokens approximates the token count of text. It uses the cl100k_base
// encoding when available and otherwise falls back to the characters/4
// heuristic. The result is an estimate, not an authoritative vendor count.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	tokenEncoderOnce.Do(func() {
		// May fail when the encoding data cannot be loaded; the heuristic
		// path below covers that.
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenEncoder = enc
		}
	})
	if tokenEncoder != nil {
		return len(tokenEncoder.Encode(text, nil, nil))
	}
	return heuristicTokens(len(text))
}

// CountRequestTokens approximates the input token count of a full request:
// system prompt, message text, tool inputs and results, and tool schemas.
// Used for budget tracking and context-window management ahead of a call,
// where an approximation beats waiting for the vendor's authoritative count.
func CountRequestTokens(req *CreateRequest) int {
	if req == nil {
		return 0
	}
	total := CountTokens(req.System)
	for _, msg := range req.Messages {
		for _, block := range msg.Blocks {
			total += CountTokens(block.Text)
			total += CountTokens(string(block.ToolInput))
		}
	}
	for _, tool := range req.Tools {
		if schema, err := json.Marshal(tool); err == nil {
			total += CountTokens(string(schema))
		}
	}
	return total
}

// EstimateUsage produces fallback usage for streams that never reported
// token counts: input from prompt character length divided by 4, output from
// the configured max tokens divided by 10. An explicit approximation so the
// caller sees nonzero usage instead of silence.
func EstimateUsage(promptChars, maxTokens int) UsageDelta {
	return UsageDelta{
		InputTokens:  promptChars / 4,
		OutputTokens: maxTokens / 10,
	}
}

func heuristicTokens(chars int) int {
	return (chars + 3) / 4
}
