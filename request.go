package llmrelay

import "encoding/json"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block type constants.
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeImage      = "image"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// CreateRequest contains the inputs for a streaming completion.
type CreateRequest struct {
	// System is the system prompt. Adapters place it wherever their vendor
	// expects it: a dedicated field, a reserved first-message role, or a
	// user turn for models documented to dislike system messages.
	System string

	// Messages is the conversation history, oldest first.
	Messages []Message

	// Tools available for the model to call, in OpenAI function shape.
	// Adapters translate to their vendor-native shape.
	Tools []Tool

	// Metadata carries optional per-request extensions.
	Metadata *RequestMetadata
}

// RequestMetadata holds optional per-request extensions.
type RequestMetadata struct {
	// TaskID identifies the caller's task for vendor-side attribution.
	TaskID string

	// PreviousContinuation is an opaque reasoning continuation token from a
	// prior turn, replayed verbatim for vendors with stateless multi-turn
	// reasoning. Never decoded or mutated.
	PreviousContinuation string
}

// Message is a single conversation turn.
type Message struct {
	// Role is RoleUser or RoleAssistant.
	Role string

	// Blocks is the ordered content of the turn.
	Blocks []Block
}

// Block is one content element of a message.
type Block struct {
	// Type is one of the BlockType constants.
	Type string

	// Text holds the content of text, thinking and tool_result blocks.
	Text string

	// ToolUseID links tool_use and tool_result blocks.
	ToolUseID string

	// ToolName is the function name of a tool_use block.
	ToolName string

	// ToolInput is the JSON-encoded arguments of a tool_use block.
	ToolInput json.RawMessage

	// IsError marks a failed tool_result.
	IsError bool

	// MediaType and Data describe an image block (base64 payload).
	MediaType string
	Data      string
}

// TextBlock builds a text block.
func TextBlock(text string) Block {
	return Block{Type: BlockTypeText, Text: text}
}

// ToolUseBlock builds an assistant tool_use block for history replay.
func ToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Type: BlockTypeToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock builds a user tool_result block.
func ToolResultBlock(id, content string, isError bool) Block {
	return Block{Type: BlockTypeToolResult, ToolUseID: id, Text: content, IsError: isError}
}

// UserMessage builds a single-text user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// AssistantMessage builds a single-text assistant turn.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []Block{TextBlock(text)}}
}

// PromptChars returns the approximate character length of the request's
// textual content. Used for fallback token estimation when a vendor stream
// never reports usage.
func (r *CreateRequest) PromptChars() int {
	total := len(r.System)
	for _, msg := range r.Messages {
		for _, block := range msg.Blocks {
			total += len(block.Text)
			total += len(block.ToolInput)
		}
	}
	return total
}
