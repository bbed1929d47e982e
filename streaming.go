package llmrelay

// StreamEvent is a single event in a message stream. Exactly one of the
// variant fields is non-nil, with Error reserved for terminal failures.
//
// Adapters translate vendor-specific stream events into this union and
// guarantee arrival order: tool-call partials precede the completed call
// they contribute to, and token-count usage events precede the terminal
// usage event that carries only the total cost.
type StreamEvent struct {
	// Text contains a visible assistant output fragment.
	Text *TextDelta

	// Reasoning contains a model thinking fragment. Reasoning text is never
	// part of the final answer.
	Reasoning *ReasoningDelta

	// ToolCallPartial contains an incremental tool invocation fragment.
	ToolCallPartial *ToolCallPartial

	// ToolCall contains a fully assembled tool invocation.
	ToolCall *ToolCall

	// Usage contains token counts and, on the final event of a stream, the
	// total cost.
	Usage *UsageDelta

	// Grounding contains citation metadata for grounded responses.
	Grounding *GroundingDelta

	// Continuation carries an opaque vendor continuation token for stateless
	// multi-turn reasoning APIs. Adapter-specific extension; most adapters
	// never emit it. The token must be replayed verbatim on the next turn.
	Continuation *ContinuationDelta

	// Error is set on the last event when the stream fails. No further
	// events follow an error.
	Error error
}

// TextDelta is a fragment of visible assistant output.
type TextDelta struct {
	Text string
}

// ReasoningDelta is a fragment of model thinking output.
type ReasoningDelta struct {
	Text string
}

// ToolCallPartial is an incremental fragment of a tool invocation.
// Index is the stream-local slot for the call. ID and Name are set once,
// typically on the first fragment for an index. Arguments fragments are
// concatenated in arrival order and form a single JSON object once the
// call completes.
type ToolCallPartial struct {
	Index     int
	ID        *string
	Name      *string
	Arguments *string
}

// ToolCall is a fully assembled tool invocation, ready to dispatch.
// Arguments is a JSON object encoded as a string.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// UsageDelta reports token usage. It may be emitted multiple times during a
// stream; the terminal usage event carries only TotalCost, after all token
// counts have been reported.
type UsageDelta struct {
	InputTokens      int
	OutputTokens     int
	CacheWriteTokens *int
	CacheReadTokens  *int
	ReasoningTokens  *int
	TotalCost        *float64
}

// GroundingSource is a single cited source.
type GroundingSource struct {
	Title string
	URL   string
}

// GroundingDelta carries citation metadata attached to a response.
type GroundingDelta struct {
	Sources []GroundingSource
}

// ContinuationDelta carries an opaque reasoning continuation token.
type ContinuationDelta struct {
	Token string
}

// TextEvent wraps a text fragment in a StreamEvent.
func TextEvent(text string) StreamEvent {
	return StreamEvent{Text: &TextDelta{Text: text}}
}

// ReasoningEvent wraps a reasoning fragment in a StreamEvent.
func ReasoningEvent(text string) StreamEvent {
	return StreamEvent{Reasoning: &ReasoningDelta{Text: text}}
}

// UsageEvent wraps token counts in a StreamEvent.
func UsageEvent(u UsageDelta) StreamEvent {
	return StreamEvent{Usage: &u}
}

// CostEvent builds the terminal usage event carrying only the total cost.
func CostEvent(totalCost float64) StreamEvent {
	return StreamEvent{Usage: &UsageDelta{TotalCost: &totalCost}}
}

// ErrorEvent wraps a terminal stream error.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Error: err}
}
