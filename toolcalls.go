package llmrelay

import "strings"

// ToolCallAccumulator reassembles fragmented tool-call deltas into complete
// tool calls, keyed by stream-local index. It is request-scoped: created
// when a stream opens, discarded when it ends.
//
// An explicit map keeps missing or out-of-order indices detectable; the
// accumulator never relies on slice growth to imply ordering.
type ToolCallAccumulator struct {
	entries map[int]*toolCallState
	order   []int
}

type toolCallState struct {
	id        string
	name      string
	arguments strings.Builder
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{entries: make(map[int]*toolCallState)}
}

// Update folds one fragment into the entry for index, creating it on first
// sight. ID and name are recorded when non-empty; argument fragments are
// appended in arrival order.
func (a *ToolCallAccumulator) Update(index int, id, name, arguments string) {
	entry, ok := a.entries[index]
	if !ok {
		entry = &toolCallState{}
		a.entries[index] = entry
		a.order = append(a.order, index)
	}
	if id != "" {
		entry.id = id
	}
	if name != "" {
		entry.name = name
	}
	if arguments != "" {
		entry.arguments.WriteString(arguments)
	}
}

// Complete resolves the entry for index into a finished tool call and
// removes it. A completion signal for an unknown index is a vendor protocol
// violation; it is dropped silently rather than crashing the stream.
func (a *ToolCallAccumulator) Complete(index int) (ToolCall, bool) {
	entry, ok := a.entries[index]
	if !ok {
		return ToolCall{}, false
	}
	delete(a.entries, index)
	for i, idx := range a.order {
		if idx == index {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return entry.toolCall(), true
}

// Drain resolves every remaining entry in first-sight order and empties the
// accumulator. Used by adapters whose vendors signal completion only by
// ending the stream.
func (a *ToolCallAccumulator) Drain() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		calls = append(calls, a.entries[idx].toolCall())
	}
	a.entries = make(map[int]*toolCallState)
	a.order = nil
	return calls
}

// Len returns the number of in-flight entries.
func (a *ToolCallAccumulator) Len() int {
	return len(a.entries)
}

func (s *toolCallState) toolCall() ToolCall {
	args := s.arguments.String()
	if args == "" {
		args = "{}"
	}
	return ToolCall{ID: s.id, Name: s.name, Arguments: args}
}
