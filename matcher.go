package llmrelay

import "strings"

// TagSpan is one segment of classified stream text. Matched spans fall
// between the opening and closing tag; unmatched spans are ordinary text.
type TagSpan struct {
	Matched bool
	Data    string
}

// TagMatcher splits streaming text into visible and tagged spans by
// detecting a paired marker such as <think>...</think>. The opening and
// closing tags may each arrive split across chunks, down to one character
// per chunk, so the matcher buffers an incompletely matched tag boundary
// instead of scanning each chunk in isolation. A span is emitted only once
// it is unambiguous: either a full tag has been seen, or enough trailing
// text has arrived to rule out a partial tag at the buffer's end.
type TagMatcher struct {
	openTag  string
	closeTag string
	buf      string
	inside   bool
}

// NewTagMatcher builds a matcher for the given tag name, e.g. "think".
func NewTagMatcher(tag string) *TagMatcher {
	return &TagMatcher{
		openTag:  "<" + tag + ">",
		closeTag: "</" + tag + ">",
	}
}

// Update consumes one text chunk and returns the spans that became
// determinable. Characters are never lost or duplicated across calls.
func (m *TagMatcher) Update(chunk string) []TagSpan {
	m.buf += chunk
	var spans []TagSpan
	for {
		tag := m.openTag
		if m.inside {
			tag = m.closeTag
		}
		if idx := strings.Index(m.buf, tag); idx >= 0 {
			if idx > 0 {
				spans = append(spans, TagSpan{Matched: m.inside, Data: m.buf[:idx]})
			}
			m.buf = m.buf[idx+len(tag):]
			m.inside = !m.inside
			continue
		}
		// No full tag in the buffer. Hold back the longest suffix that is
		// still a prefix of the pending tag; everything before it is settled.
		hold := partialTagSuffix(m.buf, tag)
		if settled := m.buf[:len(m.buf)-hold]; settled != "" {
			spans = append(spans, TagSpan{Matched: m.inside, Data: settled})
		}
		m.buf = m.buf[len(m.buf)-hold:]
		return spans
	}
}

// Final flushes any buffered text at end of stream. An unterminated open
// tag's content still belongs to the tag, so a trailing partial is emitted
// with the current classification.
func (m *TagMatcher) Final() []TagSpan {
	if m.buf == "" {
		return nil
	}
	span := TagSpan{Matched: m.inside, Data: m.buf}
	m.buf = ""
	return []TagSpan{span}
}

// partialTagSuffix returns the length of the longest proper suffix of s that
// is a prefix of tag.
func partialTagSuffix(s, tag string) int {
	max := len(tag) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if s[len(s)-k:] == tag[:k] {
			return k
		}
	}
	return 0
}
