package patternsel

import "strings"

// DefaultHistorySize bounds History when no size is given.
const DefaultHistorySize = 10

// History keeps recently used patterns, most recent first, without
// duplicates.
type History struct {
	max   int
	items []string
}

// NewHistory returns a history holding up to max patterns, seeded with
// items (most recent first).
func NewHistory(max int, items []string) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	h := &History{max: max}
	for i := len(items) - 1; i >= 0; i-- {
		h.Add(items[i])
	}
	return h
}

// Add moves pattern to the front. Blank patterns are ignored.
func (h *History) Add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return
	}
	for i, p := range h.items {
		if p == pattern {
			h.items = append(h.items[:i], h.items[i+1:]...)
			break
		}
	}
	h.items = append([]string{pattern}, h.items...)
	if len(h.items) > h.max {
		h.items = h.items[:h.max]
	}
}

// Last returns the most recent pattern, or fallback when empty.
func (h *History) Last(fallback string) string {
	if len(h.items) == 0 {
		return fallback
	}
	return h.items[0]
}

// Items returns a copy of the patterns, most recent first.
func (h *History) Items() []string {
	return append([]string(nil), h.items...)
}
