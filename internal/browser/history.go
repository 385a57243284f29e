package browser

// History is the stack of visited URLs, most recent last. It never holds
// the same URL twice in a row.
type History struct {
	entries []string
}

// NewHistory creates a history holding entries, dropping consecutive
// repeats.
func NewHistory(entries ...string) *History {
	h := &History{}
	for _, e := range entries {
		h.Push(e)
	}
	return h
}

// Push appends url unless it is already on top. It reports whether the
// stack grew.
func (h *History) Push(url string) bool {
	if n := len(h.entries); n > 0 && h.entries[n-1] == url {
		return false
	}
	h.entries = append(h.entries, url)
	return true
}

// Back removes the current entry and the one before it and returns the
// latter, which the caller re-opens and so pushes again. With fewer than
// two entries nothing changes.
func (h *History) Back() (string, bool) {
	n := len(h.entries)
	if n < 2 {
		return "", false
	}
	prev := h.entries[n-2]
	h.entries = h.entries[:n-2]
	return prev, true
}

// Current returns the most recent URL, or empty string if history is empty.
func (h *History) Current() string {
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Len returns the total number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the stack, oldest first.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}
