package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryPushSkipsRepeat(t *testing.T) {
	h := NewHistory()
	assert.True(t, h.Push("a"))
	assert.False(t, h.Push("a"))
	assert.True(t, h.Push("b"))
	assert.True(t, h.Push("a"))
	assert.Equal(t, []string{"a", "b", "a"}, h.Entries())
	assert.Equal(t, "a", h.Current())
}

func TestHistoryBack(t *testing.T) {
	h := NewHistory("a", "b", "c")
	prev, ok := h.Back()
	assert.True(t, ok)
	assert.Equal(t, "b", prev)
	assert.Equal(t, []string{"a"}, h.Entries())

	_, ok = h.Back()
	assert.False(t, ok)
	assert.Equal(t, 1, h.Len())
}

func TestHistoryConstructorCollapses(t *testing.T) {
	h := NewHistory("a", "a", "b", "b")
	assert.Equal(t, []string{"a", "b"}, h.Entries())
	assert.Equal(t, 2, h.Len())
	assert.Empty(t, NewHistory().Current())
}

func TestHistoryEntriesIsCopy(t *testing.T) {
	h := NewHistory("a")
	e := h.Entries()
	e[0] = "changed"
	assert.Equal(t, "a", h.Current())
}
