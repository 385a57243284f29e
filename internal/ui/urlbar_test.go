package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func TestURLBarAddress(t *testing.T) {
	ub := NewURLBar()
	ub.SetWidth(60)
	ub.SetValue("gemini://example.org/docs/index.gmi")

	out := ansi.Strip(ub.View())
	assert.Contains(t, out, "⇒ gemini://example.org/docs/index.gmi")

	ub.SetLoading(true)
	assert.Contains(t, ansi.Strip(ub.View()), "⟳")
}

func TestURLBarTruncatesLongAddress(t *testing.T) {
	ub := NewURLBar()
	ub.SetWidth(40)
	ub.SetValue("gemini://example.org/" + strings.Repeat("a", 100))

	out := ansi.Strip(ub.View())
	assert.Contains(t, out, "…")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 40)
	}
}

func TestStyleAddressKeepsText(t *testing.T) {
	for _, addr := range []string{
		"gemini://example.org",
		"gemini://example.org:1966/a?q#f",
		"about:help",
	} {
		assert.Equal(t, addr, ansi.Strip(styleAddress(addr)))
	}
}
