package browser

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

func TestRenderGemtext(t *testing.T) {
	lines := gemini.ParseString("# Title\n" +
		"Hello world.\n" +
		"=> gemini://example.org/docs Docs\n" +
		"=> https://example.com Web\n" +
		"* one\n" +
		"> quoted\n" +
		"```\n" +
		"  keep   spacing\n" +
		"```\n")

	page := Render("Title", lines, 80)
	plain := ansi.Strip(page.Content)

	require.Len(t, page.Links, 2)
	assert.Equal(t, Link{Index: 1, Text: "Docs", URL: "gemini://example.org/docs"}, page.Links[0])
	assert.Equal(t, 2, page.Links[1].Index)
	assert.Equal(t, "Title", page.Title)

	assert.Contains(t, plain, "[1] Docs")
	assert.Contains(t, plain, "[2] Web (https)")
	assert.Contains(t, plain, "• one")
	assert.Contains(t, plain, "quoted")
	assert.Contains(t, plain, "  keep   spacing")
}

func TestRenderWrapsText(t *testing.T) {
	long := strings.Repeat("word ", 40)
	page := Render("", []gemini.Line{{Kind: gemini.LineText, Text: long}}, 44)
	for _, l := range strings.Split(ansi.Strip(page.Content), "\n") {
		assert.LessOrEqual(t, len(strings.TrimRight(l, " ")), 40)
	}
}

func TestRenderEmpty(t *testing.T) {
	page := Render("", nil, 0)
	require.NotNil(t, page)
	assert.Empty(t, page.Links)
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "aaa bbb\nccc", wrapText("aaa bbb ccc", 7))
	assert.Equal(t, "unchanged", wrapText("unchanged", 0))
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Help\n\nPress **o** to open.", 60)
	assert.Contains(t, ansi.Strip(out), "Help")
}
