package ui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewportWelcomeUntilContent(t *testing.T) {
	pv := NewPageViewport()
	pv.SetWelcome("welcome")
	assert.Contains(t, pv.View(), "Initializing")

	pv.SetSize(40, 5)
	assert.Equal(t, "welcome", pv.View())
	assert.Empty(t, pv.ScrollInfo())

	pv.SetContent("page")
	assert.Contains(t, pv.View(), "page")
}

func TestViewportScrollInfo(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	pv := NewPageViewport()
	pv.SetSize(40, 5)
	pv.SetContent(strings.Join(lines, "\n"))
	assert.Equal(t, "TOP", pv.ScrollInfo())

	pv.GotoBottom()
	assert.Equal(t, "BOT", pv.ScrollInfo())

	pv.Reflow(strings.Join(lines, "\n"))
	assert.Equal(t, "BOT", pv.ScrollInfo(), "reflow keeps the offset")

	pv.GotoTop()
	pv.LineDown(5)
	assert.Regexp(t, `^\d+%$`, pv.ScrollInfo())
}
