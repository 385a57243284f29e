package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// PageViewport wraps bubbles/viewport for one tab. Until a page arrives it
// shows the welcome content.
type PageViewport struct {
	viewport   viewport.Model
	ready      bool
	contentSet bool
	welcome    string
}

// NewPageViewport creates a new viewport (dimensions set on first WindowSizeMsg).
func NewPageViewport() PageViewport {
	return PageViewport{}
}

// SetSize updates the viewport dimensions.
func (pv *PageViewport) SetSize(width, height int) {
	if !pv.ready {
		pv.viewport = viewport.New(width, height)
		pv.viewport.MouseWheelEnabled = true
		pv.viewport.MouseWheelDelta = 3
		pv.ready = true
		return
	}
	pv.viewport.Width = width
	pv.viewport.Height = height
}

// SetWelcome sets what is shown before any page loads.
func (pv *PageViewport) SetWelcome(content string) {
	pv.welcome = content
}

// SetContent replaces the viewport content and scrolls to the top.
func (pv *PageViewport) SetContent(content string) {
	if !pv.ready {
		return
	}
	pv.viewport.SetContent(content)
	pv.contentSet = true
	pv.viewport.GotoTop()
}

// Reflow replaces the content after a resize, keeping the scroll offset.
func (pv *PageViewport) Reflow(content string) {
	if !pv.ready {
		return
	}
	offset := pv.viewport.YOffset
	pv.viewport.SetContent(content)
	pv.contentSet = true
	pv.viewport.SetYOffset(offset)
}

// Update forwards messages to the viewport.
func (pv *PageViewport) Update(msg tea.Msg) (*PageViewport, tea.Cmd) {
	if !pv.ready {
		return pv, nil
	}
	var cmd tea.Cmd
	pv.viewport, cmd = pv.viewport.Update(msg)
	return pv, cmd
}

// View renders the page, or the welcome content when there is none.
func (pv *PageViewport) View() string {
	switch {
	case !pv.ready:
		return "\n  Initializing..."
	case !pv.contentSet:
		return pv.welcome
	}
	return pv.viewport.View()
}

// ScrollInfo returns "TOP", "BOT" or a percentage such as "42%".
func (pv *PageViewport) ScrollInfo() string {
	if !pv.ready || !pv.contentSet || pv.viewport.TotalLineCount() <= pv.viewport.Height {
		return ""
	}
	switch {
	case pv.viewport.AtTop():
		return "TOP"
	case pv.viewport.AtBottom():
		return "BOT"
	}
	return fmt.Sprintf("%d%%", int(pv.viewport.ScrollPercent()*100))
}

func (pv *PageViewport) HalfPageDown() {
	if pv.ready {
		pv.viewport.HalfViewDown()
	}
}

func (pv *PageViewport) HalfPageUp() {
	if pv.ready {
		pv.viewport.HalfViewUp()
	}
}

func (pv *PageViewport) LineDown(n int) {
	if pv.ready {
		pv.viewport.LineDown(n)
	}
}

func (pv *PageViewport) LineUp(n int) {
	if pv.ready {
		pv.viewport.LineUp(n)
	}
}

func (pv *PageViewport) GotoTop() {
	if pv.ready {
		pv.viewport.GotoTop()
	}
}

func (pv *PageViewport) GotoBottom() {
	if pv.ready {
		pv.viewport.GotoBottom()
	}
}
