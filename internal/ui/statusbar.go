package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/vidyasagar/gsurf/internal/theme"
)

// Modes shown in the status bar.
const (
	ModeNormal  = "NORMAL"
	ModeURL     = "URL"
	ModeFollow  = "FOLLOW"
	ModeCommand = "COMMAND"
	ModeInput   = "INPUT"
	ModeHistory = "HISTORY"
	ModeLeader  = "LEADER"
)

// StatusBar shows the current page info at the bottom of the screen.
type StatusBar struct {
	title      string
	phase      string // "", "Connecting", "Receiving"
	scrollInfo string
	mode       string
	linkCount  int
	bookmarked bool
	width      int
	message    string
	isError    bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar() StatusBar {
	return StatusBar{mode: ModeNormal}
}

// SetWidth sets the status bar width.
func (s *StatusBar) SetWidth(w int) {
	s.width = w
}

// SetTitle updates the page title.
func (s *StatusBar) SetTitle(title string) {
	s.title = title
}

// SetPhase shows the progress of the active transfer; empty when idle.
func (s *StatusBar) SetPhase(phase string) {
	s.phase = phase
}

// SetScrollInfo sets the scroll position string (e.g. "42%", "TOP", "BOT").
func (s *StatusBar) SetScrollInfo(info string) {
	s.scrollInfo = info
}

// SetMode sets the current mode indicator.
func (s *StatusBar) SetMode(mode string) {
	s.mode = mode
}

// SetLinkCount sets the total link count displayed.
func (s *StatusBar) SetLinkCount(n int) {
	s.linkCount = n
}

// SetBookmarked marks the current page as bookmarked.
func (s *StatusBar) SetBookmarked(b bool) {
	s.bookmarked = b
}

// SetMessage sets a temporary status message.
func (s *StatusBar) SetMessage(msg string) {
	s.message = msg
	s.isError = false
}

// SetError sets a temporary error message.
func (s *StatusBar) SetError(msg string) {
	s.message = msg
	s.isError = true
}

// View renders the status bar.
func (s *StatusBar) View() string {
	t := theme.Current

	modeColor := t.Primary
	switch s.mode {
	case ModeURL:
		modeColor = t.Success
	case ModeCommand:
		modeColor = t.Accent
	case ModeFollow:
		modeColor = t.Link
	case ModeInput:
		modeColor = t.Warning
	case ModeHistory:
		modeColor = t.Subheading
	}
	mode := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(t.Surface).
		Background(modeColor).
		Render(s.mode)

	seg := lipgloss.NewStyle().Background(t.Surface).Padding(0, 1)

	var left string
	switch {
	case s.phase != "":
		left = seg.Foreground(t.Warning).Bold(true).Render(s.phase + "…")
	case s.message != "" && s.isError:
		left = seg.Foreground(t.Error).Render(s.message)
	case s.message != "":
		left = seg.Foreground(t.Subheading).Render(s.message)
	case s.title != "":
		left = seg.Foreground(t.Text).Render(s.title)
	}

	var right string
	if s.bookmarked {
		right += seg.Foreground(t.Accent).Render("★")
	}
	if s.linkCount > 0 {
		right += seg.Foreground(t.TextDim).Render(fmt.Sprintf("%d links", s.linkCount))
	}
	right += seg.Foreground(t.Subheading).Bold(true).Render(s.scrollInfo)

	spacerWidth := s.width - lipgloss.Width(mode) - lipgloss.Width(left) - lipgloss.Width(right)
	if spacerWidth < 0 {
		spacerWidth = 0
	}
	spacer := lipgloss.NewStyle().Background(t.Surface).Render(fmt.Sprintf("%*s", spacerWidth, ""))

	return mode + left + spacer + right
}
