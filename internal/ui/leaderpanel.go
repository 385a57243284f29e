package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vidyasagar/gsurf/internal/theme"
)

// LeaderAction identifies what a leader shortcut does.
type LeaderAction int

const (
	LeaderNone LeaderAction = iota
	LeaderOpen
	LeaderBack
	LeaderFollow
	LeaderReload
	LeaderStop
	LeaderNewTab
	LeaderCloseTab
	LeaderNextTab
	LeaderPrevTab
	LeaderBookmark
	LeaderBookmarks
	LeaderFeeds
	LeaderKnownHosts
	LeaderHistory
	LeaderTheme
	LeaderCommand
	LeaderHelp
)

// LeaderBinding represents a single leader key shortcut.
type LeaderBinding struct {
	Key    string // pressed after the leader
	Desc   string
	Action LeaderAction
}

// LeaderGroup is a named group of leader shortcuts.
type LeaderGroup struct {
	Name     string
	Bindings []LeaderBinding
}

// LeaderPanel is the shortcut palette shown after pressing the leader key.
type LeaderPanel struct {
	visible bool
	width   int
	height  int
	groups  []LeaderGroup
}

// NewLeaderPanel creates a leader panel with the default shortcut groups.
func NewLeaderPanel() LeaderPanel {
	return LeaderPanel{groups: defaultLeaderGroups()}
}

func defaultLeaderGroups() []LeaderGroup {
	return []LeaderGroup{
		{"Navigate", []LeaderBinding{
			{"o", "Open address", LeaderOpen},
			{"b", "Back", LeaderBack},
			{"l", "Follow link", LeaderFollow},
			{"r", "Reload", LeaderReload},
			{"s", "Stop", LeaderStop},
		}},
		{"Tabs", []LeaderBinding{
			{"t", "New tab", LeaderNewTab},
			{"w", "Close tab", LeaderCloseTab},
			{"n", "Next tab", LeaderNextTab},
			{"p", "Prev tab", LeaderPrevTab},
		}},
		{"Capsules", []LeaderBinding{
			{"d", "Bookmark page", LeaderBookmark},
			{"B", "Bookmarks", LeaderBookmarks},
			{"F", "Feeds", LeaderFeeds},
			{"K", "Known hosts", LeaderKnownHosts},
		}},
		{"Views", []LeaderBinding{
			{"H", "History", LeaderHistory},
			{"T", "Theme cycle", LeaderTheme},
			{":", "Command", LeaderCommand},
			{"?", "Help", LeaderHelp},
		}},
	}
}

// Groups returns the shortcut groups shown by the panel.
func (lp *LeaderPanel) Groups() []LeaderGroup {
	return lp.groups
}

// Lookup returns the binding for key.
func (lp *LeaderPanel) Lookup(key string) (LeaderBinding, bool) {
	for _, g := range lp.groups {
		for _, b := range g.Bindings {
			if b.Key == key {
				return b, true
			}
		}
	}
	return LeaderBinding{}, false
}

func (lp *LeaderPanel) Show()           { lp.visible = true }
func (lp *LeaderPanel) Hide()           { lp.visible = false }
func (lp *LeaderPanel) IsVisible() bool { return lp.visible }

// SetSize sets the available area for rendering.
func (lp *LeaderPanel) SetSize(w, h int) {
	lp.width = w
	lp.height = h
}

// View renders the palette as a bordered box. Groups sit side by side
// when the terminal is wide enough and are stacked otherwise.
func (lp *LeaderPanel) View() string {
	if !lp.visible {
		return ""
	}
	t := theme.Current

	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Surface).Background(t.Subheading).Padding(0, 1)
	descStyle := lipgloss.NewStyle().Foreground(t.Text)
	nameStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	colStyle := lipgloss.NewStyle().Width(18).MarginRight(2)

	cols := make([]string, 0, len(lp.groups))
	for _, g := range lp.groups {
		rows := []string{nameStyle.Render(g.Name)}
		for _, b := range g.Bindings {
			rows = append(rows, keyStyle.Render(b.Key)+descStyle.Render(" "+b.Desc))
		}
		cols = append(cols, colStyle.Render(strings.Join(rows, "\n")))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	// Border and padding take 6 columns.
	if lp.width > 0 && lipgloss.Width(body)+6 > lp.width {
		half := (len(cols) + 1) / 2
		body = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, cols[:half]...),
			"",
			lipgloss.JoinHorizontal(lipgloss.Top, cols[half:]...),
		)
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Render("Leader")
	footer := lipgloss.NewStyle().Foreground(t.TextDim).Italic(true).Render("press a key or Esc to dismiss")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer))
}
