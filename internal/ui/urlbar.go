package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/vidyasagar/gsurf/internal/theme"
)

// URLBar is the address bar at the top of the browser.
type URLBar struct {
	input   textinput.Model
	active  bool
	loading bool
	width   int
}

// NewURLBar creates a new URL bar.
func NewURLBar() URLBar {
	ti := textinput.New()
	ti.Placeholder = "gemini:// address, host name or about: page"
	ti.CharLimit = 1024
	ti.Width = 60
	ti.Prompt = ""

	return URLBar{input: ti}
}

// SetWidth updates the URL bar width.
func (u *URLBar) SetWidth(w int) {
	u.width = w
	u.input.Width = w - 8 // prompt and padding
}

// Focus activates the URL bar for input.
func (u *URLBar) Focus() tea.Cmd {
	u.active = true
	u.input.CursorEnd()
	return u.input.Focus()
}

// Blur deactivates the URL bar.
func (u *URLBar) Blur() {
	u.active = false
	u.input.Blur()
}

// IsActive reports whether the URL bar is focused.
func (u *URLBar) IsActive() bool {
	return u.active
}

// Value returns the current input text.
func (u *URLBar) Value() string {
	return u.input.Value()
}

// SetValue sets the URL bar text.
func (u *URLBar) SetValue(s string) {
	u.input.SetValue(s)
}

// SetLoading switches the prompt to the busy indicator.
func (u *URLBar) SetLoading(loading bool) {
	u.loading = loading
}

// Update handles messages for the URL bar.
func (u *URLBar) Update(msg tea.Msg) (*URLBar, tea.Cmd) {
	if !u.active {
		return u, nil
	}
	var cmd tea.Cmd
	u.input, cmd = u.input.Update(msg)
	return u, cmd
}

// View renders the URL bar. While not editing, the address is split so
// the host stands out.
func (u *URLBar) View() string {
	t := theme.Current

	border := t.Border
	if u.active {
		border = t.BorderFocus
	}
	barStyle := lipgloss.NewStyle().
		Background(t.Surface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(u.width - 2)

	prompt := "⇒"
	if u.loading {
		prompt = "⟳"
	}
	prompt = lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Render(prompt)

	if u.active || u.input.Value() == "" {
		return barStyle.Render(prompt + " " + u.input.View())
	}
	return barStyle.Render(prompt + " " + ansi.Truncate(styleAddress(u.input.Value()), max(u.width-8, 1), "…"))
}

// styleAddress dims the scheme and path of addr and bolds the host.
func styleAddress(addr string) string {
	t := theme.Current
	dim := lipgloss.NewStyle().Foreground(t.TextDim)

	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok {
		return lipgloss.NewStyle().Foreground(t.Text).Render(addr)
	}
	host, path := rest, ""
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		host, path = rest[:i], rest[i:]
	}
	out := dim.Render(scheme+"://") + lipgloss.NewStyle().Foreground(t.Text).Bold(true).Render(host)
	if path != "" {
		out += dim.Render(path)
	}
	return out
}
