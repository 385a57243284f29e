// Package theme holds the colour palettes for the TUI and gemtext
// rendering.
package theme

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Name string

	// Chrome
	Primary     lipgloss.Color
	Accent      lipgloss.Color
	Text        lipgloss.Color
	TextDim     lipgloss.Color
	Surface     lipgloss.Color
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	TabActive   lipgloss.Color
	TabInactive lipgloss.Color

	// Gemtext
	Heading      lipgloss.Color
	Subheading   lipgloss.Color
	Link         lipgloss.Color
	LinkIndex    lipgloss.Color
	ExternalLink lipgloss.Color // links leaving gemini space
	Bullet       lipgloss.Color
	Quote        lipgloss.Color
	Preformat    lipgloss.Color

	// Status
	Error   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
}

var themes = map[string]Theme{
	"default": Default,
	"gruvbox": Gruvbox,
	"nord":    Nord,
	"dracula": Dracula,
}

var Default = Theme{
	Name:         "default",
	Primary:      lipgloss.Color("#7C3AED"),
	Accent:       lipgloss.Color("#F59E0B"),
	Text:         lipgloss.Color("#E2E8F0"),
	TextDim:      lipgloss.Color("#64748B"),
	Surface:      lipgloss.Color("#1E293B"),
	Border:       lipgloss.Color("#334155"),
	BorderFocus:  lipgloss.Color("#7C3AED"),
	TabActive:    lipgloss.Color("#7C3AED"),
	TabInactive:  lipgloss.Color("#475569"),
	Heading:      lipgloss.Color("#A78BFA"),
	Subheading:   lipgloss.Color("#06B6D4"),
	Link:         lipgloss.Color("#38BDF8"),
	LinkIndex:    lipgloss.Color("#F59E0B"),
	ExternalLink: lipgloss.Color("#F472B6"),
	Bullet:       lipgloss.Color("#F59E0B"),
	Quote:        lipgloss.Color("#94A3B8"),
	Preformat:    lipgloss.Color("#34D399"),
	Error:        lipgloss.Color("#EF4444"),
	Success:      lipgloss.Color("#22C55E"),
	Warning:      lipgloss.Color("#F59E0B"),
}

var Gruvbox = Theme{
	Name:         "gruvbox",
	Primary:      lipgloss.Color("#D65D0E"),
	Accent:       lipgloss.Color("#D79921"),
	Text:         lipgloss.Color("#EBDBB2"),
	TextDim:      lipgloss.Color("#928374"),
	Surface:      lipgloss.Color("#3C3836"),
	Border:       lipgloss.Color("#504945"),
	BorderFocus:  lipgloss.Color("#D65D0E"),
	TabActive:    lipgloss.Color("#D65D0E"),
	TabInactive:  lipgloss.Color("#665C54"),
	Heading:      lipgloss.Color("#FB4934"),
	Subheading:   lipgloss.Color("#458588"),
	Link:         lipgloss.Color("#83A598"),
	LinkIndex:    lipgloss.Color("#FABD2F"),
	ExternalLink: lipgloss.Color("#D3869B"),
	Bullet:       lipgloss.Color("#D79921"),
	Quote:        lipgloss.Color("#928374"),
	Preformat:    lipgloss.Color("#B8BB26"),
	Error:        lipgloss.Color("#FB4934"),
	Success:      lipgloss.Color("#B8BB26"),
	Warning:      lipgloss.Color("#FABD2F"),
}

var Nord = Theme{
	Name:         "nord",
	Primary:      lipgloss.Color("#88C0D0"),
	Accent:       lipgloss.Color("#EBCB8B"),
	Text:         lipgloss.Color("#ECEFF4"),
	TextDim:      lipgloss.Color("#4C566A"),
	Surface:      lipgloss.Color("#3B4252"),
	Border:       lipgloss.Color("#434C5E"),
	BorderFocus:  lipgloss.Color("#88C0D0"),
	TabActive:    lipgloss.Color("#88C0D0"),
	TabInactive:  lipgloss.Color("#4C566A"),
	Heading:      lipgloss.Color("#81A1C1"),
	Subheading:   lipgloss.Color("#8FBCBB"),
	Link:         lipgloss.Color("#88C0D0"),
	LinkIndex:    lipgloss.Color("#EBCB8B"),
	ExternalLink: lipgloss.Color("#B48EAD"),
	Bullet:       lipgloss.Color("#EBCB8B"),
	Quote:        lipgloss.Color("#4C566A"),
	Preformat:    lipgloss.Color("#A3BE8C"),
	Error:        lipgloss.Color("#BF616A"),
	Success:      lipgloss.Color("#A3BE8C"),
	Warning:      lipgloss.Color("#EBCB8B"),
}

var Dracula = Theme{
	Name:         "dracula",
	Primary:      lipgloss.Color("#BD93F9"),
	Accent:       lipgloss.Color("#F1FA8C"),
	Text:         lipgloss.Color("#F8F8F2"),
	TextDim:      lipgloss.Color("#6272A4"),
	Surface:      lipgloss.Color("#44475A"),
	Border:       lipgloss.Color("#6272A4"),
	BorderFocus:  lipgloss.Color("#BD93F9"),
	TabActive:    lipgloss.Color("#BD93F9"),
	TabInactive:  lipgloss.Color("#6272A4"),
	Heading:      lipgloss.Color("#FF79C6"),
	Subheading:   lipgloss.Color("#8BE9FD"),
	Link:         lipgloss.Color("#8BE9FD"),
	LinkIndex:    lipgloss.Color("#F1FA8C"),
	ExternalLink: lipgloss.Color("#FFB86C"),
	Bullet:       lipgloss.Color("#F1FA8C"),
	Quote:        lipgloss.Color("#6272A4"),
	Preformat:    lipgloss.Color("#50FA7B"),
	Error:        lipgloss.Color("#FF5555"),
	Success:      lipgloss.Color("#50FA7B"),
	Warning:      lipgloss.Color("#F1FA8C"),
}

// Current is the active theme.
var Current = Default

// Set changes the active theme by name.
func Set(name string) bool {
	if t, ok := themes[name]; ok {
		Current = t
		return true
	}
	return false
}

// List returns all available theme names, sorted.
func List() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
