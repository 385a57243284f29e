package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/vidyasagar/gsurf/internal/storage"
	"github.com/vidyasagar/gsurf/internal/theme"
)

// headerRows is the title, separator and filter line above the entries.
const headerRows = 3

// HistoryPanel is a side panel listing visited pages with vim navigation
// and an incremental filter.
type HistoryPanel struct {
	all   []storage.HistoryEntry
	shown []int // indexes into all matching filter

	filter    string
	filtering bool

	cursor   int // index into shown
	offset   int // first visible row of shown
	width    int
	height   int
	visible  bool
	lastGKey bool
}

// NewHistoryPanel creates a new history panel.
func NewHistoryPanel() HistoryPanel {
	return HistoryPanel{}
}

// SetEntries replaces the listed entries and clears the filter.
func (hp *HistoryPanel) SetEntries(entries []storage.HistoryEntry) {
	hp.all = entries
	hp.filter = ""
	hp.filtering = false
	hp.refilter()
}

// SetSize updates the panel dimensions.
func (hp *HistoryPanel) SetSize(w, h int) {
	hp.width = w
	hp.height = h
	hp.ensureVisible()
}

func (hp *HistoryPanel) Show() {
	hp.visible = true
	hp.cursor, hp.offset = 0, 0
	hp.lastGKey = false
}

func (hp *HistoryPanel) Hide() {
	hp.visible = false
	hp.filtering = false
	hp.lastGKey = false
}

func (hp *HistoryPanel) IsVisible() bool { return hp.visible }

// StartFilter begins typing a filter.
func (hp *HistoryPanel) StartFilter() {
	hp.filtering = true
	hp.lastGKey = false
}

// Filtering reports whether keys are going to the filter.
func (hp *HistoryPanel) Filtering() bool { return hp.filtering }

// Filter returns the current filter text.
func (hp *HistoryPanel) Filter() string { return hp.filter }

// TypeFilter appends s to the filter.
func (hp *HistoryPanel) TypeFilter(s string) {
	hp.filter += s
	hp.refilter()
}

// DeleteFilterChar removes the last rune of the filter.
func (hp *HistoryPanel) DeleteFilterChar() {
	if r := []rune(hp.filter); len(r) > 0 {
		hp.filter = string(r[:len(r)-1])
		hp.refilter()
	}
}

// EndFilter stops typing. The filter is dropped unless keep is set.
func (hp *HistoryPanel) EndFilter(keep bool) {
	hp.filtering = false
	if !keep && hp.filter != "" {
		hp.filter = ""
		hp.refilter()
	}
}

// refilter recomputes the matching entries and resets the cursor.
func (hp *HistoryPanel) refilter() {
	q := strings.ToLower(hp.filter)
	hp.shown = hp.shown[:0]
	for i, e := range hp.all {
		if q == "" || strings.Contains(strings.ToLower(e.Title), q) || strings.Contains(strings.ToLower(e.URL), q) {
			hp.shown = append(hp.shown, i)
		}
	}
	hp.cursor, hp.offset = 0, 0
}

// move shifts the cursor by delta rows, clamped to the list.
func (hp *HistoryPanel) move(delta int) {
	hp.lastGKey = false
	if len(hp.shown) == 0 {
		return
	}
	hp.cursor = max(0, min(hp.cursor+delta, len(hp.shown)-1))
	hp.ensureVisible()
}

func (hp *HistoryPanel) CursorUp()     { hp.move(-1) }
func (hp *HistoryPanel) CursorDown()   { hp.move(1) }
func (hp *HistoryPanel) GotoTop()      { hp.move(-len(hp.shown)) }
func (hp *HistoryPanel) GotoBottom()   { hp.move(len(hp.shown)) }
func (hp *HistoryPanel) HalfPageDown() { hp.move(max(1, hp.visibleCount()/2)) }
func (hp *HistoryPanel) HalfPageUp()   { hp.move(-max(1, hp.visibleCount()/2)) }

// HandleGKey handles "g"; a second press goes to the top and returns true.
func (hp *HistoryPanel) HandleGKey() bool {
	if hp.lastGKey {
		hp.GotoTop()
		return true
	}
	hp.lastGKey = true
	return false
}

// ResetGKey forgets a pending "g".
func (hp *HistoryPanel) ResetGKey() {
	hp.lastGKey = false
}

// SelectedEntry returns the entry at the cursor, or nil if none.
func (hp *HistoryPanel) SelectedEntry() *storage.HistoryEntry {
	if hp.cursor < 0 || hp.cursor >= len(hp.shown) {
		return nil
	}
	e := hp.all[hp.shown[hp.cursor]]
	return &e
}

// RemoveSelected drops the entry at the cursor and returns it.
func (hp *HistoryPanel) RemoveSelected() (storage.HistoryEntry, bool) {
	if hp.cursor < 0 || hp.cursor >= len(hp.shown) {
		return storage.HistoryEntry{}, false
	}
	idx := hp.shown[hp.cursor]
	removed := hp.all[idx]
	hp.all = append(hp.all[:idx], hp.all[idx+1:]...)

	cursor := hp.cursor
	hp.refilter()
	hp.cursor = max(0, min(cursor, len(hp.shown)-1))
	hp.ensureVisible()
	return removed, true
}

// visibleCount is how many entries fit; each takes two rows.
func (hp *HistoryPanel) visibleCount() int {
	return max(1, (hp.height-headerRows-1)/2)
}

func (hp *HistoryPanel) ensureVisible() {
	visible := hp.visibleCount()
	if hp.cursor < hp.offset {
		hp.offset = hp.cursor
	}
	if hp.cursor >= hp.offset+visible {
		hp.offset = hp.cursor - visible + 1
	}
	hp.offset = max(0, hp.offset)
}

// View renders the history panel.
func (hp *HistoryPanel) View() string {
	if !hp.visible {
		return ""
	}
	t := theme.Current

	row := lipgloss.NewStyle().Width(hp.width).Padding(0, 1)
	dim := row.Foreground(t.TextDim)
	textWidth := max(hp.width-4, 8)

	lines := []string{
		row.Bold(true).Foreground(t.Primary).Background(t.Surface).
			Render(fmt.Sprintf("History (%d/%d)", len(hp.shown), len(hp.all))),
		lipgloss.NewStyle().Foreground(t.Border).Render(strings.Repeat("─", max(hp.width-2, 1))),
	}
	switch {
	case hp.filtering:
		lines = append(lines, row.Foreground(t.Accent).Render("/"+hp.filter+"▏"))
	case hp.filter != "":
		lines = append(lines, dim.Render("/"+hp.filter))
	default:
		lines = append(lines, "")
	}

	if len(hp.shown) == 0 {
		msg := "Nothing visited yet."
		if hp.filter != "" {
			msg = "No matches."
		}
		lines = append(lines, dim.Render(msg))
	}

	end := min(hp.offset+hp.visibleCount(), len(hp.shown))
	for i := hp.offset; i < end; i++ {
		e := hp.all[hp.shown[i]]
		title := e.Title
		if title == "" {
			title = e.URL
		}
		title = ansi.Truncate(title, textWidth-2, "…")
		detail := ansi.Truncate(e.URL+"  "+humanize.Time(e.VisitedAt), textWidth-2, "…")

		if i == hp.cursor {
			sel := row.Background(t.TabActive)
			lines = append(lines,
				sel.Foreground(t.Text).Bold(true).Render("▸ "+title),
				sel.Foreground(t.Link).Render("  "+detail))
			continue
		}
		lines = append(lines,
			row.Foreground(t.Text).Render("  "+title),
			dim.Render("  "+detail))
	}

	if pad := hp.height - len(lines) - 1; pad > 0 {
		lines = append(lines, make([]string, pad)...)
		lines = append(lines, dim.Italic(true).Render("j/k move  / filter  ⏎ open  d delete  esc close"))
	}
	return lipgloss.NewStyle().Width(hp.width).Height(hp.height).Render(strings.Join(lines, "\n"))
}
