package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/vidyasagar/gsurf/internal/theme"
)

const newTabTitle = "New Tab"

// Tab represents a single browser tab.
type Tab struct {
	ID      int
	Title   string
	URL     string
	Loading bool
}

// TabBar manages and renders browser tabs.
type TabBar struct {
	tabs       []Tab
	active     int
	nextID     int
	width      int
	maxVisible int
}

// NewTabBar creates a tab bar with one initial tab.
func NewTabBar() TabBar {
	tb := TabBar{nextID: 1, maxVisible: 8}
	tb.tabs = append(tb.tabs, Tab{ID: tb.nextID, Title: newTabTitle})
	return tb
}

// SetWidth sets the tab bar width.
func (tb *TabBar) SetWidth(w int) {
	tb.width = w
	tb.maxVisible = max(2, min(w/20, 10))
}

// NewTab adds a new tab after the active one and switches to it. Returns
// the tab index.
func (tb *TabBar) NewTab() int {
	tb.nextID++
	insertAt := min(tb.active+1, len(tb.tabs))
	tb.tabs = append(tb.tabs[:insertAt], append([]Tab{{ID: tb.nextID, Title: newTabTitle}}, tb.tabs[insertAt:]...)...)
	tb.active = insertAt
	return tb.active
}

// CloseTab closes the tab at the given index.
func (tb *TabBar) CloseTab(idx int) bool {
	if len(tb.tabs) <= 1 {
		return false // keep the last tab
	}
	if idx < 0 || idx >= len(tb.tabs) {
		return false
	}
	tb.tabs = append(tb.tabs[:idx], tb.tabs[idx+1:]...)
	if tb.active >= len(tb.tabs) {
		tb.active = len(tb.tabs) - 1
	} else if tb.active > idx {
		tb.active--
	}
	return true
}

// NextTab switches to the next tab.
func (tb *TabBar) NextTab() {
	if len(tb.tabs) > 1 {
		tb.active = (tb.active + 1) % len(tb.tabs)
	}
}

// PrevTab switches to the previous tab.
func (tb *TabBar) PrevTab() {
	if len(tb.tabs) > 1 {
		tb.active = (tb.active - 1 + len(tb.tabs)) % len(tb.tabs)
	}
}

// Select switches to the tab at idx.
func (tb *TabBar) Select(idx int) {
	if idx >= 0 && idx < len(tb.tabs) {
		tb.active = idx
	}
}

// Active returns the active tab index.
func (tb *TabBar) Active() int {
	return tb.active
}

// ActiveTab returns the active tab.
func (tb *TabBar) ActiveTab() Tab {
	return tb.tabs[tb.active]
}

// IndexOf returns the index of the tab with the given ID, or -1.
func (tb *TabBar) IndexOf(id int) int {
	for i, t := range tb.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Update replaces the title, URL and loading state of the tab at idx.
func (tb *TabBar) Update(idx int, title, url string, loading bool) {
	if idx < 0 || idx >= len(tb.tabs) {
		return
	}
	if title == "" {
		title = url
	}
	if title == "" {
		title = newTabTitle
	}
	tb.tabs[idx].Title = title
	tb.tabs[idx].URL = url
	tb.tabs[idx].Loading = loading
}

// Tab returns the tab at idx.
func (tb *TabBar) Tab(idx int) (Tab, bool) {
	if idx < 0 || idx >= len(tb.tabs) {
		return Tab{}, false
	}
	return tb.tabs[idx], true
}

// Count returns the number of tabs.
func (tb *TabBar) Count() int {
	return len(tb.tabs)
}

// visibleRange returns the [start, end) window of tabs around the active one.
func (tb *TabBar) visibleRange() (int, int) {
	start, end := 0, len(tb.tabs)
	if end <= tb.maxVisible {
		return start, end
	}
	start = max(0, tb.active-tb.maxVisible/2)
	end = start + tb.maxVisible
	if end > len(tb.tabs) {
		end = len(tb.tabs)
		start = max(0, end-tb.maxVisible)
	}
	return start, end
}

// View renders the tab bar.
func (tb *TabBar) View() string {
	t := theme.Current

	activeStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Background(t.TabActive).
		Bold(true).
		Padding(0, 1)
	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.TabInactive).
		Padding(0, 1)
	separatorStyle := lipgloss.NewStyle().Foreground(t.Border)
	overflowStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	start, end := tb.visibleRange()
	maxTitle := max(8, tb.width/max(tb.maxVisible, 1)-4)

	var result string
	if start > 0 {
		result += overflowStyle.Render(fmt.Sprintf(" +%d ", start))
	}
	for i := start; i < end; i++ {
		title := ansi.Truncate(tb.tabs[i].Title, maxTitle, "…")
		if tb.tabs[i].Loading {
			title = "⟳ " + title
		}
		if i == tb.active {
			result += activeStyle.Render(title)
		} else {
			result += inactiveStyle.Render(title)
		}
		if i < end-1 {
			result += separatorStyle.Render("|")
		}
	}
	if end < len(tb.tabs) {
		result += overflowStyle.Render(fmt.Sprintf(" +%d ", len(tb.tabs)-end))
	}

	return lipgloss.NewStyle().
		Background(t.Surface).
		Width(tb.width).
		Render(result)
}
