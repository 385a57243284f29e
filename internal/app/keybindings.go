package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for gsurf.
type KeyMap struct {
	// Scrolling
	ScrollDown   key.Binding
	ScrollUp     key.Binding
	HalfPageDown key.Binding
	HalfPageUp   key.Binding
	GotoTop      key.Binding
	GotoBottom   key.Binding

	// Browser
	OpenURL    key.Binding
	EditURL    key.Binding
	Back       key.Binding
	Reload     key.Binding
	Stop       key.Binding
	FollowLink key.Binding

	// Tabs
	NewTab   key.Binding
	CloseTab key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding

	// Modes
	CommandMode key.Binding
	Leader      key.Binding

	// Actions
	Quit          key.Binding
	Help          key.Binding
	Bookmark      key.Binding
	HistoryToggle key.Binding
}

// DefaultKeyMap returns the default vim-style keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		ScrollDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "scroll down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "scroll up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "half page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "half page up"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("gg", "go to top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "go to bottom"),
		),
		OpenURL: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open address"),
		),
		EditURL: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "edit current address"),
		),
		Back: key.NewBinding(
			key.WithKeys("H", "backspace"),
			key.WithHelp("H", "go back"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload page"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop loading"),
		),
		FollowLink: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "follow link"),
		),
		NewTab: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "new tab"),
		),
		CloseTab: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("ctrl+w", "close tab"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("gt/tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("gT/shift+tab", "prev tab"),
		),
		CommandMode: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command mode"),
		),
		Leader: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "shortcut palette"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Bookmark: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "bookmark page"),
		),
		HistoryToggle: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "toggle history"),
		),
	}
}

// commandHelp lists the : commands shown on about:help.
var commandHelp = []struct{ cmd, desc string }{
	{":open <address>", "open an address in this tab"},
	{":tabnew [address]", "open a new tab"},
	{":tabclose", "close this tab"},
	{":home", "open the home capsule"},
	{":bookmark [tag...]", "bookmark or unbookmark this page, or tag it"},
	{":bookmarks", "list bookmarks"},
	{":history", "list visited pages"},
	{":clearhistory", "forget every visited page"},
	{":subscribe [address]", "follow a gemlog (default: this page)"},
	{":feeds", "show new posts from followed gemlogs"},
	{":known-hosts", "list pinned certificates"},
	{":forget <host>", "trust a host's new certificate"},
	{":theme [name]", "change colours"},
	{":quit", "save the session and quit"},
	{":help", "show this page"},
}

// commandNames returns the bare : command names for completion.
func commandNames() []string {
	names := make([]string, 0, len(commandHelp))
	for _, c := range commandHelp {
		name, _, _ := strings.Cut(strings.TrimPrefix(c.cmd, ":"), " ")
		names = append(names, name)
	}
	return names
}

// helpGemtext renders the keybindings and commands as the about:help page.
func helpGemtext(km KeyMap) string {
	var sb strings.Builder
	sb.WriteString("# gsurf help\n\n## Keys\n\n")

	bindings := []key.Binding{
		km.OpenURL, km.EditURL, km.FollowLink, km.Back, km.Reload, km.Stop,
		km.ScrollDown, km.ScrollUp, km.HalfPageDown, km.HalfPageUp, km.GotoTop, km.GotoBottom,
		km.NewTab, km.CloseTab, km.NextTab, km.PrevTab,
		km.Bookmark, km.HistoryToggle, km.CommandMode, km.Leader, km.Help, km.Quit,
	}
	sb.WriteString("```keys\n")
	for _, b := range bindings {
		h := b.Help()
		fmt.Fprintf(&sb, "%-14s %s\n", h.Key, h.Desc)
	}
	sb.WriteString("```\n\n## Commands\n\n")
	for _, c := range commandHelp {
		fmt.Fprintf(&sb, "* %s: %s\n", c.cmd, c.desc)
	}
	sb.WriteString("\n## Built-in pages\n\n")
	sb.WriteString("=> about: All built-in pages\n")
	return sb.String()
}

const logo = `  __ _ ___ _  _ _ _ / _|
 / _' (_-<| || | '_|  _|
 \__, /__/ \_,_|_| |_|
 |___/`

// welcomeGemtext is shown in tabs that have not loaded a page.
func welcomeGemtext(km KeyMap) string {
	var sb strings.Builder
	sb.WriteString("```gsurf\n" + logo + "\n```\n\n")
	sb.WriteString("A terminal browser for Geminispace.\n\n")
	sb.WriteString("```keys\n")
	for _, b := range []key.Binding{km.OpenURL, km.FollowLink, km.Back, km.Bookmark, km.Leader, km.Help, km.Quit} {
		h := b.Help()
		fmt.Fprintf(&sb, "%-10s %s\n", h.Key, h.Desc)
	}
	sb.WriteString("```\n\nSee :bookmarks and :feeds for saved capsules.\n")
	return sb.String()
}
