// Package app is the gsurf terminal UI. Each tab owns a browser.Navigator;
// its events are bridged into bubbletea messages by a listener command.
package app

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vidyasagar/gsurf/internal/browser"
	"github.com/vidyasagar/gsurf/internal/feeds"
	"github.com/vidyasagar/gsurf/internal/gemini"
	"github.com/vidyasagar/gsurf/internal/metrics"
	"github.com/vidyasagar/gsurf/internal/storage"
	"github.com/vidyasagar/gsurf/internal/theme"
	"github.com/vidyasagar/gsurf/internal/ui"
	"go.uber.org/zap"
)

// Mode represents the current input mode.
type Mode int

const (
	ModeNormal  Mode = iota
	ModeInsert       // URL bar focused
	ModeCommand      // command bar active
	ModeFollow       // link follow mode
	ModeInput        // answering a server prompt
	ModeHistory      // history panel active
	ModeLeader       // leader key palette active
)

const (
	pageCacheSize = 50
	leaderTimeout = 2 * time.Second
)

// Options wires the model to its collaborators. Only Transport is
// required; missing stores disable the features that need them.
type Options struct {
	Transport    browser.Transport
	History      *storage.HistoryStore
	Bookmarks    *storage.BookmarkStore
	Pins         *storage.PinStore
	Sessions     *storage.SessionStore
	Config       *storage.Config
	Feeds        *feeds.Aggregator
	Dispatcher   browser.Dispatcher
	Connectivity browser.Connectivity
	Metrics      *metrics.Metrics
	Logger       *zap.Logger

	StartURL string
	Resume   bool // reopen the tabs saved on last quit
}

// tabState holds per-tab state.
type tabState struct {
	nav      *browser.Navigator
	cancel   context.CancelFunc
	viewport ui.PageViewport

	url     string
	doc     *browser.Document
	page    *browser.RenderedPage
	failure *gemini.Failure
	failURL string
	phase   browser.Phase

	input *browser.Event // prompt waiting for the tab to become active
}

func (ts *tabState) title() string {
	if ts.doc != nil && ts.doc.Title != "" {
		return ts.doc.Title
	}
	if ts.failure != nil {
		return ts.failure.Short
	}
	return ts.url
}

// cacheKey identifies a rendering of a page.
type cacheKey struct {
	url   string
	width int
	theme string
}

// Model is the top-level bubbletea model for gsurf.
type Model struct {
	// UI components
	tabBar       ui.TabBar
	urlBar       ui.URLBar
	statusBar    ui.StatusBar
	commandBar   ui.CommandBar
	historyPanel ui.HistoryPanel
	leaderPanel  ui.LeaderPanel

	// Per-tab state
	tabStates map[int]*tabState

	// Shared state
	transport browser.Transport
	pageCache *lru.Cache[cacheKey, *browser.RenderedPage]
	keys      KeyMap
	mode      Mode
	width     int
	height    int
	vpWidth   int
	lastGKey  bool // for "gg" detection
	ready     bool
	startup   []tea.Cmd
	queued    []tea.Cmd // listeners of tabs opened since the last command

	// Outstanding input prompt
	prompt    *browser.Event
	promptTab int

	// Storage
	history   *storage.HistoryStore
	bookmarks *storage.BookmarkStore
	pins      *storage.PinStore
	sessions  *storage.SessionStore
	config    *storage.Config
	capsules  *capsulePages

	dispatcher browser.Dispatcher
	online     browser.Connectivity
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// navEventMsg carries a navigator's terminal event.
type navEventMsg struct {
	tabID int
	ev    *browser.Event
}

// navChangedMsg reports that a navigator's phase or URL changed.
type navChangedMsg struct{ tabID int }

// navDoneMsg reports that a navigator stopped.
type navDoneMsg struct{ tabID int }

// leaderTimeoutMsg is sent when the leader key palette times out.
type leaderTimeoutMsg struct{}

// listen waits for the next message from nav. It is re-issued after every
// message, so each tab has exactly one listener.
func listen(tabID int, nav *browser.Navigator) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-nav.Events():
			return navEventMsg{tabID: tabID, ev: ev}
		case <-nav.Changed():
			return navChangedMsg{tabID: tabID}
		case <-nav.Done():
			return navDoneMsg{tabID: tabID}
		}
	}
}

// New creates the model and starts one navigator per restored tab.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	online := opts.Connectivity
	if online == nil {
		online = browser.InterfaceConnectivity{}
	}

	// Rendered pages for instant back and tab switches.
	pageCache, _ := lru.New[cacheKey, *browser.RenderedPage](pageCacheSize)

	m := Model{
		tabBar:       ui.NewTabBar(),
		urlBar:       ui.NewURLBar(),
		statusBar:    ui.NewStatusBar(),
		commandBar:   ui.NewCommandBar(),
		historyPanel: ui.NewHistoryPanel(),
		leaderPanel:  ui.NewLeaderPanel(),
		tabStates:    make(map[int]*tabState),
		transport:    opts.Transport,
		pageCache:    pageCache,
		keys:         DefaultKeyMap(),
		mode:         ModeNormal,
		history:      opts.History,
		bookmarks:    opts.Bookmarks,
		pins:         opts.Pins,
		sessions:     opts.Sessions,
		config:       opts.Config,
		dispatcher:   opts.Dispatcher,
		online:       online,
		metrics:      opts.Metrics,
		logger:       logger,
	}
	m.commandBar.SetCommands(commandNames())
	m.capsules = &capsulePages{
		keys:      m.keys,
		history:   opts.History,
		bookmarks: opts.Bookmarks,
		pins:      opts.Pins,
		feeds:     opts.Feeds,
	}
	if m.config != nil {
		m.capsules.setSubscriptions(m.config.Feeds)
		theme.Set(m.config.Theme)
	}

	restored := 0
	if opts.Resume && m.sessions != nil {
		restored = m.restoreSession()
	}

	first := m.tabBar.ActiveTab()
	if _, ok := m.tabStates[first.ID]; !ok {
		m.startTab(first.ID)
	}

	if opts.StartURL != "" {
		if restored > 0 {
			m.newTab()
		}
		m.activeTabState().nav.OpenAddress(opts.StartURL)
	}
	m.syncTabUI()
	m.startup, m.queued = m.queued, nil
	return m
}

// restoreSession reopens the saved tabs. Each tab is resumed and then
// refreshed so it shows current content.
func (m *Model) restoreSession() int {
	sess, err := m.sessions.Load()
	if err != nil {
		m.logger.Warn("loading session", zap.Error(err))
		return 0
	}

	n := 0
	for _, st := range sess.Tabs {
		if st.CurrentURL == "" {
			continue
		}
		if n > 0 {
			m.tabBar.NewTab()
		}
		ts := m.startTab(m.tabBar.ActiveTab().ID)
		ts.url = st.CurrentURL
		ts.nav.Resume(st)
		ts.nav.Refresh()
		n++
	}
	if n > 0 {
		m.tabBar.Select(min(sess.Active, n-1))
		m.logger.Info("session restored", zap.Int("tabs", n))
	}
	return n
}

// startTab creates the navigator for a tab and queues its listener.
func (m *Model) startTab(id int) *tabState {
	opts := []browser.Option{
		browser.WithAbout(m.capsules.pages()),
		browser.WithLogger(m.logger.With(zap.Int("tab", id))),
		browser.WithMetrics(m.metrics),
		browser.WithConnectivity(m.online),
	}
	if m.dispatcher != nil {
		opts = append(opts, browser.WithDispatcher(m.dispatcher))
	}
	if m.history != nil {
		opts = append(opts, browser.WithHistoryRecorder(m.history))
	}

	nav := browser.NewNavigator(m.transport, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go nav.Run(ctx)

	ts := &tabState{
		nav:      nav,
		cancel:   cancel,
		viewport: ui.NewPageViewport(),
	}
	m.tabStates[id] = ts
	m.queued = append(m.queued, listen(id, nav))
	if m.ready {
		m.layout()
	}
	return ts
}

// newTab opens an empty tab after the active one and switches to it.
func (m *Model) newTab() *tabState {
	m.tabBar.NewTab()
	return m.startTab(m.tabBar.ActiveTab().ID)
}

// takeCmds returns listener commands queued by startTab.
func (m *Model) takeCmds() tea.Cmd {
	cmds := m.queued
	m.queued = nil
	return tea.Batch(cmds...)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startup...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.reflow()
		return m, nil

	case navEventMsg:
		return m.handleNavEvent(msg)

	case navChangedMsg:
		ts, ok := m.tabStates[msg.tabID]
		if !ok {
			return m, nil
		}
		ts.phase = ts.nav.Phase()
		if st := ts.nav.State(); st.CurrentURL != "" && ts.failure == nil {
			ts.url = st.CurrentURL
		}
		m.syncTab(msg.tabID)
		return m, listen(msg.tabID, ts.nav)

	case navDoneMsg:
		m.logger.Debug("navigator stopped", zap.Int("tab", msg.tabID))
		return m, nil

	case leaderTimeoutMsg:
		if m.mode == ModeLeader {
			m.leaderPanel.Hide()
			m.setMode(ModeNormal)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	// Forward to active components.
	return m, tea.Batch(m.updateComponents(msg)...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Loading gsurf..."
	}

	// Layout:
	// [tab bar]
	// [url bar]
	// [history panel | viewport]
	// [status bar]
	// [command bar] (if active)

	var sections []string
	sections = append(sections, m.tabBar.View())
	sections = append(sections, m.urlBar.View())

	ts := m.activeTabState()
	if ts != nil {
		if m.historyPanel.IsVisible() {
			dividerStyle := lipgloss.NewStyle().Foreground(theme.Current.Border)
			dividerLines := make([]string, max(1, m.contentHeight()))
			for i := range dividerLines {
				dividerLines[i] = "│"
			}
			content := lipgloss.JoinHorizontal(lipgloss.Top,
				m.historyPanel.View(),
				dividerStyle.Render(strings.Join(dividerLines, "\n")),
				ts.viewport.View(),
			)
			sections = append(sections, content)
		} else {
			sections = append(sections, ts.viewport.View())
		}
	} else {
		sections = append(sections, "")
	}

	sections = append(sections, m.statusBar.View())
	if m.commandBar.IsActive() {
		sections = append(sections, m.commandBar.View())
	}

	result := lipgloss.JoinVertical(lipgloss.Left, sections...)

	// Overlay the leader palette if active.
	if m.leaderPanel.IsVisible() {
		result = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.leaderPanel.View(),
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return result
}

func (m *Model) contentHeight() int {
	const (
		tabBarHeight    = 1
		urlBarHeight    = 3 // border adds height
		statusBarHeight = 1
	)
	return max(1, m.height-tabBarHeight-urlBarHeight-statusBarHeight-m.commandBar.Height())
}

// layout recalculates dimensions for all components.
func (m *Model) layout() {
	m.tabBar.SetWidth(m.width)
	m.urlBar.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.commandBar.SetWidth(m.width)
	m.leaderPanel.SetSize(m.width, m.height)

	height := m.contentHeight()

	// Narrower when the history panel is shown.
	width := m.width
	if m.historyPanel.IsVisible() {
		panelWidth := max(20, m.width*30/100)
		m.historyPanel.SetSize(panelWidth, height)
		width = m.width - panelWidth - 1 // divider
	}
	m.vpWidth = width

	for _, ts := range m.tabStates {
		ts.viewport.SetSize(width, height)
	}
	m.setWelcome()
}

// setWelcome renders the welcome screen for the current width and theme.
func (m *Model) setWelcome() {
	welcome := browser.Render("", gemini.ParseString(welcomeGemtext(m.keys)), m.vpWidth).Content
	for _, ts := range m.tabStates {
		ts.viewport.SetWelcome(welcome)
	}
}

// reflow re-renders every tab for the current width and theme.
func (m *Model) reflow() {
	for _, ts := range m.tabStates {
		switch {
		case ts.doc != nil:
			ts.page = m.renderDoc(ts.url, *ts.doc, false)
			ts.viewport.Reflow(ts.page.Content)
		case ts.failure != nil:
			ts.viewport.Reflow(m.failureView(ts))
		}
	}
	m.setWelcome()
	m.syncStatusBar()
}

// renderDoc renders doc at the viewport width. Fresh documents replace
// whatever rendering is cached for their URL.
func (m *Model) renderDoc(u string, doc browser.Document, fresh bool) *browser.RenderedPage {
	k := cacheKey{url: u, width: m.vpWidth, theme: theme.Current.Name}
	if !fresh {
		if page, ok := m.pageCache.Get(k); ok {
			return page
		}
	}
	page := browser.Render(doc.Title, doc.Lines, m.vpWidth)
	m.pageCache.Add(k, page)
	return page
}

// handleNavEvent shows the outcome of a navigation.
func (m Model) handleNavEvent(msg navEventMsg) (tea.Model, tea.Cmd) {
	ts, ok := m.tabStates[msg.tabID]
	if !ok {
		return m, nil
	}
	next := listen(msg.tabID, ts.nav)
	ev := msg.ev
	if !ev.Handle() {
		return m, next
	}

	var cmd tea.Cmd
	switch ev.Kind {
	case browser.EventSuccess:
		doc := ev.Document
		ts.url = ev.URL.String()
		ts.doc = &doc
		ts.failure, ts.failURL = nil, ""
		ts.page = m.renderDoc(ts.url, doc, true)
		ts.viewport.SetContent(ts.page.Content)

	case browser.EventInput:
		if msg.tabID == m.tabBar.ActiveTab().ID && m.mode == ModeNormal {
			cmd = m.openPrompt(msg.tabID, ev)
		} else {
			ts.input = ev
		}

	case browser.EventFailure:
		ts.failure = ev.Failure
		ts.failURL = ""
		if ev.URL != nil {
			ts.failURL = ev.URL.String()
		}
		ts.doc, ts.page = nil, nil
		ts.viewport.SetContent(m.failureView(ts))
		m.logger.Debug("navigation failed",
			zap.String("url", ts.failURL),
			zap.Stringer("kind", ev.Failure.Kind),
		)

	case browser.EventExternal:
		if msg.tabID == m.tabBar.ActiveTab().ID {
			m.statusBar.SetMessage(fmt.Sprintf("Opened %s in another program", ev.URL))
		}
	}

	m.syncTab(msg.tabID)
	return m, tea.Batch(next, cmd)
}

// openPrompt asks for the answer to a server's input request.
func (m *Model) openPrompt(tabID int, ev *browser.Event) tea.Cmd {
	m.prompt = ev
	m.promptTab = tabID
	m.mode = ModeInput
	m.statusBar.SetMode(ui.ModeInput)
	prompt := ev.Prompt
	if prompt == "" {
		prompt = ev.URL.Host + " asks for input"
	}
	target := ev.URL
	room := func(answer string) int {
		return gemini.MaxRequestLen - len(gemini.WithQuery(target, answer).String())
	}
	cmd := m.commandBar.OpenInput(prompt, ev.Sensitive, room)
	m.layout()
	return cmd
}

// failureView renders a failed navigation with advice.
func (m *Model) failureView(ts *tabState) string {
	return browser.RenderMarkdown(failureMarkdown(ts.failure, ts.failURL), m.vpWidth)
}

func failureMarkdown(f *gemini.Failure, u string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", f.Short)
	if u != "" {
		sb.WriteString(fenced(u))
	}
	if f.Detail != "" {
		sb.WriteString(f.Detail + "\n\n")
	}
	if f.ServerDetail != "" {
		sb.WriteString("The server said:\n\n" + fenced(f.ServerDetail))
	}
	if f.Kind == gemini.KindCertificateMismatch && u != "" {
		if pu, err := url.Parse(u); err == nil {
			fmt.Fprintf(&sb, "If the capsule changed its certificate on purpose, run `:forget %s` and reload.\n\n", gemini.PinKey(pu))
		}
	}
	if u != "" {
		sb.WriteString("Press `r` to try again or `H` to go back.\n")
	} else {
		sb.WriteString("Press `o` to enter another address.\n")
	}
	return sb.String()
}

// fenced wraps text from the network in a code block so markdown inside it
// renders literally. The fence is longer than any backtick run in s.
func fenced(s string) string {
	run, longest := 0, 0
	for _, r := range s {
		if r != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	fence := strings.Repeat("`", max(3, longest+1))
	return fence + "\n" + s + "\n" + fence + "\n\n"
}

// handleKeyMsg processes key events based on current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Always allow Ctrl+C to quit.
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.mode {
	case ModeInsert:
		return m.handleInsertMode(msg)
	case ModeCommand, ModeFollow, ModeInput:
		return m.handleCommandMode(msg)
	case ModeHistory:
		return m.handleHistoryMode(msg)
	case ModeLeader:
		return m.handleLeaderMode(msg)
	default:
		return m.handleNormalMode(msg)
	}
}

// handleNormalMode processes keys in normal (browsing) mode.
func (m Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ts := m.activeTabState()
	gPressed := m.lastGKey
	m.lastGKey = false

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Leader):
		m.leaderPanel.SetSize(m.width, m.height)
		m.leaderPanel.Show()
		m.setMode(ModeLeader)
		return m, tea.Tick(leaderTimeout, func(time.Time) tea.Msg {
			return leaderTimeoutMsg{}
		})

	// gg goes to top; the first g only arms it.
	case key.Matches(msg, m.keys.GotoTop):
		if gPressed {
			ts.viewport.GotoTop()
			m.syncStatusBar()
			return m, nil
		}
		m.lastGKey = true
		return m, nil

	// gt and gT switch tabs.
	case gPressed && msg.String() == "t":
		m.tabBar.NextTab()
		return m, m.activateTab()
	case gPressed && msg.String() == "T":
		m.tabBar.PrevTab()
		return m, m.activateTab()

	case key.Matches(msg, m.keys.ScrollDown):
		ts.viewport.LineDown(1)
	case key.Matches(msg, m.keys.ScrollUp):
		ts.viewport.LineUp(1)
	case key.Matches(msg, m.keys.HalfPageDown):
		ts.viewport.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		ts.viewport.HalfPageUp()
	case key.Matches(msg, m.keys.GotoBottom):
		ts.viewport.GotoBottom()

	case key.Matches(msg, m.keys.OpenURL):
		return m, m.focusURLBar("")
	case key.Matches(msg, m.keys.EditURL):
		return m, m.focusURLBar(ts.url)

	case key.Matches(msg, m.keys.Back):
		ts.nav.Back()
	case key.Matches(msg, m.keys.Reload):
		m.reload(ts)
	case key.Matches(msg, m.keys.Stop):
		ts.nav.Stop()
		m.statusBar.SetMessage("Stopped")

	case key.Matches(msg, m.keys.FollowLink):
		if ts.page == nil || len(ts.page.Links) == 0 {
			m.statusBar.SetMessage("No links on this page")
			return m, nil
		}
		m.setMode(ModeFollow)
		cmd := m.commandBar.Open(ui.CommandFollow)
		m.layout()
		return m, cmd

	case key.Matches(msg, m.keys.NewTab):
		m.newTab()
		m.syncTabUI()
		return m, tea.Batch(m.takeCmds(), m.focusURLBar(""))
	case key.Matches(msg, m.keys.CloseTab):
		return m, m.closeTab()
	case key.Matches(msg, m.keys.NextTab):
		m.tabBar.NextTab()
		return m, m.activateTab()
	case key.Matches(msg, m.keys.PrevTab):
		m.tabBar.PrevTab()
		return m, m.activateTab()

	case key.Matches(msg, m.keys.CommandMode):
		m.setMode(ModeCommand)
		cmd := m.commandBar.Open(ui.CommandEx)
		m.layout()
		return m, cmd

	case key.Matches(msg, m.keys.Help):
		ts.nav.OpenAddress("about:help")
	case key.Matches(msg, m.keys.Bookmark):
		m.toggleBookmark()
	case key.Matches(msg, m.keys.HistoryToggle):
		m.showHistoryPanel()

	default:
		vp, cmd := ts.viewport.Update(msg)
		ts.viewport = *vp
		m.syncStatusBar()
		return m, cmd
	}

	m.syncStatusBar()
	return m, nil
}

// reload retries a failed address, or refreshes the current page.
func (m *Model) reload(ts *tabState) {
	if ts.failure != nil && ts.failURL != "" {
		ts.nav.OpenAddress(ts.failURL)
		return
	}
	ts.nav.Refresh()
}

func (m *Model) focusURLBar(value string) tea.Cmd {
	m.setMode(ModeInsert)
	m.urlBar.SetValue(value)
	return m.urlBar.Focus()
}

var modeNames = map[Mode]string{
	ModeNormal:  ui.ModeNormal,
	ModeInsert:  ui.ModeURL,
	ModeCommand: ui.ModeCommand,
	ModeFollow:  ui.ModeFollow,
	ModeInput:   ui.ModeInput,
	ModeHistory: ui.ModeHistory,
	ModeLeader:  ui.ModeLeader,
}

func (m *Model) setMode(mode Mode) {
	m.mode = mode
	m.statusBar.SetMode(modeNames[mode])
}

// handleHistoryMode processes keys when the history panel is active.
func (m Model) handleHistoryMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.historyPanel.Filtering() {
		switch msg.Type {
		case tea.KeyEsc:
			m.historyPanel.EndFilter(false)
		case tea.KeyEnter:
			m.historyPanel.EndFilter(true)
		case tea.KeyBackspace:
			m.historyPanel.DeleteFilterChar()
		case tea.KeyRunes, tea.KeySpace:
			m.historyPanel.TypeFilter(string(msg.Runes))
		}
		return m, nil
	}

	switch msg.String() {
	case "/":
		m.historyPanel.StartFilter()
		return m, nil
	case "j", "down":
		m.historyPanel.ResetGKey()
		m.historyPanel.CursorDown()
	case "k", "up":
		m.historyPanel.ResetGKey()
		m.historyPanel.CursorUp()
	case "g":
		m.historyPanel.HandleGKey()
		return m, nil
	case "G":
		m.historyPanel.ResetGKey()
		m.historyPanel.GotoBottom()
	case "ctrl+d":
		m.historyPanel.ResetGKey()
		m.historyPanel.HalfPageDown()
	case "ctrl+u":
		m.historyPanel.ResetGKey()
		m.historyPanel.HalfPageUp()

	case "d":
		m.historyPanel.ResetGKey()
		entry, ok := m.historyPanel.RemoveSelected()
		if ok && m.history != nil {
			if _, err := m.history.Remove(entry.ID); err != nil {
				m.logger.Warn("removing history entry", zap.Int64("id", entry.ID), zap.Error(err))
				m.statusBar.SetError("Could not remove history entry")
			}
		}

	case "enter":
		m.historyPanel.ResetGKey()
		entry := m.historyPanel.SelectedEntry()
		if entry == nil {
			return m, nil
		}
		m.hideHistoryPanel()
		ts := m.newTab()
		ts.nav.OpenAddress(entry.URL)
		m.syncTabUI()
		return m, m.takeCmds()

	case "esc", "ctrl+h", "q":
		m.historyPanel.ResetGKey()
		m.hideHistoryPanel()
	}

	m.historyPanel.ResetGKey()
	return m, nil
}

func (m *Model) showHistoryPanel() {
	if m.history == nil {
		m.statusBar.SetError("History is unavailable")
		return
	}
	entries, err := m.history.List(historyPageSize)
	if err != nil {
		m.logger.Warn("listing history", zap.Error(err))
		m.statusBar.SetError("Could not load history")
		return
	}
	m.historyPanel.SetEntries(entries)
	m.historyPanel.Show()
	m.setMode(ModeHistory)
	m.layout()
	m.reflow()
}

func (m *Model) hideHistoryPanel() {
	m.historyPanel.Hide()
	m.setMode(ModeNormal)
	m.layout()
	m.reflow()
}

// handleLeaderMode processes keys when the leader palette is active.
// Each key maps to a single action, then returns to normal mode.
func (m Model) handleLeaderMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.leaderPanel.Hide()
	m.setMode(ModeNormal)

	b, ok := m.leaderPanel.Lookup(msg.String())
	if !ok {
		return m, nil
	}
	ts := m.activeTabState()

	switch b.Action {
	case ui.LeaderOpen:
		return m, m.focusURLBar("")
	case ui.LeaderBack:
		ts.nav.Back()
	case ui.LeaderFollow:
		return m.handleNormalMode(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	case ui.LeaderReload:
		m.reload(ts)
	case ui.LeaderStop:
		ts.nav.Stop()

	case ui.LeaderNewTab:
		m.newTab()
		m.syncTabUI()
		return m, tea.Batch(m.takeCmds(), m.focusURLBar(""))
	case ui.LeaderCloseTab:
		return m, m.closeTab()
	case ui.LeaderNextTab:
		m.tabBar.NextTab()
		return m, m.activateTab()
	case ui.LeaderPrevTab:
		m.tabBar.PrevTab()
		return m, m.activateTab()

	case ui.LeaderBookmark:
		m.toggleBookmark()
	case ui.LeaderBookmarks:
		ts.nav.OpenAddress("about:bookmarks")
	case ui.LeaderFeeds:
		ts.nav.OpenAddress("about:feeds")
	case ui.LeaderKnownHosts:
		ts.nav.OpenAddress("about:known-hosts")

	case ui.LeaderHistory:
		m.showHistoryPanel()
	case ui.LeaderTheme:
		m.cycleTheme()
	case ui.LeaderCommand:
		m.setMode(ModeCommand)
		cmd := m.commandBar.Open(ui.CommandEx)
		m.layout()
		return m, cmd
	case ui.LeaderHelp:
		ts.nav.OpenAddress("about:help")
	}
	return m, nil
}

// cycleTheme switches to the next available theme.
func (m *Model) cycleTheme() {
	themes := theme.List()
	next := themes[0]
	for i, t := range themes {
		if t == theme.Current.Name {
			next = themes[(i+1)%len(themes)]
			break
		}
	}
	m.setTheme(next)
}

func (m *Model) setTheme(name string) bool {
	if !theme.Set(name) {
		return false
	}
	m.reflow()
	m.statusBar.SetMessage(fmt.Sprintf("Theme: %s", name))
	if m.config != nil {
		m.config.Theme = name
		if err := m.config.Save(); err != nil {
			m.logger.Warn("saving config", zap.Error(err))
		}
	}
	return true
}

// handleInsertMode processes keys when the URL bar is focused.
func (m Model) handleInsertMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.urlBar.Blur()
		m.setMode(ModeNormal)
		return m, m.activateTab()

	case tea.KeyEnter:
		addr := strings.TrimSpace(m.urlBar.Value())
		m.urlBar.Blur()
		m.setMode(ModeNormal)
		if addr != "" {
			m.statusBar.SetMessage("")
			m.activeTabState().nav.OpenAddress(addr)
		}
		m.syncTabUI()
		return m, nil
	}

	ub, cmd := m.urlBar.Update(msg)
	m.urlBar = *ub
	return m, cmd
}

// handleCommandMode processes keys in command, follow and input mode.
func (m Model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.mode == ModeInput {
			m.prompt = nil
			m.statusBar.SetMessage("Input cancelled")
		}
		m.commandBar.Close()
		m.setMode(ModeNormal)
		m.layout()
		return m, m.activateTab()

	case tea.KeyEnter:
		result := m.commandBar.Submit()
		m.setMode(ModeNormal)
		m.layout()
		return m.handleCommandResult(result)
	}

	cb, cmd := m.commandBar.Update(msg)
	m.commandBar = *cb
	return m, cmd
}

// handleCommandResult processes a submitted command.
func (m Model) handleCommandResult(result ui.CommandResult) (tea.Model, tea.Cmd) {
	switch result.Type {
	case ui.CommandEx:
		return m.executeCommand(result.Value)
	case ui.CommandFollow:
		m.followLink(result.Value)
	case ui.CommandInput:
		ev := m.prompt
		m.prompt = nil
		if ts, ok := m.tabStates[m.promptTab]; ok && ev != nil {
			ts.nav.SubmitInput(ev.URL, result.Value)
		}
	}
	return m, nil
}

// executeCommand handles :commands.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return m, nil
	}
	ts := m.activeTabState()
	arg := strings.Join(parts[1:], " ")

	switch parts[0] {
	case "q", "quit":
		return m.quit()

	case "o", "open":
		if arg == "" {
			m.statusBar.SetMessage("Usage: :open <address>")
			return m, nil
		}
		ts.nav.OpenAddress(arg)

	case "tabnew":
		nts := m.newTab()
		if arg != "" {
			nts.nav.OpenAddress(arg)
		}
		m.syncTabUI()
		return m, m.takeCmds()

	case "tabclose":
		return m, m.closeTab()

	case "home":
		home := storage.DefaultConfig().HomeURL
		if m.config != nil {
			home = m.config.HomeURL
		}
		ts.nav.OpenAddress(home)

	case "bookmark":
		if len(parts) > 1 {
			m.tagBookmark(parts[1:])
		} else {
			m.toggleBookmark()
		}
	case "bookmarks":
		ts.nav.OpenAddress("about:bookmarks")
	case "history":
		ts.nav.OpenAddress("about:history")
	case "feeds":
		ts.nav.OpenAddress("about:feeds")
	case "known-hosts":
		ts.nav.OpenAddress("about:known-hosts")
	case "help":
		ts.nav.OpenAddress("about:help")

	case "clearhistory":
		if m.history == nil {
			m.statusBar.SetError("History is unavailable")
			return m, nil
		}
		if err := m.history.Clear(); err != nil {
			m.logger.Warn("clearing history", zap.Error(err))
			m.statusBar.SetError("Could not clear history")
			return m, nil
		}
		m.statusBar.SetMessage("History cleared")

	case "subscribe":
		m.subscribe(arg, ts)

	case "forget":
		m.forget(arg, ts)

	case "theme":
		if arg == "" {
			m.statusBar.SetMessage(fmt.Sprintf("Current: %s | Available: %s", theme.Current.Name, strings.Join(theme.List(), ", ")))
		} else if !m.setTheme(arg) {
			m.statusBar.SetError(fmt.Sprintf("Unknown theme: %s (available: %s)", arg, strings.Join(theme.List(), ", ")))
		}

	default:
		m.statusBar.SetError(fmt.Sprintf("Unknown command: %s", parts[0]))
	}
	return m, nil
}

// subscribe follows the gemlog at raw, or the current page.
func (m *Model) subscribe(raw string, ts *tabState) {
	if m.config == nil {
		m.statusBar.SetError("Subscriptions are unavailable")
		return
	}
	if raw == "" {
		raw = ts.url
	}
	u, err := gemini.Resolve(raw, nil)
	if err != nil || u.Scheme != gemini.Scheme {
		m.statusBar.SetError(fmt.Sprintf("Not a gemini address: %q", raw))
		return
	}
	if !m.config.AddFeed(u.String()) {
		m.statusBar.SetMessage("Already subscribed to " + u.String())
		return
	}
	if err := m.config.Save(); err != nil {
		m.logger.Warn("saving config", zap.Error(err))
	}
	m.capsules.setSubscriptions(m.config.Feeds)
	m.statusBar.SetMessage("Subscribed to " + u.String())
}

// forget drops the pinned certificate for host, or for the host of the
// failed or current page.
func (m *Model) forget(host string, ts *tabState) {
	if m.pins == nil {
		m.statusBar.SetError("Known hosts are unavailable")
		return
	}
	if host == "" {
		raw := ts.failURL
		if raw == "" {
			raw = ts.url
		}
		if u, err := url.Parse(raw); err == nil && u.Scheme == gemini.Scheme {
			host = gemini.PinKey(u)
		}
	}
	if host == "" {
		m.statusBar.SetMessage("Usage: :forget <host>")
		return
	}
	removed, err := m.pins.Forget(host)
	switch {
	case err != nil:
		m.logger.Warn("forgetting pin", zap.String("host", host), zap.Error(err))
		m.statusBar.SetError("Could not forget " + host)
	case removed:
		m.statusBar.SetMessage(fmt.Sprintf("Forgot certificate for %s; reload to trust the new one", host))
	default:
		m.statusBar.SetMessage("No certificate pinned for " + host)
	}
}

// toggleBookmark bookmarks or unbookmarks the current page.
func (m *Model) toggleBookmark() {
	ts := m.activeTabState()
	if m.bookmarks == nil {
		m.statusBar.SetError("Bookmarks are unavailable")
		return
	}
	if ts.doc == nil || ts.url == "" {
		m.statusBar.SetMessage("Nothing to bookmark")
		return
	}
	if m.bookmarks.Toggle(ts.url, ts.title()) {
		m.statusBar.SetMessage("Bookmarked")
	} else {
		m.statusBar.SetMessage("Bookmark removed")
	}
	m.syncTabUI()
}

// tagBookmark bookmarks the current page with tags, replacing the tags
// of an existing bookmark.
func (m *Model) tagBookmark(tags []string) {
	ts := m.activeTabState()
	if m.bookmarks == nil {
		m.statusBar.SetError("Bookmarks are unavailable")
		return
	}
	if ts.doc == nil || ts.url == "" {
		m.statusBar.SetMessage("Nothing to bookmark")
		return
	}
	if !m.bookmarks.Add(ts.url, ts.title(), tags...) {
		m.bookmarks.SetTags(ts.url, tags...)
	}
	m.statusBar.SetMessage("Bookmarked as " + strings.Join(tags, ", "))
	m.syncTabUI()
}

// followLink opens the numbered link on the current page.
func (m *Model) followLink(input string) {
	ts := m.activeTabState()
	if ts.page == nil {
		return
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(ts.page.Links) {
		m.statusBar.SetError(fmt.Sprintf("No link %q (1-%d)", input, len(ts.page.Links)))
		return
	}
	ts.nav.Open(ts.page.Links[n-1].URL)
}

// closeTab closes the active tab and stops its navigator.
func (m *Model) closeTab() tea.Cmd {
	idx := m.tabBar.Active()
	id := m.tabBar.ActiveTab().ID
	if !m.tabBar.CloseTab(idx) {
		m.statusBar.SetMessage("Cannot close the last tab")
		return nil
	}
	if ts, ok := m.tabStates[id]; ok {
		ts.cancel()
		delete(m.tabStates, id)
	}
	return m.activateTab()
}

// activateTab refreshes the chrome after a tab switch and raises any
// prompt that arrived while the tab was in the background.
func (m *Model) activateTab() tea.Cmd {
	m.syncTabUI()
	id := m.tabBar.ActiveTab().ID
	ts := m.tabStates[id]
	if ts == nil || ts.input == nil || m.mode != ModeNormal {
		return nil
	}
	ev := ts.input
	ts.input = nil
	return m.openPrompt(id, ev)
}

// quit saves the session and stops every navigator.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.saveSession()
	for _, ts := range m.tabStates {
		ts.cancel()
	}
	return m, tea.Quit
}

func (m *Model) saveSession() {
	if m.sessions == nil {
		return
	}
	var sess storage.Session
	for i := 0; i < m.tabBar.Count(); i++ {
		tab, _ := m.tabBar.Tab(i)
		ts, ok := m.tabStates[tab.ID]
		if !ok {
			continue
		}
		st := ts.nav.State()
		if st.CurrentURL == "" {
			continue
		}
		if i == m.tabBar.Active() {
			sess.Active = len(sess.Tabs)
		}
		sess.Tabs = append(sess.Tabs, st)
	}
	if err := m.sessions.Save(sess); err != nil {
		m.logger.Warn("saving session", zap.Error(err))
		return
	}
	m.logger.Info("session saved", zap.Int("tabs", len(sess.Tabs)))
}

// updateComponents forwards non-key messages to the active viewport.
func (m *Model) updateComponents(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	if ts := m.activeTabState(); ts != nil {
		vp, cmd := ts.viewport.Update(msg)
		ts.viewport = *vp
		cmds = append(cmds, cmd)
		m.syncStatusBar()
	}
	if m.commandBar.IsActive() {
		cb, cmd := m.commandBar.Update(msg)
		m.commandBar = *cb
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (m *Model) activeTabState() *tabState {
	return m.tabStates[m.tabBar.ActiveTab().ID]
}

// syncTab updates the tab bar entry for id, and the chrome when id is
// the active tab.
func (m *Model) syncTab(id int) {
	ts, ok := m.tabStates[id]
	if !ok {
		return
	}
	m.tabBar.Update(m.tabBar.IndexOf(id), ts.title(), ts.url, ts.phase != browser.PhaseIdle)
	if id == m.tabBar.ActiveTab().ID {
		m.syncTabUI()
	}
}

// syncTabUI updates the URL bar and status bar to reflect the active tab.
func (m *Model) syncTabUI() {
	ts := m.activeTabState()
	if ts == nil {
		return
	}
	if m.mode != ModeInsert {
		m.urlBar.SetValue(ts.url)
	}
	m.statusBar.SetBookmarked(m.bookmarks != nil && ts.doc != nil && m.bookmarks.Has(ts.url))
	m.syncStatusBar()
}

// syncStatusBar updates the status bar for the active tab.
func (m *Model) syncStatusBar() {
	ts := m.activeTabState()
	if ts == nil {
		return
	}
	m.statusBar.SetTitle(ts.title())
	phase := ""
	if ts.phase != browser.PhaseIdle {
		phase = strings.ToUpper(ts.phase.String()[:1]) + ts.phase.String()[1:]
	}
	m.statusBar.SetPhase(phase)
	m.urlBar.SetLoading(ts.phase != browser.PhaseIdle)
	m.statusBar.SetScrollInfo(ts.viewport.ScrollInfo())
	links := 0
	if ts.page != nil {
		links = len(ts.page.Links)
	}
	m.statusBar.SetLinkCount(links)
}
