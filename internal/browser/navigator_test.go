package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

type route func(ctx context.Context, u *url.URL) gemini.Outcome

// fakeServer is a Transport serving scripted outcomes.
type fakeServer struct {
	mu     sync.Mutex
	routes map[string]route
	opened []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{routes: make(map[string]route)}
}

func (f *fakeServer) handle(raw string, r route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[raw] = r
}

func (f *fakeServer) Open(ctx context.Context, u *url.URL) *gemini.Session {
	f.mu.Lock()
	f.opened = append(f.opened, u.String())
	r := f.routes[u.String()]
	f.mu.Unlock()

	return gemini.Start(ctx, func(ctx context.Context, receiving func() bool) gemini.Outcome {
		if r == nil {
			return gemini.Outcome{Kind: gemini.OutcomeFailure, URL: u, Failure: &gemini.Failure{
				Kind: gemini.KindServerError, Short: "Not found", Code: 51, ServerDetail: "no route",
			}}
		}
		out := r(ctx, u)
		if out.Kind == gemini.OutcomeSuccess && !receiving() {
			return gemini.Outcome{}
		}
		return out
	})
}

func (f *fakeServer) openedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func page(body string) route {
	return func(_ context.Context, u *url.URL) gemini.Outcome {
		return gemini.Outcome{Kind: gemini.OutcomeSuccess, URL: u, MIME: gemini.DefaultMIME, Body: []byte(body)}
	}
}

func redirect(target string) route {
	return func(_ context.Context, u *url.URL) gemini.Outcome {
		t, err := gemini.Resolve(target, u)
		if err != nil {
			panic(err)
		}
		return gemini.Outcome{Kind: gemini.OutcomeRedirect, URL: u, Target: t}
	}
}

// blocking never resolves; cancelled is closed once its session is
// cancelled.
func blocking(cancelled chan struct{}) route {
	return func(ctx context.Context, u *url.URL) gemini.Outcome {
		<-ctx.Done()
		close(cancelled)
		return gemini.Outcome{}
	}
}

type recorder struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func (r *recorder) Record(e HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recorder) all() []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]HistoryEntry(nil), r.entries...)
}

type offline struct{}

func (offline) Online() bool { return false }

func startNavigator(t *testing.T, tr Transport, opts ...Option) *Navigator {
	t.Helper()
	n := NewNavigator(tr, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-n.Done()
	})
	return n
}

func nextEvent(t *testing.T, n *Navigator) *Event {
	t.Helper()
	select {
	case ev := <-n.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a navigation event")
		return nil
	}
}

func requireNoEvent(t *testing.T, n *Navigator) {
	t.Helper()
	select {
	case ev := <-n.Events():
		t.Fatalf("unexpected %s event for %v", ev.Kind, ev.URL)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cancellation")
	}
}

func TestOpenSuccess(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", page("* item\n# Title\n=> gemini://x/ label"))
	rec := &recorder{}
	n := startNavigator(t, srv, WithHistoryRecorder(rec))

	n.Open("gemini://example.org/")
	ev := nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind)
	assert.Equal(t, "gemini://example.org/", ev.URL.String())
	assert.Equal(t, []gemini.Line{
		{Kind: gemini.LineListItem, Text: "item"},
		{Kind: gemini.LineHeading, Level: 1, Text: "Title"},
		{Kind: gemini.LineLink, URL: "gemini://x/", Text: "label"},
	}, ev.Document.Lines)
	assert.Equal(t, "Title", ev.Document.Title)

	st := n.State()
	assert.Equal(t, "gemini://example.org/", st.CurrentURL)
	assert.Equal(t, []string{"gemini://example.org/"}, st.Visited)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, ev.Document, n.Document())

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "Title", entries[0].Title)
	assert.Equal(t, "gemini://example.org/", entries[0].URL)
}

// chain serves /r0 .. /r{hops-1} as redirects to the next hop and
// /r{hops} as a page.
func chain(srv *fakeServer, hops int) {
	for i := range hops {
		srv.handle(fmt.Sprintf("gemini://example.org/r%d", i), redirect(fmt.Sprintf("/r%d", i+1)))
	}
	srv.handle(fmt.Sprintf("gemini://example.org/r%d", hops), page("# Arrived"))
}

func TestRedirectChainWithinLimit(t *testing.T) {
	srv := newFakeServer()
	chain(srv, MaxRedirects)
	n := startNavigator(t, srv)

	n.Open("gemini://example.org/r0")
	ev := nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind, "%v", ev.Failure)
	assert.Equal(t, "gemini://example.org/r5", ev.URL.String())
	assert.Equal(t, []string{"gemini://example.org/r5"}, n.State().Visited, "hops are not history")
	assert.Len(t, srv.openedURLs(), MaxRedirects+1)
	requireNoEvent(t, n)
}

func TestTooManyRedirects(t *testing.T) {
	srv := newFakeServer()
	chain(srv, MaxRedirects+1)
	n := startNavigator(t, srv)

	n.Open("gemini://example.org/r0")
	ev := nextEvent(t, n)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Equal(t, gemini.KindTooManyRedirects, ev.Failure.Kind)
	assert.Contains(t, ev.Failure.Detail, "5 redirects")

	opened := srv.openedURLs()
	assert.Len(t, opened, MaxRedirects+1)
	assert.NotContains(t, opened, "gemini://example.org/r6")
	assert.Empty(t, n.State().Visited)
	requireNoEvent(t, n)
}

func TestRedirectToOtherScheme(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", redirect("https://example.org/docs"))
	dispatched := make(chan string, 1)
	n := startNavigator(t, srv, WithDispatcher(DispatcherFunc(func(_ context.Context, u *url.URL) error {
		dispatched <- u.String()
		return nil
	})))

	n.Open("gemini://example.org/")
	ev := nextEvent(t, n)
	require.Equal(t, EventExternal, ev.Kind)
	assert.Equal(t, "https://example.org/docs", ev.URL.String())
	assert.Equal(t, "https://example.org/docs", <-dispatched)
	assert.Empty(t, n.State().Visited)
	assert.Equal(t, PhaseIdle, n.Phase())
}

func TestRedirectToOtherSchemeWithoutDispatcher(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", redirect("https://example.org/"))
	n := startNavigator(t, srv)

	n.Open("gemini://example.org/")
	ev := nextEvent(t, n)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Equal(t, gemini.KindUnsupportedScheme, ev.Failure.Kind)
}

func TestInputAndSubmit(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/search", func(_ context.Context, u *url.URL) gemini.Outcome {
		return gemini.Outcome{Kind: gemini.OutcomeInput, URL: u, Prompt: "Search terms", Sensitive: true}
	})
	srv.handle("gemini://example.org/search?hello%20world", page("# Results"))
	n := startNavigator(t, srv)

	n.Open("gemini://example.org/search")
	ev := nextEvent(t, n)
	require.Equal(t, EventInput, ev.Kind)
	assert.Equal(t, "Search terms", ev.Prompt)
	assert.True(t, ev.Sensitive)
	assert.Empty(t, n.State().Visited)

	n.SubmitInput(ev.URL, "hello world")
	ev = nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind, "%v", ev.Failure)
	assert.Equal(t, []string{"gemini://example.org/search?hello%20world"}, n.State().Visited)
}

func TestFailureLeavesHistory(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", page("home"))
	n := startNavigator(t, srv)

	n.Open("gemini://example.org/")
	require.Equal(t, EventSuccess, nextEvent(t, n).Kind)

	n.Open("/missing")
	ev := nextEvent(t, n)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Equal(t, gemini.KindServerError, ev.Failure.Kind)
	assert.Equal(t, "no route", ev.Failure.ServerDetail)
	assert.Equal(t, "gemini://example.org/missing", ev.URL.String())

	st := n.State()
	assert.Equal(t, "gemini://example.org/", st.CurrentURL)
	assert.Equal(t, []string{"gemini://example.org/"}, st.Visited)
}

func TestOfflineAdvice(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", func(_ context.Context, u *url.URL) gemini.Outcome {
		return gemini.Outcome{Kind: gemini.OutcomeFailure, URL: u,
			Failure: gemini.NewFailure(gemini.KindConnectFailed, "Could not resolve example.org.", nil)}
	})
	n := startNavigator(t, srv, WithConnectivity(offline{}))

	n.Open("gemini://example.org/")
	ev := nextEvent(t, n)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Contains(t, ev.Failure.Detail, "Could not resolve example.org.")
	assert.Contains(t, ev.Failure.Detail, "Internet may be inaccessible")
}

func TestNewOpenSupersedesOutstanding(t *testing.T) {
	srv := newFakeServer()
	cancelled := make(chan struct{})
	srv.handle("gemini://slow.example/", blocking(cancelled))
	srv.handle("gemini://fast.example/", page("fast"))
	n := startNavigator(t, srv)

	n.Open("gemini://slow.example/")
	n.Open("gemini://fast.example/")

	ev := nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind)
	assert.Equal(t, "gemini://fast.example/", ev.URL.String())
	waitClosed(t, cancelled)
	requireNoEvent(t, n)
	assert.Equal(t, []string{"gemini://fast.example/"}, n.State().Visited)
}

func TestStopCancelsWithoutEvent(t *testing.T) {
	srv := newFakeServer()
	cancelled := make(chan struct{})
	srv.handle("gemini://slow.example/", blocking(cancelled))
	n := startNavigator(t, srv)

	n.Open("gemini://slow.example/")
	n.Stop()
	waitClosed(t, cancelled)
	requireNoEvent(t, n)

	st := n.State()
	assert.Empty(t, st.Visited)
	assert.Equal(t, PhaseIdle, st.Phase)
}

func TestDuplicateOpenPushesOnce(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", page("home"))
	n := startNavigator(t, srv)

	for range 2 {
		n.Open("gemini://example.org/")
		require.Equal(t, EventSuccess, nextEvent(t, n).Kind)
	}
	assert.Equal(t, []string{"gemini://example.org/"}, n.State().Visited)
}

func TestBack(t *testing.T) {
	srv := newFakeServer()
	for _, p := range []string{"a", "b", "c"} {
		srv.handle("gemini://example.org/"+p, page("# "+p))
	}
	n := startNavigator(t, srv)

	for _, p := range []string{"a", "b", "c"} {
		n.Open("gemini://example.org/" + p)
		require.Equal(t, EventSuccess, nextEvent(t, n).Kind)
	}

	n.Back()
	ev := nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind)
	assert.Equal(t, "gemini://example.org/b", ev.URL.String())
	assert.Equal(t, []string{"gemini://example.org/a", "gemini://example.org/b"}, n.State().Visited)
}

func TestBackWithoutPreviousIsNoop(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", page("home"))
	n := startNavigator(t, srv)

	n.Back()
	requireNoEvent(t, n)

	n.Open("gemini://example.org/")
	require.Equal(t, EventSuccess, nextEvent(t, n).Kind)
	n.Back()
	requireNoEvent(t, n)
	assert.Len(t, srv.openedURLs(), 1)
}

func TestRefresh(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", page("home"))
	n := startNavigator(t, srv)

	n.Refresh()
	requireNoEvent(t, n)

	n.Open("gemini://example.org/")
	require.Equal(t, EventSuccess, nextEvent(t, n).Kind)
	n.Refresh()
	require.Equal(t, EventSuccess, nextEvent(t, n).Kind)
	assert.Equal(t, []string{"gemini://example.org/", "gemini://example.org/"}, srv.openedURLs())
	assert.Equal(t, []string{"gemini://example.org/"}, n.State().Visited)
}

func TestResume(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/a", page("a"))
	n := startNavigator(t, srv)

	n.Resume(State{
		CurrentURL: "gemini://example.org/b",
		Visited:    []string{"gemini://example.org/a", "gemini://example.org/b"},
	})
	requireNoEvent(t, n)
	st := n.State()
	assert.Equal(t, "gemini://example.org/b", st.CurrentURL)
	assert.Equal(t, []string{"gemini://example.org/a", "gemini://example.org/b"}, st.Visited)
	assert.Empty(t, srv.openedURLs(), "resume does not fetch")

	n.Back()
	ev := nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind)
	assert.Equal(t, "gemini://example.org/a", ev.URL.String())
}

func TestOpenResolution(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/dir/", page("=> page.gmi"))
	srv.handle("gemini://example.org/dir/page.gmi", page("page"))
	srv.handle("gemini://other.org:1965/", page("other"))
	n := startNavigator(t, srv)

	n.Open("gemini://example.org/dir/")
	require.Equal(t, EventSuccess, nextEvent(t, n).Kind)

	n.Open("page.gmi")
	ev := nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind)
	assert.Equal(t, "gemini://example.org/dir/page.gmi", ev.URL.String())

	n.OpenAddress("other.org")
	ev = nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind)
	assert.Equal(t, "gemini://other.org:1965/", ev.URL.String())
}

func TestInvalidAddressKeepsRequestInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	srv := newFakeServer()
	srv.handle("gemini://slow.example/", blocking(cancelled))
	n := startNavigator(t, srv)

	n.Open("gemini://slow.example/")
	n.OpenAddress("foo bar")
	ev := nextEvent(t, n)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Equal(t, gemini.KindInvalidURI, ev.Failure.Kind)
	assert.NotEqual(t, PhaseIdle, n.Phase(), "the earlier request is still running")
	assert.NotEqual(t, PhaseIdle, n.State().Phase)

	n.Stop()
	waitClosed(t, cancelled)
}

func TestInvalidAddress(t *testing.T) {
	n := startNavigator(t, newFakeServer())

	n.OpenAddress("   ")
	ev := nextEvent(t, n)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Nil(t, ev.URL)
	assert.ErrorIs(t, ev.Failure, gemini.ErrInvalidURI)
}

func TestExternalSchemes(t *testing.T) {
	var dispatched []string
	n := startNavigator(t, newFakeServer(), WithDispatcher(DispatcherFunc(func(_ context.Context, u *url.URL) error {
		dispatched = append(dispatched, u.String())
		return nil
	})))

	n.Open("mailto:someone@example.org")
	ev := nextEvent(t, n)
	require.Equal(t, EventExternal, ev.Kind)
	assert.Equal(t, []string{"mailto:someone@example.org"}, dispatched)
	assert.Empty(t, n.State().Visited)

	bare := startNavigator(t, newFakeServer())
	bare.Open("https://example.org/")
	ev = nextEvent(t, bare)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Equal(t, gemini.KindUnsupportedScheme, ev.Failure.Kind)
}

func TestNavigatorAboutPages(t *testing.T) {
	rec := &recorder{}
	srv := newFakeServer()
	n := startNavigator(t, srv, WithHistoryRecorder(rec), WithAbout(AboutPages{
		"bookmarks": func(context.Context) (string, error) {
			return "# Bookmarks\n=> gemini://example.org/ Example\n", nil
		},
	}))

	n.Open("about:bookmarks")
	ev := nextEvent(t, n)
	require.Equal(t, EventSuccess, ev.Kind, "%v", ev.Failure)
	assert.Equal(t, "Bookmarks", ev.Document.Title)
	assert.Equal(t, []string{"about:bookmarks"}, n.State().Visited)
	assert.Empty(t, rec.all(), "built-in pages are not recorded")
	assert.Empty(t, srv.openedURLs())

	n.Open("about:nope")
	ev = nextEvent(t, n)
	require.Equal(t, EventFailure, ev.Kind)
	assert.Equal(t, gemini.StatusNotFound, ev.Failure.Code)
}

func TestEventHandleOnce(t *testing.T) {
	ev := &Event{Kind: EventSuccess}
	assert.True(t, ev.Handle())
	assert.False(t, ev.Handle())
}

func TestChangedNotifies(t *testing.T) {
	srv := newFakeServer()
	srv.handle("gemini://example.org/", page("home"))
	n := startNavigator(t, srv)

	n.Open("gemini://example.org/")
	select {
	case <-n.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	require.Equal(t, EventSuccess, nextEvent(t, n).Kind)
}
