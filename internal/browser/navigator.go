// Package browser holds the navigation controller that drives transfer
// sessions for one tab, along with content decoding and rendering.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vidyasagar/gsurf/internal/gemini"
	"github.com/vidyasagar/gsurf/internal/metrics"
	"go.uber.org/zap"
)

// MaxRedirects is how many redirects a single navigation follows.
const MaxRedirects = 5

const offlineAdvice = "Internet may be inaccessible. Check your connection and try again."

// Phase is the lifecycle stage of the outstanding request.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseReceiving
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseReceiving:
		return "receiving"
	}
	return "idle"
}

// State is a navigator's resumable state.
type State struct {
	CurrentURL string   `json:"current_url,omitempty"`
	Visited    []string `json:"visited,omitempty"`
	Phase      Phase    `json:"-"`
}

// EventKind identifies a terminal navigation event.
type EventKind int

const (
	EventSuccess EventKind = iota
	EventInput
	EventFailure
	EventExternal // handed to another program
)

func (k EventKind) String() string {
	switch k {
	case EventSuccess:
		return "success"
	case EventInput:
		return "input"
	case EventFailure:
		return "failure"
	case EventExternal:
		return "external"
	}
	return "unknown"
}

// Event ends a navigation. Only the fields belonging to Kind are set.
type Event struct {
	Kind EventKind
	URL  *url.URL // nil when the address could not be parsed

	Document Document // success

	Prompt    string // input
	Sensitive bool

	Failure *gemini.Failure // failure

	handled atomic.Bool
}

// Handle marks the event consumed. Only the first call returns true.
func (e *Event) Handle() bool {
	return e.handled.CompareAndSwap(false, true)
}

// HistoryEntry is offered to the HistoryRecorder after each successful
// navigation.
type HistoryEntry struct {
	URL       string
	Title     string
	VisitedAt time.Time
}

// HistoryRecorder persists visited pages.
type HistoryRecorder interface {
	Record(entry HistoryEntry) error
}

// Transport starts transfer sessions. *gemini.Client implements it.
type Transport interface {
	Open(ctx context.Context, u *url.URL) *gemini.Session
}

// Option configures a Navigator.
type Option func(*Navigator)

func WithAbout(h AboutHandler) Option { return func(n *Navigator) { n.about = h } }
func WithDispatcher(d Dispatcher) Option { return func(n *Navigator) { n.dispatcher = d } }
func WithHistoryRecorder(r HistoryRecorder) Option { return func(n *Navigator) { n.recorder = r } }
func WithConnectivity(c Connectivity) Option { return func(n *Navigator) { n.online = c } }
func WithMetrics(m *metrics.Metrics) Option { return func(n *Navigator) { n.metrics = m } }

func WithLogger(l *zap.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.logger = l
		}
	}
}

type intentKind int

const (
	intentOpen intentKind = iota
	intentOpenAddress
	intentBack
	intentSubmit
	intentRefresh
	intentResume
	intentStop
)

type intent struct {
	kind  intentKind
	raw   string
	url   *url.URL
	state State
}

// request is one navigation attempt.
type request struct {
	uri       *url.URL
	redirects int
}

// Navigator is the navigation state machine of one tab.
//
// Intents are queued and processed in order by Run, which owns the history
// and the single outstanding session. Events from a superseded session are
// never observed: Run only listens to the session it started last.
type Navigator struct {
	transport  Transport
	about      AboutHandler
	dispatcher Dispatcher
	recorder   HistoryRecorder
	online     Connectivity
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	intents chan intent
	events  chan *Event
	changed chan struct{}
	done    chan struct{}

	mu   sync.Mutex
	snap State
	doc  Document

	// Owned by Run.
	history *History
	current *url.URL
	active  *gemini.Session
	req     request
	pending []*Event
}

// NewNavigator creates a navigator. Call Run to start processing intents.
func NewNavigator(t Transport, opts ...Option) *Navigator {
	n := &Navigator{
		transport: t,
		logger:    zap.NewNop(),
		now:       time.Now,
		intents:   make(chan intent, 16),
		events:    make(chan *Event),
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		history:   NewHistory(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Events delivers one terminal event per navigation intent.
func (n *Navigator) Events() <-chan *Event { return n.events }

// Changed receives a value whenever the state or document may have
// changed. Notifications coalesce.
func (n *Navigator) Changed() <-chan struct{} { return n.changed }

// Done is closed when Run returns.
func (n *Navigator) Done() <-chan struct{} { return n.done }

// State returns a snapshot of the navigation state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.snap
	s.Visited = append([]string(nil), n.snap.Visited...)
	return s
}

// Phase returns the current request phase.
func (n *Navigator) Phase() Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snap.Phase
}

// Document returns the last successfully loaded document.
func (n *Navigator) Document() Document {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.doc
}

// Open navigates to raw, resolved against the current URL.
func (n *Navigator) Open(raw string) { n.send(intent{kind: intentOpen, raw: raw}) }

// OpenAddress navigates to raw as typed in an address bar: it is never
// resolved against the current page.
func (n *Navigator) OpenAddress(raw string) { n.send(intent{kind: intentOpenAddress, raw: raw}) }

// Back re-opens the previous page. It does nothing without one.
func (n *Navigator) Back() { n.send(intent{kind: intentBack}) }

// SubmitInput answers an input prompt from promptURL with text.
func (n *Navigator) SubmitInput(promptURL *url.URL, text string) {
	n.send(intent{kind: intentSubmit, url: promptURL, raw: text})
}

// Refresh re-opens the current page. It does nothing before the first
// successful navigation.
func (n *Navigator) Refresh() { n.send(intent{kind: intentRefresh}) }

// Resume replaces the current URL and history with s without fetching.
func (n *Navigator) Resume(s State) { n.send(intent{kind: intentResume, state: s}) }

// Stop abandons the outstanding request, if any, without an event.
func (n *Navigator) Stop() { n.send(intent{kind: intentStop}) }

func (n *Navigator) send(in intent) {
	select {
	case n.intents <- in:
	case <-n.done:
	}
}

// Run processes intents until ctx is done.
func (n *Navigator) Run(ctx context.Context) {
	defer close(n.done)
	defer n.cancelActive()

	for {
		var sessionEvents <-chan gemini.Event
		if n.active != nil {
			sessionEvents = n.active.Events()
		}
		var out chan<- *Event
		var next *Event
		if len(n.pending) > 0 {
			out, next = n.events, n.pending[0]
		}

		select {
		case <-ctx.Done():
			return
		case in := <-n.intents:
			n.handle(ctx, in)
		case ev, ok := <-sessionEvents:
			if !ok {
				n.active = nil
				n.publish(PhaseIdle)
				continue
			}
			n.onSessionEvent(ctx, ev)
		case out <- next:
			n.pending[0] = nil
			n.pending = n.pending[1:]
		}
	}
}

func (n *Navigator) handle(ctx context.Context, in intent) {
	switch in.kind {
	case intentOpen, intentOpenAddress:
		var base *url.URL
		if in.kind == intentOpen {
			base = n.current
		}
		u, err := gemini.Resolve(in.raw, base)
		if err != nil {
			n.fail(nil, gemini.NewFailure(gemini.KindInvalidURI,
				fmt.Sprintf("%q is not a valid address.", in.raw), err))
			return
		}
		n.start(ctx, u, 0)

	case intentBack:
		prev, ok := n.history.Back()
		if !ok {
			return
		}
		u, err := url.Parse(prev)
		if err != nil {
			n.fail(nil, gemini.NewFailure(gemini.KindInvalidURI, fmt.Sprintf("%q is not a valid address.", prev), err))
			return
		}
		n.start(ctx, u, 0)

	case intentSubmit:
		if in.url == nil {
			return
		}
		n.start(ctx, gemini.WithQuery(in.url, in.raw), 0)

	case intentRefresh:
		if n.current == nil {
			return
		}
		n.start(ctx, n.current, 0)

	case intentResume:
		n.cancelActive()
		n.history = NewHistory(in.state.Visited...)
		n.current = nil
		if in.state.CurrentURL != "" {
			if u, err := url.Parse(in.state.CurrentURL); err == nil {
				n.current = u
			}
		}
		n.mu.Lock()
		n.doc = Document{}
		n.mu.Unlock()
		n.publish(PhaseIdle)

	case intentStop:
		if n.active != nil {
			n.logger.Debug("navigation stopped", zap.String("url", n.req.uri.Redacted()))
		}
		n.cancelActive()
		n.publish(PhaseIdle)
	}
}

// start supersedes any outstanding request with one for u.
func (n *Navigator) start(ctx context.Context, u *url.URL, redirects int) {
	n.cancelActive()
	n.req = request{uri: u, redirects: redirects}

	switch u.Scheme {
	case gemini.Scheme:
		n.active = n.transport.Open(ctx, u)
	case AboutScheme:
		n.active = openAbout(ctx, n.about, u)
	default:
		n.dispatch(ctx, u)
		return
	}
	n.logger.Debug("navigation started", zap.String("url", u.Redacted()), zap.Int("redirects", redirects))
	n.publish(PhaseConnecting)
}

func (n *Navigator) dispatch(ctx context.Context, u *url.URL) {
	if n.dispatcher == nil {
		n.fail(u, gemini.NewFailure(gemini.KindUnsupportedScheme,
			fmt.Sprintf("No program is set up to open %s: addresses.", u.Scheme), nil))
		return
	}
	if err := n.dispatcher.Dispatch(ctx, u); err != nil {
		n.fail(u, gemini.NewFailure(gemini.KindUnsupportedScheme,
			fmt.Sprintf("Could not open %s in another program: %v", u.Redacted(), err), err))
		return
	}
	n.logger.Info("handed off to another program", zap.String("url", u.Redacted()))
	n.publish(PhaseIdle)
	n.emit(&Event{Kind: EventExternal, URL: u})
}

func (n *Navigator) onSessionEvent(ctx context.Context, ev gemini.Event) {
	switch ev.Kind {
	case gemini.EventConnecting:
		n.publish(PhaseConnecting)
	case gemini.EventReceiving:
		n.publish(PhaseReceiving)
	case gemini.EventResolved:
		n.active = nil
		n.onOutcome(ctx, ev.Outcome)
	}
}

func (n *Navigator) onOutcome(ctx context.Context, out gemini.Outcome) {
	switch out.Kind {
	case gemini.OutcomeSuccess:
		n.succeed(out)

	case gemini.OutcomeRedirect:
		if n.req.redirects >= MaxRedirects {
			n.fail(out.URL, gemini.NewFailure(gemini.KindTooManyRedirects,
				fmt.Sprintf("Gave up after %d redirects; the next one pointed to %s.", MaxRedirects, out.Target.Redacted()), nil))
			return
		}
		n.metrics.ObserveRedirect()
		n.logger.Debug("following redirect",
			zap.String("from", out.URL.Redacted()),
			zap.String("to", out.Target.Redacted()),
			zap.Bool("permanent", out.Permanent),
		)
		n.start(ctx, out.Target, n.req.redirects+1)

	case gemini.OutcomeInput:
		n.publish(PhaseIdle)
		n.emit(&Event{Kind: EventInput, URL: out.URL, Prompt: out.Prompt, Sensitive: out.Sensitive})

	default:
		n.fail(out.URL, out.Failure)
	}
}

func (n *Navigator) succeed(out gemini.Outcome) {
	doc := Decode(out.MIME, out.Body, out.URL)
	n.current = out.URL
	n.history.Push(out.URL.String())
	n.mu.Lock()
	n.doc = doc
	n.mu.Unlock()
	n.publish(PhaseIdle)

	if n.recorder != nil && out.URL.Scheme == gemini.Scheme {
		entry := HistoryEntry{URL: out.URL.String(), Title: doc.Title, VisitedAt: n.now()}
		if err := n.recorder.Record(entry); err != nil {
			n.logger.Warn("recording history failed", zap.String("url", entry.URL), zap.Error(err))
		}
	}
	n.emit(&Event{Kind: EventSuccess, URL: out.URL, Document: doc})
}

func (n *Navigator) fail(u *url.URL, f *gemini.Failure) {
	if f == nil {
		f = gemini.NewFailure(gemini.KindMalformedResponse, "", nil)
	}
	if (f.Kind == gemini.KindConnectFailed || f.Kind == gemini.KindTransferInterrupted) &&
		n.online != nil && !n.online.Online() {
		advised := *f
		advised.Detail = strings.TrimSpace(advised.Detail + "\n\n" + offlineAdvice)
		f = &advised
	}

	fields := []zap.Field{zap.Stringer("kind", f.Kind), zap.String("detail", f.Detail)}
	if u != nil {
		fields = append(fields, zap.String("url", u.Redacted()))
	}
	n.logger.Info("navigation failed", fields...)

	// A rejected address leaves a request already in flight running.
	phase := PhaseIdle
	if n.active != nil {
		phase = n.Phase()
	}
	n.publish(phase)
	n.emit(&Event{Kind: EventFailure, URL: u, Failure: f})
}

func (n *Navigator) emit(ev *Event) {
	n.metrics.ObserveNavigation(ev.Kind.String())
	n.pending = append(n.pending, ev)
}

func (n *Navigator) cancelActive() {
	if n.active != nil {
		n.active.Cancel()
		n.active = nil
	}
}

// publish refreshes the snapshot read by State and notifies Changed.
func (n *Navigator) publish(phase Phase) {
	n.mu.Lock()
	n.snap.Phase = phase
	n.snap.CurrentURL = ""
	if n.current != nil {
		n.snap.CurrentURL = n.current.String()
	}
	n.snap.Visited = n.history.Entries()
	n.mu.Unlock()

	select {
	case n.changed <- struct{}{}:
	default:
	}
}
