package gemini

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vidyasagar/gsurf/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 15 * time.Second
	maxBodySize           = 16 * 1024 * 1024 // 16 MB
)

// Client opens transfer sessions. It is safe for concurrent use; the pin
// store is shared by every session it opens.
type Client struct {
	connectTimeout time.Duration
	readTimeout    time.Duration
	maxBodySize    int64
	pins           PinStore
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithTimeouts sets the connect (dial + handshake) and read timeouts.
// Non-positive values keep the defaults.
func WithTimeouts(connect, read time.Duration) Option {
	return func(c *Client) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if read > 0 {
			c.readTimeout = read
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records session counts, outcomes and pin decisions in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithMaxBodySize caps how many body bytes a success response may carry.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// NewClient creates a client that pins certificates in pins.
func NewClient(pins PinStore, opts ...Option) *Client {
	if pins == nil {
		pins = NewMemoryPinStore()
	}
	c := &Client{
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		maxBodySize:    maxBodySize,
		pins:           pins,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EventKind identifies a session event.
type EventKind int

const (
	EventConnecting EventKind = iota
	EventReceiving
	EventResolved
)

func (k EventKind) String() string {
	switch k {
	case EventConnecting:
		return "connecting"
	case EventReceiving:
		return "receiving"
	case EventResolved:
		return "resolved"
	}
	return "unknown"
}

// Event is emitted by a Session. Outcome is set only for EventResolved.
type Event struct {
	Kind    EventKind
	Outcome Outcome
}

// Session is one in-flight request. Its event stream ends with exactly one
// EventResolved unless the session is cancelled first, in which case the
// stream is closed without further events.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu        sync.Mutex
	cancelled bool
}

// Events returns the session's event stream. It is closed when the
// session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Cancel aborts the session. Events not yet received are discarded and no
// further events are delivered.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
drain:
	for {
		select {
		case _, ok := <-s.events:
			if !ok {
				break drain
			}
		default:
			break drain
		}
	}
	s.mu.Unlock()
	s.cancel()
}

// emit delivers ev unless the session was cancelled. The channel is
// buffered for every event a session can produce, so this never blocks.
func (s *Session) emit(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.ctx.Err() != nil {
		return false
	}
	s.events <- ev
	return true
}

// Open starts a transfer for u and returns immediately.
func (c *Client) Open(ctx context.Context, u *url.URL) *Session {
	return Start(ctx, func(ctx context.Context, receiving func() bool) Outcome {
		defer c.metrics.SessionStarted()()
		start := time.Now()
		out := c.transfer(ctx, u, receiving)
		if ctx.Err() == nil {
			c.metrics.ObserveTransfer(out.Kind.String(), time.Since(start))
			c.logger.Debug("transfer resolved",
				zap.String("url", u.Redacted()),
				zap.Stringer("outcome", out.Kind),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
		return out
	})
}

// Start runs fn as a session: Connecting is emitted first and fn's
// outcome becomes the Resolved event. fn must call receiving before it
// reads a body; receiving returns false once the session is cancelled.
// Sources other than the network (built-in pages) use this to honour the
// same event contract.
func Start(ctx context.Context, fn func(ctx context.Context, receiving func() bool) Outcome) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, 3),
	}
	go func() {
		defer cancel()
		defer close(s.events)

		if !s.emit(Event{Kind: EventConnecting}) {
			return
		}
		out := fn(ctx, func() bool {
			return s.emit(Event{Kind: EventReceiving})
		})
		if ctx.Err() != nil {
			return
		}
		s.emit(Event{Kind: EventResolved, Outcome: out})
	}()
	return s
}

// Fetch runs a session to completion and returns its outcome. The error is
// non-nil only when ctx ends before the session resolves.
func (c *Client) Fetch(ctx context.Context, u *url.URL) (Outcome, error) {
	s := c.Open(ctx, u)
	for ev := range s.Events() {
		if ev.Kind == EventResolved {
			return ev.Outcome, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return Outcome{}, context.Canceled
}

func (c *Client) transfer(ctx context.Context, u *url.URL, receiving func() bool) Outcome {
	if u.Scheme != Scheme {
		return failed(u, NewFailure(KindUnsupportedScheme,
			fmt.Sprintf("%q addresses cannot be fetched over Gemini.", u.Scheme), nil))
	}
	req := u.String()
	if len(req) > MaxRequestLen {
		return failed(u, NewFailure(KindInvalidURI,
			fmt.Sprintf("The address is %d bytes long; the limit is %d.", len(req), MaxRequestLen), ErrInvalidURI))
	}

	addr := HostPort(u)
	connectCtx, cancelConnect := context.WithTimeout(ctx, c.connectTimeout)
	defer cancelConnect()

	dialer := &net.Dialer{Timeout: c.connectTimeout}
	raw, err := dialer.DialContext(connectCtx, "tcp", addr)
	if err != nil {
		return failed(u, connectFailure(addr, c.connectTimeout, err))
	}
	defer raw.Close()
	// Cancellation must unblock any pending read or write.
	stop := context.AfterFunc(ctx, func() { raw.Close() })
	defer stop()

	conn := tls.Client(raw, &tls.Config{
		ServerName:         u.Hostname(),
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true, //nolint:gosec // trust is decided by pinning below
	})
	if err := conn.HandshakeContext(connectCtx); err != nil {
		f := connectFailure(addr, c.connectTimeout, err)
		f.Detail = fmt.Sprintf("TLS handshake with %s failed: %v", addr, err)
		return failed(u, f)
	}

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return failed(u, NewFailure(KindConnectFailed, "The server presented no certificate.", nil))
	}
	leaf := certs[0]
	fp := Fingerprint(leaf)
	trust, pinned, err := c.pins.Check(PinKey(u), fp, leaf.NotAfter)
	if err != nil {
		return failed(u, NewFailure(KindConnectFailed, "Could not check the server certificate.", err))
	}
	c.logger.Debug("certificate checked",
		zap.String("host", PinKey(u)),
		zap.Stringer("trust", trust),
		zap.String("fingerprint", fp),
	)
	c.metrics.ObservePin(trust.String())
	if trust == TrustMismatch {
		c.logger.Warn("certificate mismatch", zap.String("host", PinKey(u)), zap.String("pinned", pinned))
		return certificateIssue(u, fp, pinned)
	}

	if c.readTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.readTimeout))
	}
	if _, err := io.WriteString(conn, req+"\r\n"); err != nil {
		return failed(u, NewFailure(KindTransferInterrupted, fmt.Sprintf("Sending the request failed: %v", err), err))
	}

	br := bufio.NewReader(&deadlineReader{conn: conn, timeout: c.readTimeout})
	h, err := readHeader(br)
	if err != nil {
		return failed(u, headerFailure(err))
	}
	if h.Code/10 != 2 {
		return classify(u, h)
	}

	if !receiving() {
		return Outcome{}
	}
	body, err := io.ReadAll(io.LimitReader(br, c.maxBodySize+1))
	if err != nil {
		return failed(u, NewFailure(KindTransferInterrupted,
			fmt.Sprintf("The connection broke while receiving the page: %v", err), err))
	}
	if int64(len(body)) > c.maxBodySize {
		return failed(u, NewFailure(KindTransferInterrupted,
			fmt.Sprintf("The page is larger than %d MB.", c.maxBodySize>>20), nil))
	}

	mime := strings.TrimSpace(h.Meta)
	if mime == "" {
		mime = DefaultMIME
	}
	return Outcome{Kind: OutcomeSuccess, URL: u, MIME: mime, Body: body}
}

// PinKey is the pin store key for u: the host name, plus the port when it
// is not the default one.
func PinKey(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != DefaultPort {
		return net.JoinHostPort(host, port)
	}
	return host
}

func connectFailure(addr string, timeout time.Duration, err error) *Failure {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		return NewFailure(KindConnectFailed, fmt.Sprintf("Could not resolve %s.", dnsErr.Name), err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return NewFailure(KindConnectFailed, fmt.Sprintf("Connecting to %s timed out after %s.", addr, timeout), err)
	}
	return NewFailure(KindConnectFailed, fmt.Sprintf("Could not connect to %s: %v", addr, err), err)
}

func headerFailure(err error) *Failure {
	switch {
	case errors.Is(err, errHeaderTooLong):
		return NewFailure(KindMalformedResponse, "The status line is longer than 1024 bytes.", err)
	case errors.Is(err, errBadHeader):
		return NewFailure(KindMalformedResponse, fmt.Sprintf("The server sent an invalid status line: %v", err), err)
	case errors.Is(err, io.EOF):
		return NewFailure(KindMalformedResponse, "The server closed the connection without a response.", err)
	}
	return NewFailure(KindTransferInterrupted, fmt.Sprintf("Waiting for the response failed: %v", err), err)
}

// deadlineReader pushes the read deadline forward before every read, so
// the timeout bounds the gap between chunks rather than the whole body.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}
