// Package feeds follows gemlog subscriptions: gemtext index pages with
// dated links, and Atom or RSS feeds served over gemini.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vidyasagar/gsurf/internal/gemini"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLimit = 4
	maxRedirects = 5
	maxEntries   = 200
)

// Feed is one parsed subscription.
type Feed struct {
	Title       string
	Description string
	Link        string
	Items       []Item
}

// Item is a single post in a feed.
type Item struct {
	Title     string
	Link      string
	Summary   string
	Author    string
	Published time.Time
}

// Entry is an item tagged with the feed it came from.
type Entry struct {
	Item
	Source  string
	FeedURL string
}

// FeedError records a subscription that could not be read.
type FeedError struct {
	URL string
	Err error
}

// Digest is the merged view of every subscription.
type Digest struct {
	Entries []Entry
	Errors  []FeedError
	Checked time.Time
}

// Fetcher runs a single gemini request. *gemini.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (gemini.Outcome, error)
}

// Aggregator fetches subscriptions concurrently.
type Aggregator struct {
	fetcher Fetcher
	limit   int
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLimit caps the number of feeds fetched at once.
func WithLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

// WithLogger sets the aggregator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator that fetches through f.
func NewAggregator(f Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{fetcher: f, limit: defaultLimit, logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Collect fetches every feed and merges their entries, newest first. A
// feed that fails is listed in Digest.Errors; only cancellation of ctx is
// returned as an error.
func (a *Aggregator) Collect(ctx context.Context, feedURLs []string) (Digest, error) {
	feeds := make([]*Feed, len(feedURLs))
	errs := make([]error, len(feedURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i, raw := range feedURLs {
		g.Go(func() error {
			feeds[i], errs[i] = a.fetch(gctx, raw)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-feed errors are collected in errs
	if err := ctx.Err(); err != nil {
		return Digest{}, err
	}

	d := Digest{Checked: a.now()}
	for i, raw := range feedURLs {
		if errs[i] != nil {
			a.logger.Warn("feed unavailable", zap.String("url", raw), zap.Error(errs[i]))
			d.Errors = append(d.Errors, FeedError{URL: raw, Err: errs[i]})
			continue
		}
		for _, item := range feeds[i].Items {
			d.Entries = append(d.Entries, Entry{Item: item, Source: feeds[i].Title, FeedURL: raw})
		}
	}

	sort.SliceStable(d.Entries, func(i, j int) bool {
		return d.Entries[i].Published.After(d.Entries[j].Published)
	})
	if len(d.Entries) > maxEntries {
		d.Entries = d.Entries[:maxEntries]
	}
	return d, nil
}

// fetch retrieves one feed, following redirects.
func (a *Aggregator) fetch(ctx context.Context, raw string) (*Feed, error) {
	u, err := gemini.Resolve(raw, nil)
	if err != nil {
		return nil, err
	}

	for hop := 0; hop <= maxRedirects; hop++ {
		out, err := a.fetcher.Fetch(ctx, u)
		if err != nil {
			return nil, err
		}
		switch out.Kind {
		case gemini.OutcomeSuccess:
			return parseFeed(out.MIME, out.Body, u)
		case gemini.OutcomeRedirect:
			if out.Target.Scheme != gemini.Scheme {
				return nil, fmt.Errorf("redirected to %s", out.Target)
			}
			u = out.Target
		case gemini.OutcomeInput:
			return nil, errors.New("server asked for input")
		default:
			return nil, out.Err()
		}
	}
	return nil, gemini.NewFailure(gemini.KindTooManyRedirects, "", nil)
}

// Gemtext renders the digest as the about:feeds page.
func Gemtext(d Digest) string {
	var sb strings.Builder
	sb.WriteString("# Feeds\n\n")
	if len(d.Entries) == 0 && len(d.Errors) == 0 {
		sb.WriteString("No subscriptions yet. Use :subscribe <url> on a gemlog.\n")
		return sb.String()
	}
	if !d.Checked.IsZero() {
		fmt.Fprintf(&sb, "Checked %s\n", d.Checked.Format("2006-01-02 15:04"))
	}

	day := ""
	for _, e := range d.Entries {
		heading := "Undated"
		if !e.Published.IsZero() {
			heading = e.Published.Format("2006-01-02")
		}
		if heading != day {
			day = heading
			fmt.Fprintf(&sb, "\n## %s\n", heading)
		}
		label := e.Title
		if e.Source != "" {
			label += " (" + e.Source + ")"
		}
		fmt.Fprintf(&sb, "=> %s %s\n", e.Link, label)
	}

	if len(d.Errors) > 0 {
		sb.WriteString("\n## Unreachable\n")
		for _, fe := range d.Errors {
			fmt.Fprintf(&sb, "* %s: %v\n", fe.URL, fe.Err)
		}
	}
	return sb.String()
}
