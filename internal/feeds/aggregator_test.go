package feeds

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

type fakeFetcher struct {
	mu       sync.Mutex
	routes   map[string]gemini.Outcome
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, u *url.URL) (gemini.Outcome, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	out, ok := f.routes[u.String()]
	f.mu.Unlock()
	if !ok {
		return gemini.Outcome{Kind: gemini.OutcomeFailure, URL: u,
			Failure: gemini.NewFailure(gemini.KindServerError, "", nil)}, nil
	}
	out.URL = u
	return out, nil
}

func gemlog(body string) gemini.Outcome {
	return gemini.Outcome{Kind: gemini.OutcomeSuccess, MIME: gemini.DefaultMIME, Body: []byte(body)}
}

func redirectTo(t *testing.T, raw string) gemini.Outcome {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return gemini.Outcome{Kind: gemini.OutcomeRedirect, Target: u}
}

const atomBody = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Bravo Atom</title>
  <link href="gemini://b.example/"/>
  <entry>
    <title>Spring notes</title>
    <link href="posts/spring.gmi" rel="alternate"/>
    <updated>2024-03-05T10:00:00Z</updated>
    <summary>&lt;p&gt;Some &lt;b&gt;notes&lt;/b&gt;&lt;/p&gt;</summary>
  </entry>
</feed>`

func TestCollectMergesNewestFirst(t *testing.T) {
	f := &fakeFetcher{routes: map[string]gemini.Outcome{
		"gemini://a.example/gemlog/": gemlog("# Alpha log\n\n" +
			"=> 2024-03-01-first.gmi 2024-03-01 - First post\n" +
			"=> about.gmi About me\n" +
			"=> /gemlog/2024-03-07.gmi 2024-03-07: Latest\n"),
		"gemini://b.example/atom.xml": {
			Kind: gemini.OutcomeSuccess, MIME: "application/atom+xml", Body: []byte(atomBody),
		},
	}}
	agg := NewAggregator(f)
	agg.now = func() time.Time { return time.Date(2024, 3, 8, 9, 30, 0, 0, time.UTC) }

	d, err := agg.Collect(context.Background(), []string{
		"gemini://a.example/gemlog/",
		"gemini://b.example/atom.xml",
	})
	require.NoError(t, err)
	assert.Empty(t, d.Errors)

	require.Len(t, d.Entries, 3)
	assert.Equal(t, "Latest", d.Entries[0].Title)
	assert.Equal(t, "gemini://a.example/gemlog/2024-03-07.gmi", d.Entries[0].Link)
	assert.Equal(t, "Alpha log", d.Entries[0].Source)
	assert.Equal(t, "Spring notes", d.Entries[1].Title)
	assert.Equal(t, "gemini://b.example/posts/spring.gmi", d.Entries[1].Link)
	assert.Equal(t, "Some notes", d.Entries[1].Summary)
	assert.Equal(t, "First post", d.Entries[2].Title)

	page := Gemtext(d)
	assert.Contains(t, page, "Checked 2024-03-08 09:30\n")
	assert.Contains(t, page, "## 2024-03-07\n=> gemini://a.example/gemlog/2024-03-07.gmi Latest (Alpha log)\n")
	assert.NotContains(t, page, "Unreachable")
}

func TestCollectReportsFailuresPerFeed(t *testing.T) {
	f := &fakeFetcher{routes: map[string]gemini.Outcome{
		"gemini://a.example/": gemlog("=> x.gmi 2024-01-01 Only\n"),
		"gemini://c.example/": {Kind: gemini.OutcomeSuccess, MIME: "image/png", Body: []byte{0x89}},
	}}

	d, err := NewAggregator(f).Collect(context.Background(), []string{
		"gemini://a.example/",
		"gemini://down.example/",
		"gemini://c.example/",
		"",
	})
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, "a.example", d.Entries[0].Source, "untitled gemlog falls back to the host")

	require.Len(t, d.Errors, 3)
	assert.Equal(t, "gemini://down.example/", d.Errors[0].URL)
	assert.Equal(t, gemini.KindServerError, gemini.KindOf(d.Errors[0].Err))
	assert.Contains(t, d.Errors[1].Err.Error(), "unsupported feed type image/png")
	assert.ErrorIs(t, d.Errors[2].Err, gemini.ErrInvalidURI)

	assert.Contains(t, Gemtext(d), "## Unreachable\n* gemini://down.example/: ")
}

func TestCollectFollowsRedirects(t *testing.T) {
	f := &fakeFetcher{routes: map[string]gemini.Outcome{
		"gemini://a.example/old": redirectTo(t, "gemini://a.example/new"),
		"gemini://a.example/new": gemlog("=> p.gmi 2024-02-02 Moved\n"),
		"gemini://loop.example/": redirectTo(t, "gemini://loop.example/"),
		"gemini://web.example/":  redirectTo(t, "https://web.example/"),
	}}

	d, err := NewAggregator(f).Collect(context.Background(), []string{
		"gemini://a.example/old",
		"gemini://loop.example/",
		"gemini://web.example/",
	})
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, "gemini://a.example/p.gmi", d.Entries[0].Link)

	require.Len(t, d.Errors, 2)
	assert.Equal(t, gemini.KindTooManyRedirects, gemini.KindOf(d.Errors[0].Err))
	assert.Contains(t, d.Errors[1].Err.Error(), "redirected to https://web.example/")
}

func TestCollectRespectsLimit(t *testing.T) {
	f := &fakeFetcher{routes: map[string]gemini.Outcome{}}
	var feeds []string
	for _, h := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		raw := "gemini://" + h + ".example/"
		f.routes["gemini://"+h+".example/"] = gemlog("=> x 2024-01-01 post\n")
		feeds = append(feeds, raw)
	}

	d, err := NewAggregator(f, WithLimit(2)).Collect(context.Background(), feeds)
	require.NoError(t, err)
	assert.Len(t, d.Entries, 10)
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAggregator(&fakeFetcher{}).Collect(ctx, []string{"gemini://a.example/"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGemtextEmpty(t *testing.T) {
	assert.Equal(t, "# Feeds\n\nNo subscriptions yet. Use :subscribe <url> on a gemlog.\n", Gemtext(Digest{}))
}

func TestParseRSS(t *testing.T) {
	feed, err := parseXMLFeed([]byte(`<rss version="2.0"><channel><title>Charlie</title>
<item><title> Post </title><link>gemini://c.example/p.gmi</link><pubDate>Tue, 05 Mar 2024 10:00:00 GMT</pubDate></item>
</channel></rss>`))
	require.NoError(t, err)
	assert.Equal(t, "Charlie", feed.Title)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Post", feed.Items[0].Title)
	assert.Equal(t, 2024, feed.Items[0].Published.Year())

	_, err = parseXMLFeed([]byte("not xml"))
	assert.Error(t, err)
}
