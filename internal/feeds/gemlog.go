package feeds

import (
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/vidyasagar/gsurf/internal/browser"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

// datedLink matches a gemlog entry label such as "2024-03-01 - Title".
var datedLink = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*[-–—:]?\s*(.*)$`)

// parseFeed decodes a fetched feed body by media type.
func parseFeed(mimeType string, body []byte, base *url.URL) (*Feed, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return nil, fmt.Errorf("parsing media type %q: %w", mimeType, err)
	}

	var feed *Feed
	switch mediaType {
	case "text/gemini":
		feed = parseGemlog(browser.Decode(mimeType, body, base))
	case "application/atom+xml", "application/rss+xml", "application/xml", "text/xml":
		if feed, err = parseXMLFeed(body); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported feed type %s", mediaType)
	}

	for i := range feed.Items {
		feed.Items[i].Link = resolve(base, feed.Items[i].Link)
	}
	if feed.Title == "" && base != nil {
		feed.Title = base.Host
	}
	return feed, nil
}

// parseGemlog extracts dated links from a gemtext index page.
func parseGemlog(doc browser.Document) *Feed {
	feed := &Feed{Title: doc.Title}
	for _, l := range doc.Lines {
		if l.Kind != gemini.LineLink {
			continue
		}
		m := datedLink.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		published, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		title := strings.TrimSpace(m[2])
		if title == "" {
			title = l.URL
		}
		feed.Items = append(feed.Items, Item{Title: title, Link: l.URL, Published: published})
	}
	return feed
}

func resolve(base *url.URL, href string) string {
	if base == nil || href == "" {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}
