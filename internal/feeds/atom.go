package feeds

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// RSS 2.0 types
type rssRoot struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Author      string `xml:"author"`
	Creator     string `xml:"creator"` // dc:creator
}

func parseRSS(data []byte) (*Feed, error) {
	var root rssRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	if root.Channel.Title == "" && len(root.Channel.Items) == 0 {
		return nil, fmt.Errorf("empty RSS feed")
	}

	feed := &Feed{
		Title:       root.Channel.Title,
		Description: root.Channel.Description,
		Link:        root.Channel.Link,
	}

	for _, item := range root.Channel.Items {
		author := item.Author
		if author == "" {
			author = item.Creator
		}

		fi := Item{
			Title:   strings.TrimSpace(item.Title),
			Link:    strings.TrimSpace(item.Link),
			Summary: stripHTML(item.Description),
			Author:  author,
		}
		if item.PubDate != "" {
			if t, err := parseTime(item.PubDate); err == nil {
				fi.Published = t
			}
		}
		feed.Items = append(feed.Items, fi)
	}

	return feed, nil
}

// Atom types
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Link    []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Link      []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// alternate picks the rel="alternate" (or unlabelled) link.
func alternate(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	return ""
}

func parseAtom(data []byte) (*Feed, error) {
	var af atomFeed
	if err := xml.Unmarshal(data, &af); err != nil {
		return nil, err
	}

	if af.Title == "" && len(af.Entries) == 0 {
		return nil, fmt.Errorf("empty Atom feed")
	}

	feed := &Feed{Title: af.Title, Link: alternate(af.Link)}

	for _, entry := range af.Entries {
		desc := entry.Summary
		if desc == "" {
			desc = entry.Content
		}

		fi := Item{
			Title:   strings.TrimSpace(entry.Title),
			Link:    alternate(entry.Link),
			Summary: stripHTML(desc),
			Author:  entry.Author.Name,
		}

		dateStr := entry.Published
		if dateStr == "" {
			dateStr = entry.Updated
		}
		if dateStr != "" {
			if t, err := parseTime(dateStr); err == nil {
				fi.Published = t
			}
		}
		feed.Items = append(feed.Items, fi)
	}

	return feed, nil
}

// parseXMLFeed tries RSS first, then Atom.
func parseXMLFeed(data []byte) (*Feed, error) {
	feed, err := parseRSS(data)
	if err == nil {
		return feed, nil
	}
	feed, err = parseAtom(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse feed as RSS or Atom")
	}
	return feed, nil
}

// stripHTML reduces an HTML fragment to its text.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// parseTime tries multiple date formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 02 Jan 2006 15:04:05 GMT",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	s = strings.TrimSpace(s)
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("could not parse time: %s", s)
}
