package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

// markdownWidth is the wrap width used when markdown is flattened into a
// preformatted block.
const markdownWidth = 80

// htmlToLines extracts the readable part of an HTML page and converts it
// to gemtext lines. Links are emitted as link lines after the block that
// contains them.
func htmlToLines(page string, base *url.URL) (string, []gemini.Line) {
	pageURL := base
	if pageURL == nil {
		pageURL = &url.URL{}
	}

	title, content := "", page
	if article, err := readability.FromReader(strings.NewReader(page), pageURL); err == nil && article.Content != "" {
		title, content = article.Title, article.Content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return title, preformatted("html", page)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	c := &lineConverter{base: base}
	if title != "" {
		c.emit(gemini.Line{Kind: gemini.LineHeading, Level: 1, Text: title})
	}
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		c.convertNode(s)
	})
	c.flushLinks()
	return title, c.lines
}

// lineConverter converts goquery HTML nodes to gemtext lines.
type lineConverter struct {
	base    *url.URL
	lines   []gemini.Line
	pending []gemini.Line
}

func (c *lineConverter) emit(l gemini.Line) {
	c.lines = append(c.lines, l)
}

func (c *lineConverter) flushLinks() {
	c.lines = append(c.lines, c.pending...)
	c.pending = c.pending[:0]
}

func (c *lineConverter) convertNode(s *goquery.Selection) {
	switch tag := goquery.NodeName(s); tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := collapse(s.Text())
		if text == "" {
			return
		}
		c.flushLinks()
		c.emit(gemini.Line{Kind: gemini.LineHeading, Level: min(int(tag[1]-'0'), 3), Text: text})
	case "p", "figcaption", "dd", "dt":
		if text := c.inlineText(s); text != "" {
			c.emit(gemini.Line{Kind: gemini.LineText, Text: text})
		}
		c.flushLinks()
	case "a":
		c.addLink(s)
		c.flushLinks()
	case "ul", "ol":
		c.convertList(s, tag == "ol")
		c.flushLinks()
	case "blockquote":
		if text := c.inlineText(s); text != "" {
			c.emit(gemini.Line{Kind: gemini.LineQuote, Text: text})
		}
		c.flushLinks()
	case "pre":
		c.convertCodeBlock(s)
	case "table":
		c.convertTable(s)
	case "img":
		c.addImage(s)
		c.flushLinks()
	case "hr":
		c.emit(gemini.Line{Kind: gemini.LineText})
	case "br", "script", "style", "noscript":
	case "div", "article", "section", "main", "header", "footer", "figure", "span", "nav", "aside", "dl":
		s.Children().Each(func(_ int, child *goquery.Selection) {
			c.convertNode(child)
		})
	default:
		if text := collapse(s.Text()); text != "" {
			c.emit(gemini.Line{Kind: gemini.LineText, Text: text})
		}
	}
}

// inlineText flattens s to one line of text, queueing any links it
// contains.
func (c *lineConverter) inlineText(s *goquery.Selection) string {
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		c.addLink(a)
	})
	s.Find("img").Each(func(_ int, img *goquery.Selection) {
		c.addImage(img)
	})
	return collapse(s.Text())
}

func (c *lineConverter) addLink(s *goquery.Selection) {
	href, ok := s.Attr("href")
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return
	}
	label := collapse(s.Text())
	target := c.resolve(href)
	if label == "" {
		label = target
	}
	c.pending = append(c.pending, gemini.Line{Kind: gemini.LineLink, URL: target, Text: label})
}

func (c *lineConverter) addImage(s *goquery.Selection) {
	src, ok := s.Attr("src")
	if !ok || src == "" {
		return
	}
	alt, _ := s.Attr("alt")
	if alt = collapse(alt); alt == "" {
		alt = "image"
	}
	c.pending = append(c.pending, gemini.Line{Kind: gemini.LineLink, URL: c.resolve(src), Text: "[image] " + alt})
}

func (c *lineConverter) resolve(href string) string {
	if c.base == nil {
		return href
	}
	u, err := c.base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

func (c *lineConverter) convertList(s *goquery.Selection, ordered bool) {
	n := 0
	s.Find("li").Each(func(_ int, li *goquery.Selection) {
		// Only direct text of the item; nested lists produce their own items.
		item := li.Clone()
		item.Find("ul, ol").Remove()
		text := c.inlineText(item)
		if text == "" {
			return
		}
		n++
		if ordered {
			text = fmt.Sprintf("%d. %s", n, text)
		}
		c.emit(gemini.Line{Kind: gemini.LineListItem, Text: text})
	})
}

func (c *lineConverter) convertCodeBlock(s *goquery.Selection) {
	code := s.Find("code")
	lang := ""
	if code.Length() > 0 {
		class, _ := code.Attr("class")
		if _, after, ok := strings.Cut(class, "language-"); ok {
			if f := strings.Fields(after); len(f) > 0 {
				lang = f[0]
			}
		}
	}
	text := s.Text()
	if code.Length() > 0 {
		text = code.Text()
	}
	c.flushLinks()
	c.lines = append(c.lines, preformatted(lang, text)...)
}

func (c *lineConverter) convertTable(s *goquery.Selection) {
	var rows []string
	s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, collapse(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	if len(rows) == 0 {
		return
	}
	c.flushLinks()
	c.lines = append(c.lines, preformatted("table", strings.Join(rows, "\n"))...)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// markdownToLines renders markdown as plain wrapped text and keeps it as a
// preformatted block so the layout survives.
func markdownToLines(md string) []gemini.Line {
	out, err := renderWithGlamour(md, markdownWidth, plainStyle)
	if err != nil {
		return preformatted("markdown", md)
	}
	return preformatted("markdown", strings.Trim(out, "\n"))
}
