package gemini

import (
	"bufio"
	"io"
	"iter"
	"strings"
	"unicode"
)

// LineKind tags the variant of a gemtext Line.
type LineKind int

const (
	LineText LineKind = iota
	LineLink
	LineHeading
	LineListItem
	LineQuote
	LinePreformatToggle
	LinePreformatted
)

func (k LineKind) String() string {
	switch k {
	case LineText:
		return "text"
	case LineLink:
		return "link"
	case LineHeading:
		return "heading"
	case LineListItem:
		return "item"
	case LineQuote:
		return "quote"
	case LinePreformatToggle:
		return "preformat-toggle"
	case LinePreformatted:
		return "preformatted"
	}
	return "unknown"
}

const (
	linkMarker      = "=>"
	preformatMarker = "```"
	listMarker      = "* "
	quoteMarker     = ">"
	headingMarker   = '#'
	maxHeading      = 3
)

// Line is one parsed gemtext line.
//
// Text holds the content: the label for links, the alt text for preformat
// toggles and the verbatim line for preformatted and plain text. URL is set
// only for links and Level only for headings.
type Line struct {
	Kind  LineKind
	Text  string
	URL   string
	Level int
}

// Parse returns a lazy, single-use sequence of the lines in r. It never
// fails: a read error simply ends the sequence. Lines have no length limit,
// so r should be bounded by the caller.
func Parse(r io.Reader) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		br := bufio.NewReader(r)
		var p parser
		for {
			raw, err := br.ReadString('\n')
			if raw != "" {
				if !yield(p.line(strings.TrimSuffix(raw, "\n"))) {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
}

// ParseString parses a whole document.
func ParseString(s string) []Line {
	var lines []Line
	for l := range Parse(strings.NewReader(s)) {
		lines = append(lines, l)
	}
	return lines
}

type parser struct {
	preformatted bool
}

func (p *parser) line(raw string) Line {
	raw = strings.TrimSuffix(raw, "\r")

	if strings.HasPrefix(raw, preformatMarker) {
		p.preformatted = !p.preformatted
		return Line{Kind: LinePreformatToggle, Text: strings.TrimSpace(raw[len(preformatMarker):])}
	}
	if p.preformatted {
		return Line{Kind: LinePreformatted, Text: raw}
	}

	switch {
	case strings.HasPrefix(raw, linkMarker):
		return parseLink(raw)

	case raw != "" && raw[0] == headingMarker:
		n := len(raw) - len(strings.TrimLeft(raw, "#"))
		return Line{
			Kind:  LineHeading,
			Level: min(n, maxHeading),
			Text:  strings.TrimSpace(raw[n:]),
		}

	case strings.HasPrefix(raw, listMarker):
		return Line{Kind: LineListItem, Text: strings.TrimSpace(raw[len(listMarker):])}

	case strings.HasPrefix(raw, quoteMarker):
		return Line{Kind: LineQuote, Text: strings.TrimSpace(raw[len(quoteMarker):])}
	}

	return Line{Kind: LineText, Text: raw}
}

func parseLink(raw string) Line {
	rest := strings.TrimSpace(raw[len(linkMarker):])
	if rest == "" {
		return Line{Kind: LineText, Text: raw}
	}
	target, label := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		target, label = rest[:i], strings.TrimSpace(rest[i:])
	}
	if label == "" {
		label = target
	}
	return Line{Kind: LineLink, URL: target, Text: label}
}

// String re-serialises the line as gemtext.
func (l Line) String() string {
	switch l.Kind {
	case LineLink:
		if l.Text == "" || l.Text == l.URL {
			return linkMarker + " " + l.URL
		}
		return linkMarker + " " + l.URL + " " + l.Text
	case LineHeading:
		level := min(max(l.Level, 1), maxHeading)
		return strings.Repeat(string(headingMarker), level) + " " + l.Text
	case LineListItem:
		return listMarker + l.Text
	case LineQuote:
		return quoteMarker + " " + l.Text
	case LinePreformatToggle:
		return preformatMarker + l.Text
	}
	return l.Text
}

// Format renders lines back into a gemtext document.
func Format(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Title returns the text of the first heading, if any.
func Title(lines []Line) string {
	for _, l := range lines {
		if l.Kind == LineHeading && l.Text != "" {
			return l.Text
		}
	}
	return ""
}
