package gemini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLineKinds(t *testing.T) {
	got := ParseString("* item\n# Title\n=> gemini://x/ label")
	assert.Equal(t, []Line{
		{Kind: LineListItem, Text: "item"},
		{Kind: LineHeading, Text: "Title", Level: 1},
		{Kind: LineLink, URL: "gemini://x/", Text: "label"},
	}, got)
}

func TestParseLinks(t *testing.T) {
	tests := []struct {
		raw  string
		want Line
	}{
		{"=> gemini://x/", Line{Kind: LineLink, URL: "gemini://x/", Text: "gemini://x/"}},
		{"=>gemini://x/ no space", Line{Kind: LineLink, URL: "gemini://x/", Text: "no space"}},
		{"=>\tdocs/\tTabbed label ", Line{Kind: LineLink, URL: "docs/", Text: "Tabbed label"}},
		{"=>    ", Line{Kind: LineText, Text: "=>    "}},
		{"=>", Line{Kind: LineText, Text: "=>"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, []Line{tt.want}, ParseString(tt.raw))
		})
	}
}

func TestParseHeadings(t *testing.T) {
	got := ParseString("#One\n## Two\n###   Three\n#### Four")
	assert.Equal(t, []Line{
		{Kind: LineHeading, Text: "One", Level: 1},
		{Kind: LineHeading, Text: "Two", Level: 2},
		{Kind: LineHeading, Text: "Three", Level: 3},
		{Kind: LineHeading, Text: "Four", Level: 3},
	}, got)
}

func TestParsePreformatted(t *testing.T) {
	doc := "before\n```ascii art\n=> not a link\n# not a heading\n```\n* after"
	got := ParseString(doc)
	assert.Equal(t, []Line{
		{Kind: LineText, Text: "before"},
		{Kind: LinePreformatToggle, Text: "ascii art"},
		{Kind: LinePreformatted, Text: "=> not a link"},
		{Kind: LinePreformatted, Text: "# not a heading"},
		{Kind: LinePreformatToggle, Text: ""},
		{Kind: LineListItem, Text: "after"},
	}, got)
}

func TestParseUnterminatedPreformat(t *testing.T) {
	got := ParseString("```\n* raw")
	assert.Equal(t, LinePreformatted, got[1].Kind)
	assert.Equal(t, "* raw", got[1].Text)
}

func TestParseQuoteAndText(t *testing.T) {
	got := ParseString(">quoted\n> spaced\n*not an item\n\r\nplain\r")
	assert.Equal(t, []Line{
		{Kind: LineQuote, Text: "quoted"},
		{Kind: LineQuote, Text: "spaced"},
		{Kind: LineText, Text: "*not an item"},
		{Kind: LineText, Text: ""},
		{Kind: LineText, Text: "plain"},
	}, got)
}

func TestParseLongLine(t *testing.T) {
	long := strings.Repeat("x", maxBodySize+1)
	got := ParseString("# Before\n" + long + "\n=> /next Next\n")
	assert.Len(t, got, 3)
	assert.Equal(t, Line{Kind: LineText, Text: long}, got[1])
	assert.Equal(t, Line{Kind: LineLink, URL: "/next", Text: "Next"}, got[2])
}

func TestParseIsLazy(t *testing.T) {
	var n int
	for l := range Parse(strings.NewReader("# a\n# b\n# c\n# d")) {
		n++
		if l.Text == "b" {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestFormatRoundTrip(t *testing.T) {
	doc := "# Title\n" +
		"## Sub\n" +
		"plain text\n" +
		"=> gemini://x/\n" +
		"=> gemini://x/a A label\n" +
		"* item\n" +
		"> quote\n" +
		"```alt\n" +
		"  raw  \n" +
		"```\n"
	lines := ParseString(doc)
	assert.Equal(t, doc, Format(lines))
	assert.Equal(t, lines, ParseString(Format(lines)))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Second", Title(ParseString("text\n#\n## Second\n# Third")))
	assert.Empty(t, Title(ParseString("no headings")))
}
