package browser

import (
	"fmt"
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"github.com/vidyasagar/gsurf/internal/gemini"
	"golang.org/x/text/encoding/htmlindex"
)

// Document is a decoded response body ready for rendering.
type Document struct {
	MIME  string // media type without parameters
	Title string
	Lines []gemini.Line
	Size  int // body size in bytes
}

// Decode turns a success body into lines according to its media type.
// base is the URL the body was served from; relative links in HTML are
// resolved against it.
func Decode(mimeType string, body []byte, base *url.URL) Document {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimetype.Detect(body).String()
		mediaType, params, _ = mime.ParseMediaType(mediaType)
	}
	doc := Document{MIME: mediaType, Size: len(body)}

	if !strings.HasPrefix(mediaType, "text/") {
		doc.Lines = binaryNotice(mediaType, body)
		return doc
	}

	text := toUTF8(body, params["charset"])
	switch mediaType {
	case "text/gemini":
		doc.Lines = gemini.ParseString(text)
	case "text/html":
		doc.Title, doc.Lines = htmlToLines(text, base)
	case "text/markdown":
		doc.Lines = markdownToLines(text)
	default:
		doc.Lines = preformatted(mediaType, text)
	}
	if doc.Title == "" {
		doc.Title = gemini.Title(doc.Lines)
	}
	return doc
}

// toUTF8 decodes body from charset. When no charset is declared and the
// body is not valid UTF-8 the encoding is guessed.
func toUTF8(body []byte, charset string) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" || charset == "us-ascii" {
		if utf8.Valid(body) {
			return string(body)
		}
		if charset == "" {
			charset = detectCharset(body)
		}
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}
	return string(out)
}

func detectCharset(body []byte) string {
	res, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || res == nil {
		return ""
	}
	return res.Charset
}

func preformatted(alt, text string) []gemini.Line {
	lines := []gemini.Line{{Kind: gemini.LinePreformatToggle, Text: alt}}
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		lines = append(lines, gemini.Line{Kind: gemini.LinePreformatted, Text: strings.TrimSuffix(l, "\r")})
	}
	return append(lines, gemini.Line{Kind: gemini.LinePreformatToggle})
}

func binaryNotice(mediaType string, body []byte) []gemini.Line {
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mimetype.Detect(body).String()
	}
	return []gemini.Line{
		{Kind: gemini.LineHeading, Level: 1, Text: "Cannot display this page"},
		{Kind: gemini.LineText, Text: fmt.Sprintf("The server sent %s of %s, which is not text.",
			humanize.Bytes(uint64(len(body))), mediaType)},
	}
}
