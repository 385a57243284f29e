package browser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/vidyasagar/gsurf/internal/gemini"
	"github.com/vidyasagar/gsurf/internal/theme"
)

const (
	plainStyle = "notty"
	autoStyle  = "auto"
)

// Cached glamour renderer to avoid recreation on every render call.
var (
	cachedRenderer      *glamour.TermRenderer
	cachedRendererWidth int
	cachedRendererStyle string
	rendererMu          sync.Mutex
)

// Link is a numbered link on a rendered page.
type Link struct {
	Index int
	Text  string
	URL   string
}

// RenderedPage holds the final terminal-ready output.
type RenderedPage struct {
	Title   string
	Content string // styled terminal text
	Links   []Link
}

// Render styles gemtext lines for a terminal of the given width. Links are
// numbered from 1 in document order.
func Render(title string, lines []gemini.Line, width int) *RenderedPage {
	if width <= 0 {
		width = 80
	}

	// Constrain content width for readability.
	contentWidth := min(width-4, 100)

	r := &lineRenderer{width: contentWidth}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(r.renderLine(l))
	}

	return &RenderedPage{
		Title:   title,
		Content: strings.TrimRight(sb.String(), "\n"),
		Links:   r.links,
	}
}

type lineRenderer struct {
	width int
	links []Link
}

func (r *lineRenderer) renderLine(l gemini.Line) string {
	switch l.Kind {
	case gemini.LineHeading:
		return r.renderHeading(l) + "\n"
	case gemini.LineLink:
		return r.renderLink(l) + "\n"
	case gemini.LineListItem:
		prefix := lipgloss.NewStyle().Foreground(theme.Current.Bullet).Render("  • ")
		text := lipgloss.NewStyle().Foreground(theme.Current.Text).Render(indent(wrapText(l.Text, r.width-4), "    "))
		return prefix + text + "\n"
	case gemini.LineQuote:
		quoteStyle := lipgloss.NewStyle().
			Foreground(theme.Current.Quote).
			Italic(true).
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Current.Quote)
		return quoteStyle.Render(wrapText(l.Text, r.width-2)) + "\n"
	case gemini.LinePreformatToggle:
		if l.Text == "" {
			return ""
		}
		return lipgloss.NewStyle().Foreground(theme.Current.TextDim).Italic(true).Render(l.Text) + "\n"
	case gemini.LinePreformatted:
		// Never wrapped: preformatted text keeps its columns.
		return lipgloss.NewStyle().Foreground(theme.Current.Preformat).Render(l.Text) + "\n"
	}

	if l.Text == "" {
		return "\n"
	}
	return lipgloss.NewStyle().Foreground(theme.Current.Text).Render(wrapText(l.Text, r.width)) + "\n"
}

func (r *lineRenderer) renderHeading(l gemini.Line) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Current.Heading)

	var prefix string
	switch l.Level {
	case 1:
		style = style.Underline(true).MarginTop(1)
	case 2:
		prefix = "## "
	default:
		prefix = "### "
		style = style.Foreground(theme.Current.Subheading)
	}
	return style.Render(prefix + l.Text)
}

func (r *lineRenderer) renderLink(l gemini.Line) string {
	index := len(r.links) + 1
	r.links = append(r.links, Link{
		Index: index,
		Text:  l.Text,
		URL:   l.URL,
	})

	indexStyle := lipgloss.NewStyle().
		Foreground(theme.Current.LinkIndex).
		Bold(true)
	linkStyle := lipgloss.NewStyle().
		Foreground(theme.Current.Link).
		Underline(true)

	label := l.Text
	if label == "" {
		label = l.URL
	}
	out := indexStyle.Render(fmt.Sprintf("[%d] ", index)) + linkStyle.Render(label)
	if !strings.Contains(l.URL, "://") || strings.HasPrefix(l.URL, gemini.Scheme+"://") {
		return out
	}
	// Other protocols leave the client, so say where.
	scheme, _, _ := strings.Cut(l.URL, ":")
	return out + lipgloss.NewStyle().Foreground(theme.Current.ExternalLink).Render(" ("+scheme+")")
}

// RenderMarkdown renders markdown with the terminal's colour scheme, as
// used for help text.
func RenderMarkdown(md string, width int) string {
	out, err := renderWithGlamour(md, width, autoStyle)
	if err != nil {
		return md
	}
	return out
}

// renderWithGlamour uses glamour to render markdown. The renderer is
// cached per width and style.
func renderWithGlamour(markdown string, width int, style string) (string, error) {
	rendererMu.Lock()
	defer rendererMu.Unlock()

	if cachedRenderer == nil || cachedRendererWidth != width || cachedRendererStyle != style {
		opt := glamour.WithAutoStyle()
		if style != autoStyle {
			opt = glamour.WithStandardStyle(style)
		}
		renderer, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width))
		if err != nil {
			return "", err
		}
		cachedRenderer = renderer
		cachedRendererWidth = width
		cachedRendererStyle = style
	}

	return cachedRenderer.Render(markdown)
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}

// wrapText wraps a string at the given width, breaking at word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		lineLen := 0
		for i, word := range words {
			wLen := lipgloss.Width(word)
			if i > 0 && lineLen+1+wLen > width {
				result.WriteString("\n")
				lineLen = 0
			} else if i > 0 {
				result.WriteString(" ")
				lineLen++
			}
			result.WriteString(word)
			lineLen += wLen
		}
		result.WriteString("\n")
	}

	return strings.TrimRight(result.String(), "\n")
}
