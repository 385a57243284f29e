package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/vidyasagar/gsurf/internal/gemini"
)

// AboutScheme addresses pages generated inside the client.
const AboutScheme = "about"

// ErrNoSuchPage is returned for unknown about: pages.
var ErrNoSuchPage = errors.New("no such page")

// AboutHandler produces the gemtext of an about: page.
type AboutHandler interface {
	About(ctx context.Context, page string) (string, error)
}

// AboutPages is an AboutHandler backed by one generator per page name.
type AboutPages map[string]func(ctx context.Context) (string, error)

// About implements AboutHandler. The "blank" page always exists.
func (p AboutPages) About(ctx context.Context, page string) (string, error) {
	if gen, ok := p[page]; ok {
		return gen(ctx)
	}
	switch page {
	case "blank":
		return "", nil
	case "", "about":
		return p.index(), nil
	}
	return "", fmt.Errorf("about:%s: %w", page, ErrNoSuchPage)
}

func (p AboutPages) index() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("# Built-in pages\n\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "=> about:%s about:%s\n", name, name)
	}
	return sb.String()
}

// openAbout serves an about: URL through the regular session contract.
func openAbout(ctx context.Context, h AboutHandler, u *url.URL) *gemini.Session {
	return gemini.Start(ctx, func(ctx context.Context, receiving func() bool) gemini.Outcome {
		page := strings.ToLower(u.Opaque)
		if h == nil {
			h = AboutPages{}
		}
		body, err := h.About(ctx, page)
		if err != nil {
			if errors.Is(err, ErrNoSuchPage) {
				return gemini.Outcome{Kind: gemini.OutcomeFailure, URL: u, Failure: &gemini.Failure{
					Kind:   gemini.KindServerError,
					Short:  gemini.StatusText(gemini.StatusNotFound),
					Detail: fmt.Sprintf("There is no built-in page called %q.", "about:"+page),
					Code:   gemini.StatusNotFound,
					Err:    err,
				}}
			}
			return gemini.Outcome{Kind: gemini.OutcomeFailure, URL: u, Failure: gemini.NewFailure(
				gemini.KindTransferInterrupted, fmt.Sprintf("Generating about:%s failed: %v", page, err), err)}
		}
		if !receiving() {
			return gemini.Outcome{}
		}
		return gemini.Outcome{Kind: gemini.OutcomeSuccess, URL: u, MIME: gemini.DefaultMIME, Body: []byte(body)}
	})
}
