package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/vidyasagar/gsurf/internal/browser"
	"github.com/vidyasagar/gsurf/internal/feeds"
	"github.com/vidyasagar/gsurf/internal/storage"
)

// historyPageSize bounds about:history.
const historyPageSize = 200

// capsulePages generates the about: pages backed by local storage. Pages are
// generated on navigator goroutines, so subscriptions are guarded.
type capsulePages struct {
	keys      KeyMap
	history   *storage.HistoryStore
	bookmarks *storage.BookmarkStore
	pins      *storage.PinStore
	feeds     *feeds.Aggregator

	mu   sync.Mutex
	subs []string
}

func (c *capsulePages) setSubscriptions(urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append([]string(nil), urls...)
}

func (c *capsulePages) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subs...)
}

// pages returns the handler for every page whose store is available.
func (c *capsulePages) pages() browser.AboutPages {
	p := browser.AboutPages{
		"help": func(context.Context) (string, error) {
			return helpGemtext(c.keys), nil
		},
	}
	if c.history != nil {
		p["history"] = func(context.Context) (string, error) {
			entries, err := c.history.List(historyPageSize)
			if err != nil {
				return "", err
			}
			return storage.HistoryGemtext(entries), nil
		}
	}
	if c.bookmarks != nil {
		p["bookmarks"] = func(context.Context) (string, error) {
			return storage.BookmarksGemtext(c.bookmarks.List()), nil
		}
	}
	if c.pins != nil {
		p["known-hosts"] = func(context.Context) (string, error) {
			pins, err := c.pins.List()
			if err != nil {
				return "", err
			}
			return storage.PinsGemtext(pins), nil
		}
	}
	if c.feeds != nil {
		p["feeds"] = func(ctx context.Context) (string, error) {
			digest, err := c.feeds.Collect(ctx, c.subscriptions())
			if err != nil {
				return "", fmt.Errorf("collecting feeds: %w", err)
			}
			return feeds.Gemtext(digest), nil
		}
	}
	return p
}
