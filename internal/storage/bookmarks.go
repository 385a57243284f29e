package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Bookmark represents a saved capsule page.
type Bookmark struct {
	ID        int64
	URL       string
	Title     string
	Tags      []string
	CreatedAt time.Time
}

// BookmarkStore manages bookmarks persisted in SQLite.
type BookmarkStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewBookmarkStore creates a bookmark store using the given database.
func NewBookmarkStore(db *DB) *BookmarkStore {
	return &BookmarkStore{db: db.Conn(), now: time.Now}
}

// Add adds a bookmark. Returns false if already bookmarked.
func (bs *BookmarkStore) Add(url, title string, tags ...string) bool {
	res, err := bs.db.Exec(
		`INSERT OR IGNORE INTO bookmarks (url, title, tags, created_at) VALUES (?, ?, ?, ?)`,
		url, title, strings.Join(tags, ","), toMillis(bs.now()),
	)
	if err != nil {
		return false
	}
	// INSERT OR IGNORE affects no rows for a duplicate.
	n, _ := res.RowsAffected()
	return n > 0
}

// Toggle bookmarks url, or removes it when already bookmarked. It reports
// whether url is bookmarked afterwards.
func (bs *BookmarkStore) Toggle(url, title string) bool {
	if bs.Remove(url) {
		return false
	}
	return bs.Add(url, title)
}

// SetTags replaces the tags of a bookmark. Returns false if url is not
// bookmarked.
func (bs *BookmarkStore) SetTags(url string, tags ...string) bool {
	res, err := bs.db.Exec(`UPDATE bookmarks SET tags = ? WHERE url = ?`, strings.Join(tags, ","), url)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// Remove removes a bookmark by URL. Returns false if not found.
func (bs *BookmarkStore) Remove(url string) bool {
	res, err := bs.db.Exec(`DELETE FROM bookmarks WHERE url = ?`, url)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// Has reports whether a URL is bookmarked.
func (bs *BookmarkStore) Has(url string) bool {
	var count int
	err := bs.db.QueryRow(`SELECT COUNT(*) FROM bookmarks WHERE url = ?`, url).Scan(&count)
	return err == nil && count > 0
}

// List returns all bookmarks, newest first.
func (bs *BookmarkStore) List() []Bookmark {
	rows, err := bs.db.Query(
		`SELECT id, url, title, tags, created_at FROM bookmarks ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()
	return scanBookmarks(rows)
}

// Search finds bookmarks whose title, URL or tags contain query.
func (bs *BookmarkStore) Search(query string) []Bookmark {
	like := "%" + query + "%"
	rows, err := bs.db.Query(
		`SELECT id, url, title, tags, created_at FROM bookmarks
		 WHERE title LIKE ? OR url LIKE ? OR tags LIKE ?
		 ORDER BY created_at DESC, id DESC`,
		like, like, like,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()
	return scanBookmarks(rows)
}

// Count returns the number of bookmarks.
func (bs *BookmarkStore) Count() int {
	var count int
	bs.db.QueryRow(`SELECT COUNT(*) FROM bookmarks`).Scan(&count)
	return count
}

func scanBookmarks(rows *sql.Rows) []Bookmark {
	var bookmarks []Bookmark
	for rows.Next() {
		var b Bookmark
		var tags string
		var created int64
		if err := rows.Scan(&b.ID, &b.URL, &b.Title, &tags, &created); err != nil {
			continue
		}
		if tags != "" {
			b.Tags = strings.Split(tags, ",")
		}
		b.CreatedAt = fromMillis(created)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks
}

// BookmarksGemtext formats bookmarks as the about:bookmarks page. Tagged
// bookmarks are grouped under one heading per tag.
func BookmarksGemtext(bookmarks []Bookmark) string {
	var sb strings.Builder
	sb.WriteString("# Bookmarks\n\n")
	if len(bookmarks) == 0 {
		sb.WriteString("No bookmarks yet. Press B on a page to save it.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "%d saved\n", len(bookmarks))

	byTag := make(map[string][]Bookmark)
	var untagged []Bookmark
	for _, b := range bookmarks {
		if len(b.Tags) == 0 {
			untagged = append(untagged, b)
		}
		for _, tag := range b.Tags {
			byTag[tag] = append(byTag[tag], b)
		}
	}
	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		fmt.Fprintf(&sb, "\n## %s\n\n", tag)
		writeBookmarks(&sb, byTag[tag])
	}
	if len(untagged) > 0 {
		if len(tags) > 0 {
			sb.WriteString("\n## Untagged\n")
		}
		sb.WriteString("\n")
		writeBookmarks(&sb, untagged)
	}
	return sb.String()
}

func writeBookmarks(sb *strings.Builder, bookmarks []Bookmark) {
	for _, b := range bookmarks {
		title := b.Title
		if title == "" {
			title = b.URL
		}
		fmt.Fprintf(sb, "=> %s %s\n", b.URL, title)
		fmt.Fprintf(sb, "saved %s\n", humanize.Time(b.CreatedAt))
	}
}
