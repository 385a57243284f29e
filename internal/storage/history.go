package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vidyasagar/gsurf/internal/browser"
)

// HistoryEntry represents a single visited page.
type HistoryEntry struct {
	ID        int64
	URL       string
	Title     string
	VisitedAt time.Time
}

// HistoryStore manages persistent browsing history.
type HistoryStore struct {
	db      *sql.DB
	maxSize int // max number of entries to keep
	now     func() time.Time
}

// NewHistoryStore creates a history store using the given database.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{
		db:      db.Conn(),
		maxSize: 1000,
		now:     time.Now,
	}
}

// Record implements browser.HistoryRecorder.
func (hs *HistoryStore) Record(e browser.HistoryEntry) error {
	return hs.add(e.URL, e.Title, e.VisitedAt)
}

// Add records a page visit. If the URL was already the most recent entry,
// it updates the timestamp instead of creating a duplicate.
func (hs *HistoryStore) Add(url, title string) error {
	return hs.add(url, title, hs.now())
}

func (hs *HistoryStore) add(url, title string, at time.Time) error {
	if url == "" {
		return nil
	}
	if at.IsZero() {
		at = hs.now()
	}

	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("recording visit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		lastID  int64
		lastURL string
	)
	err = tx.QueryRow(`SELECT id, url FROM history ORDER BY visited_at DESC, id DESC LIMIT 1`).Scan(&lastID, &lastURL)
	switch {
	case err == nil && lastURL == url:
		_, err = tx.Exec(
			`UPDATE history SET visited_at = ?, title = CASE WHEN ? = '' THEN title ELSE ? END WHERE id = ?`,
			toMillis(at), title, title, lastID,
		)
	case err == nil || err == sql.ErrNoRows:
		_, err = tx.Exec(`INSERT INTO history (url, title, visited_at) VALUES (?, ?, ?)`, url, title, toMillis(at))
	}
	if err != nil {
		return fmt.Errorf("recording visit: %w", err)
	}

	// Trim if over max.
	if _, err := tx.Exec(
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY visited_at DESC, id DESC LIMIT ?)`,
		hs.maxSize,
	); err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	return tx.Commit()
}

// List returns up to limit history entries, newest first. A non-positive
// limit returns everything.
func (hs *HistoryStore) List(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := hs.db.Query(
		`SELECT id, url, title, visited_at FROM history ORDER BY visited_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// Search finds entries matching a query in title or URL.
func (hs *HistoryStore) Search(query string) ([]HistoryEntry, error) {
	like := "%" + query + "%"
	rows, err := hs.db.Query(
		`SELECT id, url, title, visited_at FROM history
		 WHERE title LIKE ? OR url LIKE ?
		 ORDER BY visited_at DESC, id DESC`,
		like, like,
	)
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// Remove deletes a history entry by ID.
func (hs *HistoryStore) Remove(id int64) (bool, error) {
	res, err := hs.db.Exec(`DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("removing history entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Clear removes all history entries.
func (hs *HistoryStore) Clear() error {
	if _, err := hs.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// Count returns the number of history entries.
func (hs *HistoryStore) Count() (int, error) {
	var count int
	if err := hs.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return count, nil
}

func scanHistory(rows *sql.Rows) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var visited int64
		if err := rows.Scan(&e.ID, &e.URL, &e.Title, &visited); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.VisitedAt = fromMillis(visited)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HistoryGemtext formats history entries as the about:history page,
// grouped by day.
func HistoryGemtext(entries []HistoryEntry) string {
	var sb strings.Builder
	sb.WriteString("# History\n\n")
	if len(entries) == 0 {
		sb.WriteString("Nothing visited yet.\n")
		return sb.String()
	}

	day := ""
	for _, e := range entries {
		if d := e.VisitedAt.Format("2006-01-02"); d != day {
			if day != "" {
				sb.WriteString("\n")
			}
			day = d
			fmt.Fprintf(&sb, "## %s\n", d)
		}
		title := e.Title
		if title == "" {
			title = e.URL
		}
		fmt.Fprintf(&sb, "=> %s %s (%s)\n", e.URL, title, humanize.Time(e.VisitedAt))
	}
	return sb.String()
}
