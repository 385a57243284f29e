package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

const pinCacheSize = 256

// PinStore is the persistent known-hosts table. It implements
// gemini.PinStore.
type PinStore struct {
	db    *sql.DB
	cache *lru.Cache[string, gemini.Pin]
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPinStore creates a pin store using the given database.
func NewPinStore(db *DB) (*PinStore, error) {
	cache, err := lru.New[string, gemini.Pin](pinCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating pin cache: %w", err)
	}
	return &PinStore{
		db:    db.Conn(),
		cache: cache,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// hostLock serialises Check calls for one host.
func (ps *PinStore) hostLock(host string) *sync.Mutex {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	l, ok := ps.locks[host]
	if !ok {
		l = &sync.Mutex{}
		ps.locks[host] = l
	}
	return l
}

// Check implements gemini.PinStore.
func (ps *PinStore) Check(host, fp string, expires time.Time) (gemini.Trust, string, error) {
	l := ps.hostLock(host)
	l.Lock()
	defer l.Unlock()

	pin, ok, err := ps.Lookup(host)
	if err != nil {
		return gemini.TrustMismatch, "", err
	}
	if ok {
		if pin.Fingerprint != fp {
			return gemini.TrustMismatch, pin.Fingerprint, nil
		}
		return gemini.TrustKnown, pin.Fingerprint, nil
	}

	pin = gemini.Pin{Host: host, Fingerprint: fp, ExpiresAt: expires, FirstSeen: ps.now()}
	if _, err := ps.db.Exec(
		`INSERT INTO known_hosts (host, fingerprint, expires_at, first_seen) VALUES (?, ?, ?, ?)`,
		pin.Host, pin.Fingerprint, toMillis(pin.ExpiresAt), toMillis(pin.FirstSeen),
	); err != nil {
		return gemini.TrustMismatch, "", fmt.Errorf("pinning %s: %w", host, err)
	}
	ps.cache.Add(host, pin)
	return gemini.TrustNew, fp, nil
}

// Lookup returns the pin for host.
func (ps *PinStore) Lookup(host string) (gemini.Pin, bool, error) {
	if pin, ok := ps.cache.Get(host); ok {
		return pin, true, nil
	}

	var (
		pin              gemini.Pin
		expires, firstAt int64
	)
	err := ps.db.QueryRow(
		`SELECT host, fingerprint, expires_at, first_seen FROM known_hosts WHERE host = ?`, host,
	).Scan(&pin.Host, &pin.Fingerprint, &expires, &firstAt)
	if errors.Is(err, sql.ErrNoRows) {
		return gemini.Pin{}, false, nil
	}
	if err != nil {
		return gemini.Pin{}, false, fmt.Errorf("looking up pin for %s: %w", host, err)
	}
	pin.ExpiresAt = fromMillis(expires)
	pin.FirstSeen = fromMillis(firstAt)
	ps.cache.Add(host, pin)
	return pin, true, nil
}

// List returns every pinned host, sorted by host.
func (ps *PinStore) List() ([]gemini.Pin, error) {
	rows, err := ps.db.Query(`SELECT host, fingerprint, expires_at, first_seen FROM known_hosts ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("listing pins: %w", err)
	}
	defer rows.Close()

	var pins []gemini.Pin
	for rows.Next() {
		var (
			p                gemini.Pin
			expires, firstAt int64
		)
		if err := rows.Scan(&p.Host, &p.Fingerprint, &expires, &firstAt); err != nil {
			return nil, fmt.Errorf("scanning pin: %w", err)
		}
		p.ExpiresAt = fromMillis(expires)
		p.FirstSeen = fromMillis(firstAt)
		pins = append(pins, p)
	}
	return pins, rows.Err()
}

// Forget drops the pin for host so its next certificate is trusted anew.
func (ps *PinStore) Forget(host string) (bool, error) {
	l := ps.hostLock(host)
	l.Lock()
	defer l.Unlock()

	res, err := ps.db.Exec(`DELETE FROM known_hosts WHERE host = ?`, host)
	if err != nil {
		return false, fmt.Errorf("forgetting %s: %w", host, err)
	}
	ps.cache.Remove(host)
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PinsGemtext formats pins as the about:known-hosts page.
func PinsGemtext(pins []gemini.Pin) string {
	var sb strings.Builder
	sb.WriteString("# Known hosts\n\n")
	if len(pins) == 0 {
		sb.WriteString("No certificates pinned yet.\n")
		return sb.String()
	}
	for _, p := range pins {
		fmt.Fprintf(&sb, "## %s\n", p.Host)
		fmt.Fprintf(&sb, "* SHA-256: %s\n", p.Fingerprint)
		fmt.Fprintf(&sb, "* First seen: %s\n", p.FirstSeen.Format("2006-01-02"))
		if !p.ExpiresAt.IsZero() {
			fmt.Fprintf(&sb, "* Expires: %s\n", p.ExpiresAt.Format("2006-01-02"))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Use `gsurf known-hosts forget <host>` to trust a host's new certificate.\n")
	return sb.String()
}
