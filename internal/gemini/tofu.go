package gemini

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"sync"
	"time"
)

// Trust is the result of checking a certificate against the pin store.
type Trust int

const (
	TrustMismatch Trust = iota
	TrustNew            // first visit, fingerprint pinned now
	TrustKnown          // matches the pinned fingerprint
)

func (t Trust) String() string {
	switch t {
	case TrustNew:
		return "new"
	case TrustKnown:
		return "known"
	}
	return "mismatch"
}

// Pin is a certificate fingerprint remembered for a host.
type Pin struct {
	Host        string
	Fingerprint string
	ExpiresAt   time.Time
	FirstSeen   time.Time
}

// PinStore remembers the first certificate seen for each host.
//
// Check must be atomic per host: two concurrent first visits to the same
// host may not both pin different certificates.
type PinStore interface {
	// Check compares fp with the pin for host, pinning it when none
	// exists. On TrustMismatch the pinned fingerprint is returned.
	Check(host, fp string, expires time.Time) (Trust, string, error)
}

// Fingerprint is the hex SHA-256 of the certificate's DER encoding.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// MemoryPinStore is an in-process PinStore.
type MemoryPinStore struct {
	mu   sync.Mutex
	pins map[string]Pin
	now  func() time.Time
}

// NewMemoryPinStore creates an empty in-memory pin store.
func NewMemoryPinStore() *MemoryPinStore {
	return &MemoryPinStore{pins: make(map[string]Pin), now: time.Now}
}

// Check implements PinStore.
func (m *MemoryPinStore) Check(host, fp string, expires time.Time) (Trust, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pin, ok := m.pins[host]; ok {
		if pin.Fingerprint != fp {
			return TrustMismatch, pin.Fingerprint, nil
		}
		return TrustKnown, pin.Fingerprint, nil
	}
	m.pins[host] = Pin{Host: host, Fingerprint: fp, ExpiresAt: expires, FirstSeen: m.now()}
	return TrustNew, fp, nil
}

// Forget drops the pin for host so the next certificate is trusted anew.
func (m *MemoryPinStore) Forget(host string) {
	m.mu.Lock()
	delete(m.pins, host)
	m.mu.Unlock()
}

// Lookup returns the pin for host.
func (m *MemoryPinStore) Lookup(host string) (Pin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin, ok := m.pins[host]
	return pin, ok
}
