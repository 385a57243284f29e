package gemini

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPinStore(t *testing.T) {
	s := NewMemoryPinStore()
	exp := time.Now().Add(24 * time.Hour)

	trust, pinned, err := s.Check("example.org", "aa", exp)
	require.NoError(t, err)
	assert.Equal(t, TrustNew, trust)
	assert.Equal(t, "aa", pinned)

	trust, _, err = s.Check("example.org", "aa", exp)
	require.NoError(t, err)
	assert.Equal(t, TrustKnown, trust)

	trust, pinned, err = s.Check("example.org", "bb", exp)
	require.NoError(t, err)
	assert.Equal(t, TrustMismatch, trust)
	assert.Equal(t, "aa", pinned, "mismatch reports the pinned fingerprint")

	// A mismatch never replaces the pin.
	pin, ok := s.Lookup("example.org")
	require.True(t, ok)
	assert.Equal(t, "aa", pin.Fingerprint)

	s.Forget("example.org")
	trust, _, err = s.Check("example.org", "bb", exp)
	require.NoError(t, err)
	assert.Equal(t, TrustNew, trust)
}

func TestMemoryPinStoreConcurrentFirstVisit(t *testing.T) {
	s := NewMemoryPinStore()
	var wg sync.WaitGroup
	results := make([]Trust, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, _ = s.Check("race.example", fmt.Sprintf("fp%d", i), time.Time{})
		}()
	}
	wg.Wait()

	var news int
	for _, r := range results {
		if r == TrustNew {
			news++
		}
	}
	assert.Equal(t, 1, news, "exactly one certificate gets pinned")
}
