package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidyasagar/gsurf/internal/browser"
)

func newTestHistory(t *testing.T) (*HistoryStore, *time.Time) {
	t.Helper()
	hs := NewHistoryStore(openTestDB(t))
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	hs.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return hs, &clock
}

func urls(entries []HistoryEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.URL)
	}
	return out
}

func TestHistoryAddCollapsesRepeat(t *testing.T) {
	hs, _ := newTestHistory(t)

	require.NoError(t, hs.Add("gemini://a.example/", "A"))
	require.NoError(t, hs.Add("gemini://b.example/", "B"))
	require.NoError(t, hs.Add("gemini://b.example/", ""))

	entries, err := hs.List(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini://b.example/", "gemini://a.example/"}, urls(entries))
	assert.Equal(t, "B", entries[0].Title, "empty title keeps the old one")

	// Not the newest entry, so it is a new visit.
	require.NoError(t, hs.Add("gemini://a.example/", "A"))
	n, err := hs.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestHistoryRecord(t *testing.T) {
	hs, _ := newTestHistory(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, hs.Record(browser.HistoryEntry{URL: "gemini://a.example/", Title: "A", VisitedAt: at}))
	require.NoError(t, hs.Record(browser.HistoryEntry{URL: "gemini://b.example/"}))

	entries, err := hs.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "gemini://b.example/", entries[0].URL)
	assert.True(t, entries[1].VisitedAt.Equal(at))
}

func TestHistoryTrim(t *testing.T) {
	hs, _ := newTestHistory(t)
	hs.maxSize = 3

	for _, u := range []string{"gemini://1/", "gemini://2/", "gemini://3/", "gemini://4/", "gemini://5/"} {
		require.NoError(t, hs.Add(u, ""))
	}
	entries, err := hs.List(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini://5/", "gemini://4/", "gemini://3/"}, urls(entries))

	entries, err = hs.List(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini://5/"}, urls(entries))
}

func TestHistorySearchRemoveClear(t *testing.T) {
	hs, _ := newTestHistory(t)
	require.NoError(t, hs.Add("gemini://a.example/gemlog/", "Station log"))
	require.NoError(t, hs.Add("gemini://b.example/", "Weather"))

	found, err := hs.Search("station")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "gemini://a.example/gemlog/", found[0].URL)

	ok, err := hs.Remove(found[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = hs.Remove(found[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, hs.Clear())
	n, err := hs.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistoryGemtext(t *testing.T) {
	assert.Equal(t, "# History\n\nNothing visited yet.\n", HistoryGemtext(nil))

	page := HistoryGemtext([]HistoryEntry{
		{URL: "gemini://b.example/", Title: "B", VisitedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)},
		{URL: "gemini://a.example/", VisitedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	})
	assert.Contains(t, page, "## 2024-03-02\n=> gemini://b.example/ B (")
	assert.Contains(t, page, "\n\n## 2024-03-01\n=> gemini://a.example/ gemini://a.example/ (")
}
