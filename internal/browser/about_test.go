package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

func TestAboutPages(t *testing.T) {
	pages := AboutPages{
		"history": func(context.Context) (string, error) { return "# History\n", nil },
		"broken":  func(context.Context) (string, error) { return "", errors.New("db closed") },
	}
	ctx := context.Background()

	body, err := pages.About(ctx, "history")
	require.NoError(t, err)
	assert.Equal(t, "# History\n", body)

	body, err = pages.About(ctx, "blank")
	require.NoError(t, err)
	assert.Empty(t, body)

	index, err := pages.About(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "# Built-in pages\n\n=> about:broken about:broken\n=> about:history about:history\n", index)

	_, err = pages.About(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoSuchPage)
}

func TestOpenAboutFollowsSessionContract(t *testing.T) {
	u, err := gemini.Resolve("about:history", nil)
	require.NoError(t, err)

	s := openAbout(context.Background(), AboutPages{
		"history": func(context.Context) (string, error) { return "# History\n", nil },
	}, u)

	var kinds []gemini.EventKind
	var last gemini.Event
	for ev := range s.Events() {
		kinds = append(kinds, ev.Kind)
		last = ev
	}
	assert.Equal(t, []gemini.EventKind{gemini.EventConnecting, gemini.EventReceiving, gemini.EventResolved}, kinds)
	assert.Equal(t, gemini.OutcomeSuccess, last.Outcome.Kind)
	assert.Equal(t, "# History\n", string(last.Outcome.Body))
}

func TestOpenAboutGeneratorError(t *testing.T) {
	u, err := gemini.Resolve("about:broken", nil)
	require.NoError(t, err)

	out, ok := resolved(openAbout(context.Background(), AboutPages{
		"broken": func(context.Context) (string, error) { return "", errors.New("db closed") },
	}, u))
	require.True(t, ok)
	require.Equal(t, gemini.OutcomeFailure, out.Kind)
	assert.Equal(t, gemini.KindTransferInterrupted, out.Failure.Kind)
}

func resolved(s *gemini.Session) (gemini.Outcome, bool) {
	for ev := range s.Events() {
		if ev.Kind == gemini.EventResolved {
			return ev.Outcome, true
		}
	}
	return gemini.Outcome{}, false
}
