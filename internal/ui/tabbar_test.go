package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabBarNewAndClose(t *testing.T) {
	tb := NewTabBar()
	tb.SetWidth(120)

	assert.Equal(t, 1, tb.NewTab())
	assert.Equal(t, 2, tb.NewTab())
	tb.Select(0)
	assert.Equal(t, 1, tb.NewTab(), "new tabs open after the active one")
	assert.Equal(t, 4, tb.Count())

	assert.True(t, tb.CloseTab(0))
	assert.Equal(t, 0, tb.Active())
	for tb.Count() > 1 {
		require.True(t, tb.CloseTab(tb.Active()))
	}
	assert.False(t, tb.CloseTab(0), "the last tab stays open")
}

func TestTabBarCycle(t *testing.T) {
	tb := NewTabBar()
	tb.NewTab()
	tb.NewTab()

	tb.NextTab()
	assert.Equal(t, 0, tb.Active())
	tb.PrevTab()
	assert.Equal(t, 2, tb.Active())
}

func TestTabBarUpdateAndView(t *testing.T) {
	tb := NewTabBar()
	tb.SetWidth(80)

	tb.Update(0, "", "gemini://a.example/", true)
	tab, ok := tb.Tab(0)
	require.True(t, ok)
	assert.Equal(t, "gemini://a.example/", tab.Title)

	tb.Update(0, "Ünïcode capsule with a very long title indeed", "gemini://a.example/", false)
	view := ansi.Strip(tb.View())
	assert.Contains(t, view, "Ünïcode")
	assert.Contains(t, view, "…")
	assert.False(t, strings.Contains(view, "⟳"))

	tb.Update(5, "ignored", "", false)
	_, ok = tb.Tab(5)
	assert.False(t, ok)
}

func TestTabBarIndexOf(t *testing.T) {
	tb := NewTabBar()
	tb.NewTab()
	id := tb.ActiveTab().ID

	assert.Equal(t, 1, tb.IndexOf(id))
	tb.CloseTab(0)
	assert.Equal(t, 0, tb.IndexOf(id))
	assert.Equal(t, -1, tb.IndexOf(99))
}
