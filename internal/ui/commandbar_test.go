package ui

import (
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func typeText(c *CommandBar, s string) {
	c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestCommandBarExHistory(t *testing.T) {
	c := NewCommandBar()
	c.SetWidth(80)

	c.Open(CommandEx)
	typeText(&c, "  open gemini://a.example/ ")
	res := c.Submit()
	assert.Equal(t, CommandResult{Type: CommandEx, Value: "open gemini://a.example/"}, res)
	assert.False(t, c.IsActive())

	c.Open(CommandEx)
	c.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "open gemini://a.example/", c.input.Value())
}

func TestCommandBarSensitiveInput(t *testing.T) {
	c := NewCommandBar()
	c.SetWidth(80)

	c.OpenInput("Password", true, nil)
	assert.Equal(t, CommandInput, c.Type())
	assert.Equal(t, textinput.EchoPassword, c.input.EchoMode)
	assert.Equal(t, 2, c.Height())

	typeText(&c, " hunter2 ")
	assert.NotContains(t, c.View(), "hunter2")

	res := c.Submit()
	assert.Equal(t, " hunter2 ", res.Value, "answers are sent as typed")
	assert.Zero(t, c.Height())

	// The next prompt starts with normal echo again.
	c.OpenInput("Search", false, nil)
	assert.Equal(t, textinput.EchoNormal, c.input.EchoMode)
}

func TestCommandBarEscCloses(t *testing.T) {
	c := NewCommandBar()
	c.Open(CommandFollow)
	c.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, c.IsActive())
	assert.Equal(t, CommandNone, c.Type())
}

func TestCommandBarCompletion(t *testing.T) {
	c := NewCommandBar()
	c.SetCommands([]string{"tabnew", "tabclose", "theme", "open"})

	c.Open(CommandEx)
	typeText(&c, "ta")
	c.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "tab", c.input.Value(), "completes the shared prefix")

	typeText(&c, "n")
	c.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "tabnew ", c.input.Value())

	c.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "tabnew ", c.input.Value(), "arguments are left alone")
}

func TestCommandBarInputRoom(t *testing.T) {
	c := NewCommandBar()
	c.SetWidth(80)

	c.OpenInput("Search", false, func(answer string) int { return 5 - len(answer) })
	assert.Contains(t, ansi.Strip(c.View()), "5 left")

	typeText(&c, "abcdefg")
	assert.Contains(t, ansi.Strip(c.View()), "2 too long")
	assert.Equal(t, 2, c.Height())
}
