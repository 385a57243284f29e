package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vidyasagar/gsurf/internal/theme"
)

// CommandType identifies the kind of command bar interaction.
type CommandType int

const (
	CommandNone   CommandType = iota
	CommandEx                 // : commands
	CommandFollow             // f link follow
	CommandInput              // answer to a server's input prompt
)

// CommandResult is emitted when a command is submitted.
type CommandResult struct {
	Type  CommandType
	Value string
}

// CommandBar handles : commands, link following and input prompts.
type CommandBar struct {
	input      textinput.Model
	active     bool
	cmdType    CommandType
	prompt     string
	room       func(answer string) int // bytes left for an answer, may be nil
	width      int
	history    []string
	historyPos int
	commands   []string
}

// NewCommandBar creates a new command bar.
func NewCommandBar() CommandBar {
	ti := textinput.New()
	ti.CharLimit = 1024

	return CommandBar{
		input:      ti,
		historyPos: -1,
	}
}

// SetWidth sets the command bar width.
func (c *CommandBar) SetWidth(w int) {
	c.width = w
	c.input.Width = w - 4
}

// SetCommands sets the command names offered by tab completion.
func (c *CommandBar) SetCommands(names []string) {
	c.commands = append([]string(nil), names...)
	sort.Strings(c.commands)
}

// Open activates the command bar in the given mode.
func (c *CommandBar) Open(ct CommandType) tea.Cmd {
	c.active = true
	c.cmdType = ct
	c.prompt = ""
	c.room = nil
	c.input.Reset()
	c.input.EchoMode = textinput.EchoNormal
	c.historyPos = -1

	switch ct {
	case CommandEx:
		c.input.Placeholder = "command..."
		c.input.Prompt = ":"
	case CommandFollow:
		c.input.Placeholder = "link #..."
		c.input.Prompt = "f"
	}

	return c.input.Focus()
}

// OpenInput asks the user to answer a server prompt. Sensitive prompts
// are echoed as bullets. When room is set the prompt shows how many bytes
// of the request are left.
func (c *CommandBar) OpenInput(prompt string, sensitive bool, room func(string) int) tea.Cmd {
	cmd := c.Open(CommandInput)
	c.prompt = prompt
	c.room = room
	c.input.Prompt = "› "
	c.input.Placeholder = ""
	if sensitive {
		c.input.EchoMode = textinput.EchoPassword
		c.input.EchoCharacter = '•'
	}
	return cmd
}

// Close deactivates the command bar.
func (c *CommandBar) Close() {
	c.active = false
	c.cmdType = CommandNone
	c.prompt = ""
	c.room = nil
	c.input.Blur()
	c.input.Reset()
}

// IsActive reports whether the command bar is open.
func (c *CommandBar) IsActive() bool {
	return c.active
}

// SetValue sets the text input value (useful for pre-filling commands).
func (c *CommandBar) SetValue(val string) {
	c.input.SetValue(val)
	c.input.SetCursor(len(val))
}

// Type returns the current command type.
func (c *CommandBar) Type() CommandType {
	return c.cmdType
}

// Submit returns the command result and adds to history. Input answers
// are passed through untrimmed and never kept.
func (c *CommandBar) Submit() CommandResult {
	val := c.input.Value()
	if c.cmdType != CommandInput {
		val = strings.TrimSpace(val)
	}
	result := CommandResult{Type: c.cmdType, Value: val}

	if val != "" && c.cmdType == CommandEx {
		c.history = append(c.history, val)
	}

	c.Close()
	return result
}

// Update processes messages for the command bar.
func (c *CommandBar) Update(msg tea.Msg) (*CommandBar, tea.Cmd) {
	if !c.active {
		return c, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEsc:
			c.Close()
			return c, nil
		case tea.KeyEnter:
			// Handled by the app to process the result.
			return c, nil
		case tea.KeyTab:
			if c.cmdType == CommandEx {
				c.complete()
			}
			return c, nil
		case tea.KeyUp:
			if c.cmdType == CommandEx && len(c.history) > 0 {
				if c.historyPos < len(c.history)-1 {
					c.historyPos++
				}
				c.input.SetValue(c.history[len(c.history)-1-c.historyPos])
			}
			return c, nil
		case tea.KeyDown:
			if c.cmdType == CommandEx && c.historyPos > 0 {
				c.historyPos--
				c.input.SetValue(c.history[len(c.history)-1-c.historyPos])
			} else if c.historyPos == 0 {
				c.historyPos = -1
				c.input.Reset()
			}
			return c, nil
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

// complete extends the command name being typed to the longest prefix
// shared by the names it matches.
func (c *CommandBar) complete() {
	val := c.input.Value()
	if strings.ContainsRune(val, ' ') {
		return
	}
	var matches []string
	for _, name := range c.commands {
		if strings.HasPrefix(name, val) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return
	}
	prefix := matches[0]
	for _, m := range matches[1:] {
		for !strings.HasPrefix(m, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if len(matches) == 1 {
		prefix += " "
	}
	c.SetValue(prefix)
}

// View renders the command bar.
func (c *CommandBar) View() string {
	if !c.active {
		return ""
	}

	t := theme.Current

	barStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Background(t.Surface).
		Width(c.width)

	if c.prompt == "" {
		return barStyle.Render(c.input.View())
	}
	promptStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true).
		Width(c.width)
	if c.room == nil {
		return promptStyle.Render(c.prompt) + "\n" + barStyle.Render(c.input.View())
	}

	left := c.room(c.input.Value())
	counter := lipgloss.NewStyle().Foreground(t.TextDim).Render(fmt.Sprintf("%d left", left))
	if left < 0 {
		counter = lipgloss.NewStyle().Foreground(t.Error).Bold(true).Render(fmt.Sprintf("%d too long", -left))
	}
	promptStyle = promptStyle.Width(max(c.width-lipgloss.Width(counter)-1, 1))
	head := lipgloss.JoinHorizontal(lipgloss.Top, promptStyle.Render(c.prompt), " ", counter)
	return head + "\n" + barStyle.Render(c.input.View())
}

// Height returns the number of rows the bar occupies.
func (c *CommandBar) Height() int {
	switch {
	case !c.active:
		return 0
	case c.prompt != "":
		return lipgloss.Height(c.View())
	}
	return 1
}
