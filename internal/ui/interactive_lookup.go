package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// LookupEntry is one finished lookup shown in the interactive UI.
type LookupEntry struct {
	Group       string `json:"group"`
	Found       bool   `json:"found"`
	SessionID   string `json:"session_id,omitempty"`
	SessionName string `json:"session_name,omitempty"`
	FolderName  string `json:"folder_name,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// LookupFunc resolves a group name into an entry. An error is shown in the
// status line and nothing is added to the list.
type LookupFunc func(ctx context.Context, group string) (LookupEntry, error)

var ErrCanceled = errors.New("lookup canceled")

// InteractiveLookup runs group lookups until the user picks an entry or
// quits. Entries accumulate newest first.
func InteractiveLookup(ctx context.Context, title, initialGroup string, lookup LookupFunc) (*LookupEntry, error) {
	program := tea.NewProgram(newLookupModel(ctx, title, initialGroup, lookup))
	result, err := program.Run()
	if err != nil {
		return nil, err
	}
	m, ok := result.(lookupModel)
	if !ok || m.selected == nil {
		return nil, ErrCanceled
	}
	return m.selected, nil
}

type lookupModel struct {
	ctx      context.Context
	lookup   LookupFunc
	title    string
	input    textinput.Model
	list     list.Model
	focused  bool
	pending  string
	status   string
	selected *LookupEntry
}

type lookupMsg struct {
	group string
	entry LookupEntry
	err   error
}

func newLookupModel(ctx context.Context, title, initialGroup string, lookup LookupFunc) lookupModel {
	input := textinput.New()
	input.Placeholder = "Provider group name..."
	input.SetValue(initialGroup)
	input.Focus()
	input.Prompt = "> "

	lst := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	lst.Title = "Lookups"
	lst.SetShowHelp(false)

	return lookupModel{
		ctx:     ctx,
		lookup:  lookup,
		title:   title,
		input:   input,
		list:    lst,
		focused: true,
		pending: initialGroup,
		status:  "Enter a group name and press Enter to resolve",
	}
}

func (m lookupModel) Init() tea.Cmd {
	if m.pending != "" {
		return m.run(m.pending)
	}
	return nil
}

func (m lookupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			m.focused = !m.focused
			if m.focused {
				m.input.Focus()
			} else {
				m.input.Blur()
			}
			return m, nil
		case "enter":
			if m.focused {
				group := m.input.Value()
				if strings.TrimSpace(group) == "" {
					m.status = "Enter a group name to resolve"
					return m, nil
				}
				m.pending = group
				m.status = "Resolving " + group + "..."
				return m, m.run(group)
			}
			if item, ok := m.list.SelectedItem().(entryItem); ok {
				picked := item.entry
				m.selected = &picked
				return m, tea.Quit
			}
			return m, nil
		}
	case lookupMsg:
		if msg.group != m.pending {
			return m, nil
		}
		m.pending = ""
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		cmd := m.list.InsertItem(0, entryItem{entry: msg.entry})
		m.list.Select(0)
		if msg.entry.Found {
			m.status = "Found " + msg.entry.SessionName
		} else {
			m.status = "No session for " + msg.entry.Group
		}
		return m, cmd
	case tea.WindowSizeMsg:
		m.list.SetSize(max(msg.Width-2, 20), max(msg.Height-8, 4))
		return m, nil
	}

	var cmd tea.Cmd
	if m.focused {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m lookupModel) View() string {
	help := "Enter=resolve, Tab=toggle, up/down navigate, Enter=pick, Esc=quit"
	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n%s\n", m.title, m.input.View(), m.list.View(), m.status, help)
}

func (m lookupModel) run(group string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.lookup(m.ctx, group)
		return lookupMsg{group: group, entry: entry, err: err}
	}
}

type entryItem struct {
	entry LookupEntry
}

func (e entryItem) Title() string { return e.entry.Group }

func (e entryItem) Description() string {
	if !e.entry.Found {
		if e.entry.Detail != "" {
			return e.entry.Detail
		}
		return "no session"
	}
	if e.entry.FolderName != "" {
		return e.entry.SessionName + " (" + e.entry.FolderName + ")"
	}
	return e.entry.SessionName
}

func (e entryItem) FilterValue() string { return e.entry.Group }
