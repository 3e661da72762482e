// Package tui is the terminal front end: one resource screen at a time,
// switched with tabs.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/notify"
	"github.com/rflorenc/facility-workbench/internal/screen"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewSearch
	ViewForm
	ViewConfirm
)

// Opener builds a screen for a resource.
type Opener func(schema *models.Schema) *screen.Screen

// doneMsg reports a finished screen operation.
type doneMsg struct {
	op     string
	err    error
	fields map[string]string
}

type noteMsg struct{ ev notify.Event }

// Model is the main bubbletea model
type Model struct {
	schemas []*models.Schema
	open    Opener
	notes   *notify.Center
	events  <-chan notify.Event

	tab  int
	sc   *screen.Screen
	view screen.View

	viewMode ViewMode
	cursor   int
	busy     bool

	// search
	search textinput.Model

	// filter and sort cycling
	filterKey int
	sortCol   int

	// form
	formFields []models.Field
	formInputs []textinput.Model
	focusIndex int

	// confirmation
	secret textinput.Model

	width  int
	height int

	initCmd tea.Cmd
}

// NewModel creates a TUI over the given resources. The first screen is
// opened here and fetched on Init.
func NewModel(schemas []*models.Schema, open Opener, notes *notify.Center) Model {
	search := textinput.New()
	search.Placeholder = "search"
	search.CharLimit = 80

	secret := textinput.New()
	secret.Placeholder = "new password"
	secret.EchoMode = textinput.EchoPassword
	secret.EchoCharacter = '•'

	m := Model{
		schemas: schemas,
		open:    open,
		notes:   notes,
		search:  search,
		secret:  secret,
		sortCol: -1,
		width:   100,
		height:  30,
	}
	if notes != nil {
		m.events, _ = notes.Subscribe(16)
	}
	m.initCmd = m.mountTab(0)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.initCmd, m.waitForNote())
}

func (m Model) waitForNote() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return noteMsg{ev: ev}
	}
}

// mountTab opens the screen for tab i. It runs synchronously so the model
// always holds a screen; the fetch itself is a command.
func (m *Model) mountTab(i int) tea.Cmd {
	if len(m.schemas) == 0 {
		return nil
	}
	if m.sc != nil {
		m.sc.Close()
	}
	m.tab = i
	m.sc = m.open(m.schemas[i])
	m.cursor, m.filterKey, m.sortCol = 0, 0, -1
	m.viewMode = ViewList
	m.view = m.sc.View()
	return m.run("mount", m.sc.Mount)
}

// run executes a blocking screen call off the update loop.
func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy = true
	return func() tea.Msg {
		return doneMsg{op: op, err: fn(context.Background())}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case doneMsg:
		return m.handleDone(msg)
	case noteMsg:
		m.refreshView()
		return m, m.waitForNote()
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m *Model) refreshView() {
	if m.sc == nil {
		return
	}
	m.view = m.sc.View()
	if n := len(m.view.Items); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m Model) handleDone(msg doneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.refreshView()
	switch msg.op {
	case "submit":
		if msg.err == nil || m.view.Form == nil {
			m.viewMode = ViewList
		}
	case "confirm":
		if m.view.Confirmation == nil {
			m.viewMode = ViewList
			m.secret.Reset()
		}
	case "edit":
		if msg.err == nil {
			m.startForm()
		}
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewForm:
		return m.renderFormView()
	case ViewConfirm:
		return m.renderConfirmView()
	}
	return m.renderListView()
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	switch m.viewMode {
	case ViewSearch:
		return m.handleSearchKeys(msg)
	case ViewForm:
		return m.handleFormKeys(msg)
	case ViewConfirm:
		return m.handleConfirmKeys(msg)
	}
	return m.handleListKeys(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.sc != nil {
		m.sc.Close()
	}
	return m, tea.Quit
}

// selectedID is the primary key of the row under the cursor.
func (m Model) selectedID() string {
	if m.cursor < 0 || m.cursor >= len(m.view.Items) {
		return ""
	}
	return m.view.Items[m.cursor].Key(m.schemas[m.tab].PrimaryKey)
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
