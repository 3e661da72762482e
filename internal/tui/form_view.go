package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rflorenc/facility-workbench/internal/models"
)

var (
	formBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("170")).
			Padding(1, 2).
			Width(70)

	labelStyle = lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("250"))
)

// startForm builds one input per editable field from the open form.
func (m *Model) startForm() {
	m.viewMode = ViewForm
	m.formFields = m.formFields[:0]
	m.formInputs = m.formInputs[:0]
	m.focusIndex = 0
	if m.view.Form == nil {
		return
	}
	for _, f := range m.schemas[m.tab].Fields {
		if f.Derived {
			continue
		}
		in := textinput.New()
		in.CharLimit = 120
		in.Width = 40
		switch f.Kind {
		case models.KindPassword:
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		case models.KindImage:
			in.Placeholder = "path to image file"
		case models.KindSelect:
			in.Placeholder = strings.Join(f.Options, " / ")
		case models.KindDate:
			in.Placeholder = "YYYY-MM-DD"
		case models.KindTime:
			in.Placeholder = "HH:MM"
		}
		if f.Kind != models.KindPassword && f.Kind != models.KindImage {
			in.SetValue(m.view.Form.Fields.Text(f.Name))
		}
		m.formFields = append(m.formFields, f)
		m.formInputs = append(m.formInputs, in)
	}
	if len(m.formInputs) > 0 {
		m.formInputs[0].Focus()
	}
}

func (m Model) renderFormView() string {
	var s strings.Builder
	st := m.view.Form
	if st == nil {
		return m.renderListView()
	}

	heading := "New " + m.schemas[m.tab].Singular
	if st.Mode == models.ModeEditing {
		heading = "Edit " + m.schemas[m.tab].Singular
	}
	s.WriteString(titleStyle.Render(heading))
	s.WriteString("\n")

	for i, f := range m.formFields {
		label := f.Label
		if f.Required && (st.Mode == models.ModeCreating || !f.CreateOnly) {
			label += " *"
		}
		s.WriteString(labelStyle.Render(label))
		s.WriteString(m.formInputs[i].View())
		if f.Kind == models.KindImage && st.Images[f.Name] != "" {
			s.WriteString(dimStyle.Render("  (staged)"))
		}
		s.WriteString("\n")
		if msg := st.Errors[f.Name]; msg != "" {
			s.WriteString(labelStyle.Render(""))
			s.WriteString(errorStyle.Render(msg))
			s.WriteString("\n")
		}
	}
	for _, f := range m.schemas[m.tab].Fields {
		if f.Derived {
			s.WriteString(labelStyle.Render(f.Label))
			s.WriteString(dimStyle.Render(st.Fields.Text(f.Name)))
			s.WriteString("\n")
		}
	}
	if st.Submitting || m.busy {
		s.WriteString("\n" + dimStyle.Render("Saving…"))
	}

	out := formBoxStyle.Render(s.String())
	out += m.renderNotifications()
	out += helpStyle.Render("Tab: Next field • Shift+Tab: Previous • Enter: Save • Esc: Cancel")
	return out
}

func (m Model) handleFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.sc.CloseForm()
		m.viewMode = ViewList
		m.refreshView()
		return m, nil
	case "tab", "down":
		return m, m.focusField(m.focusIndex + 1)
	case "shift+tab", "up":
		return m, m.focusField(m.focusIndex - 1)
	case "enter":
		if m.busy {
			return m, nil
		}
		if err := m.stageImages(); err != nil {
			m.notes.Error(err.Error())
			m.refreshView()
			return m, nil
		}
		sc := m.sc
		return m, m.run("submit", func(ctx context.Context) error {
			_, _, err := sc.Submit(ctx)
			return err
		})
	}

	if len(m.formInputs) == 0 {
		return m, nil
	}
	i := m.focusIndex
	before := m.formInputs[i].Value()
	var cmd tea.Cmd
	m.formInputs[i], cmd = m.formInputs[i].Update(msg)
	if v := m.formInputs[i].Value(); v != before && m.formFields[i].Kind != models.KindImage {
		_ = m.sc.SetField(m.formFields[i].Name, fieldValue(m.formFields[i], v))
		m.refreshView()
	}
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	n := len(m.formInputs)
	if n == 0 {
		return nil
	}
	m.formInputs[m.focusIndex].Blur()
	m.focusIndex = (i + n) % n
	return m.formInputs[m.focusIndex].Focus()
}

// stageImages attaches image files named by path in the form.
func (m *Model) stageImages() error {
	for i, f := range m.formFields {
		path := strings.TrimSpace(m.formInputs[i].Value())
		if f.Kind != models.KindImage || path == "" {
			continue
		}
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Label, err)
		}
		_, err = m.sc.Form().AttachImage(f.Name, filepath.Base(path), file)
		file.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Label, err)
		}
		m.formInputs[i].SetValue("")
	}
	return nil
}

// fieldValue converts typed text to the value kind the backend expects.
// Text that does not parse is kept so validation can report it.
func fieldValue(f models.Field, v string) interface{} {
	switch f.Kind {
	case models.KindNumber:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	case models.KindDecimal:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return n
		}
	case models.KindBool:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return v
}
