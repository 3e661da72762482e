package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rflorenc/facility-workbench/internal/models"
)

var (
	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(1, 2).
			Width(60).
			Align(lipgloss.Center)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	confirmButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("9")).
				Padding(0, 2).
				MarginRight(2)

	cancelButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("8")).
				Padding(0, 2)
)

func (m Model) renderConfirmView() string {
	p := m.view.Confirmation
	if p == nil {
		return m.renderListView()
	}
	label, _ := p.Payload["label"].(string)
	singular := strings.ToLower(m.schemas[m.tab].Singular)

	var title, message string
	switch p.Action {
	case models.ActionDelete:
		title = "DELETE CONFIRMATION"
		message = fmt.Sprintf("Delete %s %s?\n\nThis action cannot be undone!", singular, label)
	case models.ActionToggleRole:
		title = "CHANGE ROLE"
		message = fmt.Sprintf("Change %s from %v to %v?", label, p.Payload["from"], p.Payload["role"])
	case models.ActionResetCredential:
		title = "RESET PASSWORD"
		message = fmt.Sprintf("Set a new password for %s:\n\n%s", label, m.secret.View())
	default:
		title = "CONFIRM"
		message = fmt.Sprintf("Apply %s to %s?", p.Action, label)
	}

	body := warningStyle.Render("⚠  "+title+"  ⚠") + "\n\n" + message
	if p.Error != "" {
		body += "\n\n" + errorStyle.Render(p.Error)
	}
	yes, no := "Yes (y)", "Cancel (n/esc)"
	if p.Action == models.ActionResetCredential {
		yes, no = "Save (enter)", "Cancel (esc)"
	}
	if m.busy {
		yes = "Working…"
	}
	body += "\n\n" + lipgloss.JoinHorizontal(lipgloss.Left,
		confirmButtonStyle.Render(yes),
		cancelButtonStyle.Render(no))

	return confirmBoxStyle.Render(body) + m.renderNotifications()
}

func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.view.Confirmation
	if p == nil {
		m.viewMode = ViewList
		return m, nil
	}
	key := msg.String()
	typing := p.Action == models.ActionResetCredential

	switch {
	case key == "esc" || (!typing && key == "n"):
		if m.sc.CancelConfirmation() {
			m.viewMode = ViewList
			m.secret.Reset()
			m.refreshView()
		}
		return m, nil
	case key == "enter" || (!typing && key == "y"):
		if m.busy {
			return m, nil
		}
		if typing {
			if err := m.sc.SetConfirmationValue("password", m.secret.Value()); err != nil {
				m.refreshView()
				if m.view.Confirmation == nil {
					m.viewMode = ViewList
					m.secret.Reset()
				} else {
					m.notes.Error(err.Error())
				}
				return m, nil
			}
		}
		sc := m.sc
		return m, m.run("confirm", func(ctx context.Context) error {
			_, err := sc.Confirm(ctx)
			return err
		})
	}

	if !typing {
		return m, nil
	}
	var cmd tea.Cmd
	m.secret, cmd = m.secret.Update(msg)
	return m, cmd
}
