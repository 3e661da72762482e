package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rflorenc/facility-workbench/internal/listing"
	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/resources"
	"github.com/rflorenc/facility-workbench/internal/screen"
)

var toneColors = map[resources.Tone]lipgloss.Color{
	resources.ToneSuccess: lipgloss.Color("10"),
	resources.ToneWarning: lipgloss.Color("11"),
	resources.ToneDanger:  lipgloss.Color("9"),
	resources.ToneInfo:    lipgloss.Color("12"),
}

var noteColors = map[models.NotificationKind]lipgloss.Color{
	models.NotifySuccess: lipgloss.Color("10"),
	models.NotifyError:   lipgloss.Color("9"),
	models.NotifyInfo:    lipgloss.Color("12"),
}

func (m Model) renderListView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(strings.ToUpper(m.view.Title)))
	s.WriteString("\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")
	s.WriteString(m.renderQueryLine())
	s.WriteString("\n\n")
	s.WriteString(m.renderBody())
	s.WriteString("\n")
	s.WriteString(m.renderPager())
	s.WriteString(m.renderNotifications())
	s.WriteString(m.renderListHelp())
	return s.String()
}

func (m Model) renderTabs() string {
	var rendered []string
	for i, schema := range m.schemas {
		if i == m.tab {
			rendered = append(rendered, tabActiveStyle.Render(schema.Title))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(schema.Title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderQueryLine() string {
	q := m.view.Query
	var parts []string
	if m.viewMode == ViewSearch {
		parts = append(parts, "Search: "+m.search.View())
	} else if q.SearchText != "" {
		parts = append(parts, fmt.Sprintf("Search: %q", q.SearchText))
	}
	for _, f := range m.view.Filters {
		if v := q.Filters[f.Key]; v != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Label, v))
		}
	}
	if q.SortField != "" {
		arrow := "↑"
		if q.SortDirection == models.SortDescending {
			arrow = "↓"
		}
		parts = append(parts, "Sort: "+q.SortField+" "+arrow)
	}
	if m.view.SearchScope == listing.ScopeCurrentPage && q.SearchText != "" {
		parts = append(parts, dimStyle.Render("(searching current page only)"))
	}
	if len(parts) == 0 {
		return dimStyle.Render("All records")
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderBody() string {
	switch m.view.State {
	case screen.StateLoading:
		return dimStyle.Render("Loading…")
	case screen.StateError:
		return errorStyle.Render("Could not load: "+m.view.Error) + "\n" + dimStyle.Render("Press R to retry.")
	case screen.StateEmpty:
		if m.view.Narrowed {
			return dimStyle.Render("No results match the current search or filters. Press x to clear.")
		}
		return dimStyle.Render("Nothing here yet. Press c to create one.")
	}
	return m.renderTable()
}

func (m Model) renderTable() string {
	var columns []table.Column
	for _, c := range m.view.Columns {
		w := c.Width
		if w == 0 {
			w = 14
		}
		columns = append(columns, table.Column{Title: c.Label, Width: w})
	}

	var rows []table.Row
	for _, item := range m.view.Items {
		row := make(table.Row, 0, len(m.view.Columns))
		for _, c := range m.view.Columns {
			row = append(row, cellText(item, c.Field))
		}
		rows = append(rows, row)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height-14, 3)),
	)
	if m.cursor < len(rows) {
		t.SetCursor(m.cursor)
	}
	return t.View()
}

// cellText renders known status tags as badges.
func cellText(item models.Item, field string) string {
	v := item.Text(field)
	if !resources.HasBadge(v) {
		return v
	}
	b := resources.BadgeFor(v)
	return b.Icon + " " + b.Label
}

func (m Model) renderPager() string {
	if m.view.PageCount <= 1 {
		return dimStyle.Render(fmt.Sprintf("%d record(s)", m.view.Total)) + "\n"
	}
	var nums []string
	for _, n := range m.view.PageNumbers {
		label := fmt.Sprint(n)
		if n == m.view.Page {
			label = tabActiveStyle.Render(label)
		}
		nums = append(nums, label)
	}
	return fmt.Sprintf("Page %d/%d  %s  %s\n", m.view.Page, m.view.PageCount,
		strings.Join(nums, " "), dimStyle.Render(fmt.Sprintf("%d record(s)", m.view.Total)))
}

func (m Model) renderNotifications() string {
	if len(m.view.Notifications) == 0 {
		return ""
	}
	var s strings.Builder
	for _, n := range m.view.Notifications {
		style := lipgloss.NewStyle().Foreground(noteColors[n.Kind])
		s.WriteString("\n" + style.Render("● "+n.Message))
	}
	return s.String() + "\n"
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Tab: Switch",
		"/: Search",
		"f/F: Filter",
		"s/S: Sort",
		"n/p: Page",
		"c: New",
		"e: Edit",
		"d: Delete",
		"x: Clear",
		"R: Reload",
		"q: Quit",
	}
	if m.schemas[m.tab].Supports(models.ActionToggleRole) {
		help = append(help[:len(help)-1], "r: Role", "P: Password", "q: Quit")
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sc := m.sc
	switch msg.String() {
	case "q":
		return m.quit()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.view.Items)-1 {
			m.cursor++
		}
	case "tab":
		return m, m.mountTab((m.tab + 1) % len(m.schemas))
	case "shift+tab":
		return m, m.mountTab((m.tab + len(m.schemas) - 1) % len(m.schemas))
	case "/":
		m.viewMode = ViewSearch
		m.search.SetValue(m.view.Query.SearchText)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case "f":
		key, value, ok := m.nextFilterValue()
		if ok {
			return m, m.run("filter", func(ctx context.Context) error { return sc.SetFilter(ctx, key, value) })
		}
	case "F":
		if len(m.view.Filters) > 0 {
			m.filterKey = (m.filterKey + 1) % len(m.view.Filters)
		}
	case "s":
		if field, ok := m.nextSortField(); ok {
			return m, m.run("sort", func(ctx context.Context) error { return sc.SetSort(ctx, field) })
		}
	case "S":
		if f := m.view.Query.SortField; f != "" {
			return m, m.run("sort", func(ctx context.Context) error { return sc.SetSort(ctx, f) })
		}
	case "n", "right":
		if m.view.Page < m.view.PageCount {
			page := m.view.Page + 1
			return m, m.run("page", func(ctx context.Context) error { return sc.SetPage(ctx, page) })
		}
	case "p", "left":
		if m.view.Page > 1 {
			page := m.view.Page - 1
			return m, m.run("page", func(ctx context.Context) error { return sc.SetPage(ctx, page) })
		}
	case "x":
		m.sortCol = -1
		return m, m.run("clear", sc.ClearFilters)
	case "R":
		return m, m.run("refresh", sc.Refresh)
	case "c":
		if err := sc.OpenCreate(); err == nil {
			m.refreshView()
			m.startForm()
			return m, m.focusField(0)
		}
	case "e", "enter":
		if id := m.selectedID(); id != "" {
			return m, m.run("edit", func(ctx context.Context) error { return sc.OpenEdit(ctx, id) })
		}
	case "d":
		return m.requestAction(models.ActionDelete)
	case "r":
		return m.requestAction(models.ActionToggleRole)
	case "P":
		return m.requestAction(models.ActionResetCredential)
	}
	return m, nil
}

func (m Model) requestAction(kind models.ActionKind) (tea.Model, tea.Cmd) {
	id := m.selectedID()
	if id == "" || !m.schemas[m.tab].Supports(kind) {
		return m, nil
	}
	if err := m.sc.RequestAction(kind, id, nil); err != nil {
		return m, nil
	}
	m.refreshView()
	m.viewMode = ViewConfirm
	if kind == models.ActionResetCredential {
		m.secret.Reset()
		return m, m.secret.Focus()
	}
	return m, nil
}

// nextFilterValue advances the active filter through its options and back
// to "all".
func (m Model) nextFilterValue() (string, string, bool) {
	if len(m.view.Filters) == 0 {
		return "", "", false
	}
	f := m.view.Filters[m.filterKey%len(m.view.Filters)]
	cur := m.view.Query.Filters[f.Key]
	choices := append([]string{""}, f.Options...)
	for i, c := range choices {
		if c == cur {
			return f.Key, choices[(i+1)%len(choices)], true
		}
	}
	return f.Key, "", true
}

// nextSortField moves to the next sortable column.
func (m *Model) nextSortField() (string, bool) {
	cols := m.view.Columns
	for step := 1; step <= len(cols); step++ {
		i := (m.sortCol + step) % len(cols)
		if cols[i].Sortable {
			m.sortCol = i
			return cols[i].Field, true
		}
	}
	return "", false
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.viewMode = ViewList
		m.search.Blur()
		text, sc := m.search.Value(), m.sc
		return m, m.run("search", func(ctx context.Context) error { return sc.SetSearchText(ctx, text) })
	case "esc":
		m.viewMode = ViewList
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}
