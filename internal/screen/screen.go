// Package screen composes the list, form, confirmation and notification
// pieces into one resource management screen.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rflorenc/facility-workbench/internal/confirm"
	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/form"
	"github.com/rflorenc/facility-workbench/internal/listing"
	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/notify"
)

var (
	// ErrModalOpen is returned when opening a form while a confirmation is
	// pending, or the other way round.
	ErrModalOpen = errors.New("another dialog is already open")
	ErrClosed    = errors.New("screen is closed")
	ErrNoTarget  = errors.New("item is not on the current page")
)

// View states.
const (
	StateLoading = "loading"
	StateError   = "error"
	StateEmpty   = "empty"
	StateReady   = "ready"
)

// Options tune a screen.
type Options struct {
	PageSize int
	StageDir string
}

// Screen is one mounted resource manager.
type Screen struct {
	id     string
	schema *models.Schema
	source datasource.Source
	notes  *notify.Center

	list    *listing.Controller
	form    *form.Controller
	confirm *confirm.Action

	life   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex // serializes modal transitions
	closed   bool
	lastUsed time.Time
}

// New builds a screen. Nothing is fetched until Mount.
func New(schema *models.Schema, source datasource.Source, notes *notify.Center, opts Options) *Screen {
	life, cancel := context.WithCancel(context.Background())
	s := &Screen{
		schema:   schema,
		source:   source,
		notes:    notes,
		list:     listing.NewController(schema, source, opts.PageSize),
		form:     form.NewController(schema, source, opts.StageDir),
		confirm:  confirm.New(notes),
		life:     life,
		cancel:   cancel,
		lastUsed: time.Now(),
	}
	s.registerHandlers()
	return s
}

// ID returns the id assigned by the Store.
func (s *Screen) ID() string { return s.id }

// Schema returns the resource schema.
func (s *Screen) Schema() *models.Schema { return s.schema }

func (s *Screen) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Screen) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// scope ties ctx to the screen lifetime so Close aborts it.
func (s *Screen) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (s *Screen) live() error {
	if s.life.Err() != nil {
		return ErrClosed
	}
	s.touch()
	return nil
}

// Mount issues the initial fetch with the default query.
func (s *Screen) Mount(ctx context.Context) error {
	slog.Info("screen_event", "event", "mounted", "screen", s.id, "resource", s.schema.Name)
	return s.Refresh(ctx)
}

// Refresh re-fetches the current page. A superseded fetch is not an error.
func (s *Screen) Refresh(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	c, done := s.scope(ctx)
	defer done()
	err := s.list.Refresh(c)
	switch {
	case err == nil, errors.Is(err, listing.ErrStale):
		return nil
	case errors.Is(err, context.Canceled):
		return err
	}
	s.notes.Error(datasource.UserMessage(err, fmt.Sprintf("Could not load %s.", strings.ToLower(s.title()))))
	return err
}

func (s *Screen) title() string {
	if s.schema.Title != "" {
		return s.schema.Title
	}
	return s.schema.Name
}

func (s *Screen) singular() string {
	if s.schema.Singular != "" {
		return s.schema.Singular
	}
	return s.schema.Name
}

// changed refreshes after a query mutation. Client-side lists only refetch
// when the page moved; sorting and filtering the loaded page is local.
func (s *Screen) changed(ctx context.Context, pageBefore int) error {
	if s.schema.ServerFiltering || s.list.Query().Page != pageBefore {
		return s.Refresh(ctx)
	}
	return nil
}

// SetSearchText binds the search input.
func (s *Screen) SetSearchText(ctx context.Context, text string) error {
	if err := s.live(); err != nil {
		return err
	}
	before := s.list.Query().Page
	s.list.SetSearchText(text)
	return s.changed(ctx, before)
}

// SetFilter binds a filter control. An empty value clears that filter.
func (s *Screen) SetFilter(ctx context.Context, key, value string) error {
	if err := s.live(); err != nil {
		return err
	}
	before := s.list.Query().Page
	if err := s.list.SetFilter(key, value); err != nil {
		return err
	}
	return s.changed(ctx, before)
}

// ClearFilters is the empty state's one-click reset.
func (s *Screen) ClearFilters(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	before := s.list.Query().Page
	s.list.ClearFilters()
	return s.changed(ctx, before)
}

// SetSort binds a sortable column header.
func (s *Screen) SetSort(ctx context.Context, field string) error {
	if err := s.live(); err != nil {
		return err
	}
	before := s.list.Query().Page
	if err := s.list.SetSort(field); err != nil {
		return err
	}
	return s.changed(ctx, before)
}

// SetPage moves to a page and fetches it.
func (s *Screen) SetPage(ctx context.Context, page int) error {
	if err := s.live(); err != nil {
		return err
	}
	s.list.SetPage(page)
	return s.Refresh(ctx)
}

// OpenCreate opens the form in creating mode.
func (s *Screen) OpenCreate() error {
	if err := s.live(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm.Pending() != nil {
		return ErrModalOpen
	}
	return s.form.Open(models.ModeCreating, nil)
}

// OpenEdit opens the form pre-filled with an item. Items not on the loaded
// page are fetched.
func (s *Screen) OpenEdit(ctx context.Context, id string) error {
	if err := s.live(); err != nil {
		return err
	}
	item, ok := s.list.Find(id)
	if !ok {
		c, done := s.scope(ctx)
		defer done()
		got, err := s.source.Get(c, id)
		if err != nil {
			if datasource.IsNotFound(err) {
				s.notes.Info("That record no longer exists.")
				s.list.RemoveItem(id)
			} else {
				s.notes.Error(datasource.UserMessage(err, ""))
			}
			return err
		}
		item = got
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm.Pending() != nil {
		return ErrModalOpen
	}
	return s.form.Open(models.ModeEditing, item)
}

// SetField binds one form input.
func (s *Screen) SetField(name string, value interface{}) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.form.SetField(name, value)
}

// Form exposes the form controller for image staging.
func (s *Screen) Form() *form.Controller { return s.form }

// Submit validates and saves the form. Local validation errors are returned
// inline; server failures are also notified. On success the row is patched
// in place and a success notification lists what changed.
func (s *Screen) Submit(ctx context.Context) (models.Item, map[string]string, error) {
	if err := s.live(); err != nil {
		return nil, nil, err
	}
	st := s.form.Snapshot()
	if st == nil {
		return nil, nil, form.ErrNotOpen
	}
	changes := s.form.Changes()

	c, done := s.scope(ctx)
	defer done()
	item, errs, err := s.form.Submit(c)
	if err != nil {
		switch {
		case errors.Is(err, form.ErrInvalid), errors.Is(err, form.ErrNotOpen), errors.Is(err, form.ErrSubmitting):
		case errors.Is(err, context.Canceled):
		default:
			s.notes.Error(datasource.UserMessage(err, fmt.Sprintf("Could not save %s.", s.singular())))
		}
		return nil, errs, err
	}

	s.list.Upsert(item)
	name := s.schema.DisplayName(item)
	if st.Mode == models.ModeCreating {
		s.notes.Success(fmt.Sprintf("%s %s created.", capitalize(s.singular()), name))
	} else {
		s.notes.Success(fmt.Sprintf("%s %s updated%s.", capitalize(s.singular()), name, describeChanges(s.schema, changes)))
	}
	return item, nil, nil
}

// CloseForm discards the open form.
func (s *Screen) CloseForm() {
	s.form.Close()
}

// RequestAction asks for confirmation of a row action.
func (s *Screen) RequestAction(kind models.ActionKind, id string, payload map[string]interface{}) error {
	if err := s.live(); err != nil {
		return err
	}
	if !s.schema.Supports(kind) {
		return fmt.Errorf("%w: %s", confirm.ErrUnsupported, kind)
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	if kind == models.ActionToggleRole {
		item, ok := s.list.Find(id)
		if !ok {
			return ErrNoTarget
		}
		payload["from"] = item.Text(s.schema.RoleField)
		payload["role"] = s.schema.NextRole(item.Text(s.schema.RoleField))
	}
	if item, ok := s.list.Find(id); ok {
		payload["label"] = s.schema.DisplayName(item)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.form.IsOpen() {
		return ErrModalOpen
	}
	return s.confirm.Request(kind, id, payload)
}

// SetConfirmationValue updates the pending confirmation's payload.
func (s *Screen) SetConfirmationValue(key string, value interface{}) error {
	return s.confirm.SetPayload(key, value)
}

// Confirm executes the pending action. Success and a missing target both
// patch the row and refresh the list.
func (s *Screen) Confirm(ctx context.Context) (confirm.Outcome, error) {
	if err := s.live(); err != nil {
		return confirm.Outcome{}, err
	}
	c, done := s.scope(ctx)
	defer done()
	out, err := s.confirm.Confirm(c)
	if err != nil {
		return out, err
	}
	switch {
	case out.Gone, out.Kind == models.ActionDelete:
		s.list.RemoveItem(out.TargetID)
	case out.Item != nil:
		s.list.Upsert(out.Item)
	}
	if rerr := s.Refresh(ctx); rerr != nil {
		slog.Warn("screen_event", "event", "refresh_after_action_failed", "screen", s.id, "error", rerr)
	}
	return out, nil
}

// CancelConfirmation dismisses the pending confirmation.
func (s *Screen) CancelConfirmation() bool {
	return s.confirm.Cancel()
}

// Close tears the screen down: in-flight requests are cancelled and form
// state, staged files included, is released.
func (s *Screen) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.list.Cancel()
	s.form.Close()
	s.confirm.Cancel()
	slog.Info("screen_event", "event", "closed", "screen", s.id, "resource", s.schema.Name)
}

// View is the full render state of a screen.
type View struct {
	ID            string                      `json:"id"`
	Resource      string                      `json:"resource"`
	Title         string                      `json:"title"`
	State         string                      `json:"state"`
	Error         string                      `json:"error,omitempty"`
	Items         []models.Item               `json:"items"`
	Columns       []models.Column             `json:"columns"`
	Filters       []models.Filter             `json:"filters"`
	Actions       []models.ActionKind         `json:"actions"`
	Query         models.QueryState           `json:"query"`
	Page          int                         `json:"page"`
	PageCount     int                         `json:"page_count"`
	PageNumbers   []int                       `json:"page_numbers"`
	Total         int                         `json:"total"`
	SearchScope   string                      `json:"search_scope"`
	Narrowed      bool                        `json:"narrowed"`
	Form          *form.State                 `json:"form"`
	Confirmation  *models.PendingConfirmation `json:"confirmation"`
	Notifications []models.Notification       `json:"notifications"`
}

// View snapshots the screen.
func (s *Screen) View() View {
	lv := s.list.View()
	v := View{
		ID:            s.id,
		Resource:      s.schema.Name,
		Title:         s.title(),
		Error:         lv.Error,
		Items:         lv.Items,
		Columns:       s.schema.Columns,
		Filters:       s.schema.Filters,
		Actions:       s.schema.Actions,
		Query:         lv.Query,
		Page:          lv.Page,
		PageCount:     lv.PageCount,
		PageNumbers:   lv.PageNumbers,
		Total:         lv.TotalCount,
		SearchScope:   lv.SearchScope,
		Narrowed:      lv.Narrowed,
		Form:          s.form.Snapshot(),
		Confirmation:  s.confirm.Pending(),
		Notifications: s.notes.List(),
	}
	switch {
	case lv.State == listing.StateFailed:
		v.State = StateError
	case lv.Empty():
		v.State = StateEmpty
	case lv.State == listing.StateReady:
		v.State = StateReady
	default:
		v.State = StateLoading
	}
	return v
}

func describeChanges(schema *models.Schema, changes map[string]interface{}) string {
	if len(changes) == 0 {
		return ""
	}
	keys := make([]string, 0, len(changes))
	for k := range changes {
		if f, ok := schema.Field(k); ok && f.Derived {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		label := k
		if f, ok := schema.Field(k); ok && f.Label != "" {
			label = strings.ToLower(f.Label)
		}
		parts = append(parts, label+" → "+models.Item{"v": changes[k]}.Text("v"))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
