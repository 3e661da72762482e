// Package listing owns the query state of a resource list and derives the
// visible slice from the last fetched page.
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/models"
)

// State is the fetch state of the list.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Search scopes reported to the UI.
const (
	ScopeServer      = "server"
	ScopeCurrentPage = "current_page"
)

var (
	// ErrStale is returned by Refresh when a newer request superseded it.
	ErrStale = errors.New("superseded by a newer request")
	// ErrNotSortable is returned by SetSort for columns that cannot be sorted.
	ErrNotSortable = errors.New("column is not sortable")
	// ErrUnknownFilter is returned by SetFilter for keys the schema does not declare.
	ErrUnknownFilter = errors.New("unknown filter")
)

// Lister is the part of datasource.Source the controller needs.
type Lister interface {
	List(ctx context.Context, q models.QueryState) (models.Page, error)
}

// Controller owns QueryState and the last fetched page. Only its own
// methods write the item list.
type Controller struct {
	schema *models.Schema
	source Lister

	mu     sync.Mutex
	query  models.QueryState
	page   models.Page
	state  State
	err    error
	seq    uint64
	cancel context.CancelFunc
}

// NewController creates a controller with the default query (page 1, no filters).
func NewController(schema *models.Schema, source Lister, pageSize int) *Controller {
	if pageSize < 1 {
		pageSize = schema.PageSize
	}
	return &Controller{
		schema: schema,
		source: source,
		query:  models.NewQueryState(pageSize),
		state:  StateIdle,
	}
}

// Query returns a copy of the current query.
func (c *Controller) Query() models.QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query.Clone()
}

// SetSearchText sets the search text and returns to the first page.
func (c *Controller) SetSearchText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query.SearchText = text
	c.query.Page = 1
}

// SetFilter sets (or, with an empty value, clears) one filter and returns to
// the first page.
func (c *Controller) SetFilter(key, value string) error {
	if len(c.schema.Filters) > 0 {
		if _, ok := c.schema.Filter(key); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFilter, key)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == "" {
		delete(c.query.Filters, key)
	} else {
		c.query.Filters[key] = value
	}
	c.query.Page = 1
	return nil
}

// ClearFilters drops search text and all filters.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query.SearchText = ""
	c.query.Filters = make(map[string]string)
	c.query.Page = 1
}

// SetSort sorts by field. Repeating the same field flips the direction.
func (c *Controller) SetSort(field string) error {
	if !c.schema.Sortable(field) {
		return fmt.Errorf("%w: %s", ErrNotSortable, field)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.query.SortField == field {
		if c.query.SortDirection == models.SortAscending {
			c.query.SortDirection = models.SortDescending
		} else {
			c.query.SortDirection = models.SortAscending
		}
	} else {
		c.query.SortField = field
		c.query.SortDirection = models.SortAscending
	}
	c.query.Page = 1
	return nil
}

// SetPage moves to a page; values below 1 select the first page.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.query.Page = page
}

// SearchScope reports whether search covers the backend or only the loaded page.
func (c *Controller) SearchScope() string {
	if c.schema.ServerFiltering {
		return ScopeServer
	}
	return ScopeCurrentPage
}

func (c *Controller) fetchQuery() models.QueryState {
	if c.schema.ServerFiltering {
		return c.query.Clone()
	}
	return c.query.PagingOnly()
}

// Refresh fetches the current page. Each call cancels the request it
// supersedes; a response that arrives after a newer request was issued is
// dropped and ErrStale is returned.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	q := c.fetchQuery()
	c.state = StateLoading
	c.err = nil
	c.mu.Unlock()

	page, err := c.source.List(fctx, q)

	// Deleting the last row of the last page leaves an empty out-of-range page.
	if err == nil && len(page.Items) == 0 && q.Page > 1 && page.PageCount >= 1 && q.Page > page.PageCount {
		q.Page = page.PageCount
		page, err = c.source.List(fctx, q)
		if err == nil {
			c.mu.Lock()
			if seq == c.seq {
				c.query.Page = q.Page
			}
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		slog.Debug("list_event", "event", "stale_response_dropped", "resource", c.schema.Name, "seq", seq)
		return ErrStale
	}
	cancel()
	c.cancel = nil
	if err != nil {
		c.state = StateFailed
		c.err = err
		slog.Warn("list_event", "event", "fetch_failed", "resource", c.schema.Name, "error", err)
		return err
	}
	c.page = page
	c.state = StateReady
	return nil
}

// Cancel aborts the in-flight request, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.state == StateLoading {
		c.state = StateIdle
	}
}

// Upsert patches one item into the loaded page: replaced in place when the
// key is present, otherwise prepended.
func (c *Controller) Upsert(item models.Item) {
	key := item.Key(c.schema.PrimaryKey)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.page.Items {
		if it.Key(c.schema.PrimaryKey) == key {
			c.page.Items[i] = item.Clone()
			return
		}
	}
	c.page.Items = append([]models.Item{item.Clone()}, c.page.Items...)
	c.page.TotalCount++
}

// RemoveItem drops one item from the loaded page.
func (c *Controller) RemoveItem(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.page.Items {
		if it.Key(c.schema.PrimaryKey) == id {
			c.page.Items = append(c.page.Items[:i], c.page.Items[i+1:]...)
			if c.page.TotalCount > 0 {
				c.page.TotalCount--
			}
			return true
		}
	}
	return false
}

// Find returns a loaded item by key.
func (c *Controller) Find(id string) (models.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.page.Items {
		if it.Key(c.schema.PrimaryKey) == id {
			return it.Clone(), true
		}
	}
	return nil, false
}

// View is a render-ready snapshot of the list.
type View struct {
	State       State             `json:"state"`
	Error       string            `json:"error,omitempty"`
	Items       []models.Item     `json:"items"`
	Query       models.QueryState `json:"query"`
	Page        int               `json:"page"`
	PageCount   int               `json:"page_count"`
	PageNumbers []int             `json:"page_numbers"`
	TotalCount  int               `json:"total_count"`
	SearchScope string            `json:"search_scope"`
	Narrowed    bool              `json:"narrowed"`
}

// Empty reports a successful fetch with nothing to show.
func (v View) Empty() bool {
	return v.State == StateReady && len(v.Items) == 0
}

// View derives the visible slice. While loading no items are returned so
// stale rows are never shown under a spinner.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:       c.state,
		Query:       c.query.Clone(),
		Page:        c.query.Page,
		PageCount:   c.page.PageCount,
		TotalCount:  c.page.TotalCount,
		SearchScope: c.SearchScope(),
		Narrowed:    c.query.IsNarrowed(),
		Items:       []models.Item{},
	}
	if v.PageCount < 1 {
		v.PageCount = 1
	}
	v.PageNumbers = PageNumbers(v.Page, v.PageCount)
	switch c.state {
	case StateFailed:
		v.Error = datasource.UserMessage(c.err, "")
		return v
	case StateReady:
	default:
		return v
	}

	items := c.page.Items
	if !c.schema.ServerFiltering {
		items = Apply(c.schema, items, c.query)
	}
	for _, it := range items {
		v.Items = append(v.Items, it.Clone())
	}
	return v
}
