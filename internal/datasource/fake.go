package datasource

import (
	"context"
	"strings"
	"sync"

	"github.com/rflorenc/facility-workbench/internal/models"
)

// Call records one invocation on a Fake.
type Call struct {
	Method string
	ID     string
	Query  models.QueryState
	Fields models.Item
	Action string
	Body   map[string]interface{}
}

// Fake is an in-memory Source used by tests and the offline demo. It behaves
// like a backend with server-side search and filtering.
type Fake struct {
	PrimaryKey string

	// Injected failures; nil means succeed.
	ListErr   error
	CreateErr error
	UpdateErr error
	RemoveErr error
	ActionErr error

	// BeforeList runs before each List; tests use it to stall responses.
	BeforeList func(ctx context.Context, q models.QueryState) error

	mu     sync.Mutex
	items  []models.Item
	nextID int
	calls  []Call
}

// NewFake creates a Fake seeded with items.
func NewFake(primaryKey string, items ...models.Item) *Fake {
	f := &Fake{PrimaryKey: primaryKey}
	for _, it := range items {
		f.items = append(f.items, it.Clone())
		if n := it.Int(primaryKey); n > f.nextID {
			f.nextID = n
		}
	}
	return f
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Calls returns a copy of all recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts calls of one method ("list", "create", ...).
func (f *Fake) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Items returns a copy of the stored records.
func (f *Fake) Items() []models.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Item, len(f.items))
	for i, it := range f.items {
		out[i] = it.Clone()
	}
	return out
}

func (f *Fake) indexOf(id string) int {
	for i, it := range f.items {
		if it.Key(f.PrimaryKey) == id {
			return i
		}
	}
	return -1
}

func (f *Fake) List(ctx context.Context, q models.QueryState) (models.Page, error) {
	f.record(Call{Method: "list", Query: q.Clone()})
	if f.BeforeList != nil {
		if err := f.BeforeList(ctx, q); err != nil {
			return models.Page{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return models.Page{}, err
	}
	if f.ListErr != nil {
		return models.Page{}, f.ListErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Item
	for _, it := range f.items {
		if fakeMatches(it, q) {
			matched = append(matched, it.Clone())
		}
	}
	size := q.PageSize
	if size < 1 {
		size = models.DefaultPageSize
	}
	pageCount := (len(matched) + size - 1) / size
	if pageCount < 1 {
		pageCount = 1
	}
	start := (q.Page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return models.Page{
		Items:      append([]models.Item{}, matched[start:end]...),
		TotalCount: len(matched),
		Page:       q.Page,
		PageCount:  pageCount,
	}, nil
}

func fakeMatches(it models.Item, q models.QueryState) bool {
	for k, v := range q.Filters {
		if it.Text(k) != v {
			return false
		}
	}
	if q.SearchText == "" {
		return true
	}
	needle := strings.ToLower(q.SearchText)
	for k := range it {
		if strings.Contains(strings.ToLower(it.Text(k)), needle) {
			return true
		}
	}
	return false
}

func (f *Fake) Get(ctx context.Context, id string) (models.Item, error) {
	f.record(Call{Method: "get", ID: id})
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return nil, &NotFoundError{Path: "/" + id}
	}
	return f.items[i].Clone(), nil
}

func (f *Fake) Create(ctx context.Context, fields models.Item, uploads []Upload) (models.Item, error) {
	f.record(Call{Method: "create", Fields: fields.Clone()})
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it := fields.Clone()
	f.nextID++
	it[f.PrimaryKey] = float64(f.nextID)
	for _, up := range uploads {
		it[up.Field] = "/storage/" + up.Filename
	}
	f.items = append(f.items, it)
	return it.Clone(), nil
}

func (f *Fake) Update(ctx context.Context, id string, fields models.Item, uploads []Upload) (models.Item, error) {
	f.record(Call{Method: "update", ID: id, Fields: fields.Clone()})
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return nil, &NotFoundError{Path: "/" + id}
	}
	for k, v := range fields {
		f.items[i][k] = v
	}
	for _, up := range uploads {
		f.items[i][up.Field] = "/storage/" + up.Filename
	}
	return f.items[i].Clone(), nil
}

func (f *Fake) Remove(ctx context.Context, id string) error {
	f.record(Call{Method: "remove", ID: id})
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return &NotFoundError{Path: "/" + id}
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return nil
}

func (f *Fake) Action(ctx context.Context, id, name string, body map[string]interface{}) (models.Item, error) {
	f.record(Call{Method: "action", ID: id, Action: name, Body: body})
	if f.ActionErr != nil {
		return nil, f.ActionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return nil, &NotFoundError{Path: "/" + id + "/" + name}
	}
	switch name {
	case "role", "status":
		f.items[i][name] = body[name]
		return f.items[i].Clone(), nil
	}
	return nil, nil
}
