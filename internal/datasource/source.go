package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rflorenc/facility-workbench/internal/models"
)

// Source is the CRUD boundary for one resource family. Implementations hold
// no mutable state of their own.
type Source interface {
	List(ctx context.Context, q models.QueryState) (models.Page, error)
	Get(ctx context.Context, id string) (models.Item, error)
	Create(ctx context.Context, fields models.Item, uploads []Upload) (models.Item, error)
	Update(ctx context.Context, id string, fields models.Item, uploads []Upload) (models.Item, error)
	Remove(ctx context.Context, id string) error
	// Action calls a resource-specific endpoint: POST {path}/{id}/{name}.
	// The returned item is nil when the backend only acknowledges.
	Action(ctx context.Context, id, name string, body map[string]interface{}) (models.Item, error)
}

// REST is the Source for a conventional REST resource at one API path.
type REST struct {
	client *Client
	path   string
}

// NewREST creates a Source rooted at path (e.g. "/accounts").
func NewREST(client *Client, path string) *REST {
	return &REST{client: client, path: "/" + strings.Trim(path, "/")}
}

func (r *REST) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List fetches one page. q.Page must be >= 1.
func (r *REST) List(ctx context.Context, q models.QueryState) (models.Page, error) {
	if q.Page < 1 {
		return models.Page{}, fmt.Errorf("list %s: page must be >= 1, got %d", r.path, q.Page)
	}
	body, err := r.client.Get(ctx, r.path, q.Values())
	if err != nil {
		return models.Page{}, err
	}
	page, err := ParsePage(body, q)
	if err != nil {
		return models.Page{}, fmt.Errorf("list %s: %w", r.path, err)
	}
	return page, nil
}

// Get fetches one record.
func (r *REST) Get(ctx context.Context, id string) (models.Item, error) {
	body, err := r.client.Get(ctx, r.itemPath(id), nil)
	if err != nil {
		return nil, err
	}
	return parseItem(body)
}

// Create posts a new record; multipart when uploads are staged.
func (r *REST) Create(ctx context.Context, fields models.Item, uploads []Upload) (models.Item, error) {
	return r.send(ctx, http.MethodPost, r.path, fields, uploads)
}

// Update replaces (or patches) a record.
func (r *REST) Update(ctx context.Context, id string, fields models.Item, uploads []Upload) (models.Item, error) {
	return r.send(ctx, http.MethodPut, r.itemPath(id), fields, uploads)
}

func (r *REST) send(ctx context.Context, method, path string, fields models.Item, uploads []Upload) (models.Item, error) {
	var (
		body []byte
		err  error
	)
	switch {
	case len(uploads) > 0:
		body, _, err = r.client.SendMultipart(ctx, method, path, fields, uploads)
	case method == http.MethodPut:
		body, _, err = r.client.Put(ctx, path, fields)
	default:
		body, _, err = r.client.Post(ctx, path, fields)
	}
	if err != nil {
		return nil, err
	}
	item, err := parseItem(body)
	if err != nil {
		return nil, err
	}
	// Some endpoints answer with an acknowledgement only; echo the payload back.
	if item == nil {
		item = fields.Clone()
	}
	return item, nil
}

// Remove deletes a record. A repeated delete yields *NotFoundError.
func (r *REST) Remove(ctx context.Context, id string) error {
	return r.client.Delete(ctx, r.itemPath(id))
}

// Action calls POST {path}/{id}/{name}.
func (r *REST) Action(ctx context.Context, id, name string, body map[string]interface{}) (models.Item, error) {
	resp, _, err := r.client.Post(ctx, r.itemPath(id)+"/"+strings.Trim(name, "/"), body)
	if err != nil {
		return nil, err
	}
	return parseItem(resp)
}

// ParsePage normalizes the list envelopes seen across backends:
//
//	{"data": [...], "meta": {"current_page", "last_page", "total"}}
//	{"items": [...], "pagination": {"page", "page_count", "total_count"}}
//	{"results": [...], "count": n}
//	[...]
func ParsePage(body []byte, q models.QueryState) (models.Page, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []models.Item
		if err := json.Unmarshal(body, &items); err != nil {
			return models.Page{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return models.Page{Items: nonNil(items), TotalCount: len(items), Page: 1, PageCount: 1}, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Page{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var items []models.Item
	found := false
	for _, key := range []string{"data", "items", "results"} {
		raw, ok := env[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return models.Page{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, key, err)
		}
		found = true
		break
	}
	if !found {
		return models.Page{}, fmt.Errorf("%w: no data, items or results array", ErrMalformedResponse)
	}

	meta := map[string]json.RawMessage{}
	for _, key := range []string{"meta", "pagination"} {
		if raw, ok := env[key]; ok {
			if err := json.Unmarshal(raw, &meta); err != nil {
				return models.Page{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, key, err)
			}
			break
		}
	}
	// Flat envelopes keep the counters next to the items.
	for k, v := range env {
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}

	page := models.Page{Items: nonNil(items)}
	page.Page = metaInt(meta, "current_page", "page")
	page.PageCount = metaInt(meta, "last_page", "page_count", "total_pages", "pages")
	page.TotalCount = metaInt(meta, "total", "total_count", "count")
	perPage := metaInt(meta, "per_page", "page_size")

	if page.Page < 1 {
		page.Page = q.Page
		if page.Page < 1 {
			page.Page = 1
		}
	}
	if page.TotalCount == 0 && len(page.Items) > 0 && page.PageCount <= 1 {
		page.TotalCount = len(page.Items)
	}
	if page.PageCount < 1 {
		if perPage < 1 {
			perPage = q.PageSize
		}
		page.PageCount = 1
		if perPage > 0 && page.TotalCount > 0 {
			page.PageCount = (page.TotalCount + perPage - 1) / perPage
		}
	}
	return page, nil
}

func metaInt(meta map[string]json.RawMessage, keys ...string) int {
	for _, k := range keys {
		raw, ok := meta[k]
		if !ok {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if n := models.ToInt(v); n > 0 {
			return n
		}
	}
	return 0
}

// parseItem unwraps {"data": {...}} or a bare object. Acknowledgements
// without an object (or empty bodies) return nil, nil.
func parseItem(body []byte) (models.Item, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var obj models.Item
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if inner, ok := obj["data"].(map[string]interface{}); ok {
		return models.Item(inner), nil
	}
	if _, ok := obj["data"]; ok {
		return nil, nil
	}
	if isAcknowledgement(obj) {
		return nil, nil
	}
	return obj, nil
}

func isAcknowledgement(obj models.Item) bool {
	for k := range obj {
		switch k {
		case "success", "message", "status", "ok":
		default:
			return false
		}
	}
	return true
}

func nonNil(items []models.Item) []models.Item {
	if items == nil {
		return []models.Item{}
	}
	return items
}
