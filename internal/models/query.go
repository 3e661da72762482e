package models

import (
	"net/url"
	"sort"
	"strconv"
)

// SortDirection is "asc" or "desc".
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// DefaultPageSize is used when neither the schema nor config sets one.
const DefaultPageSize = 20

// QueryState is the search/filter/sort/pagination state of one list.
type QueryState struct {
	SearchText    string            `json:"search_text"`
	Filters       map[string]string `json:"filters"`
	SortField     string            `json:"sort_field,omitempty"`
	SortDirection SortDirection     `json:"sort_direction"`
	Page          int               `json:"page"`
	PageSize      int               `json:"page_size"`
}

// NewQueryState returns the default query: first page, no filters.
func NewQueryState(pageSize int) QueryState {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return QueryState{
		Filters:       make(map[string]string),
		SortDirection: SortAscending,
		Page:          1,
		PageSize:      pageSize,
	}
}

// Clone returns a deep copy.
func (q QueryState) Clone() QueryState {
	out := q
	out.Filters = make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		out.Filters[k] = v
	}
	return out
}

// IsNarrowed reports whether search text or any filter is active.
func (q QueryState) IsNarrowed() bool {
	return q.SearchText != "" || len(q.Filters) > 0
}

// PagingOnly strips search, filters and sort, keeping the page window.
func (q QueryState) PagingOnly() QueryState {
	return QueryState{
		Filters:       map[string]string{},
		SortDirection: SortAscending,
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
}

// Values encodes the query for GET /resource.
func (q QueryState) Values() url.Values {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if q.PageSize > 0 {
		v.Set("per_page", strconv.Itoa(q.PageSize))
	}
	if q.SearchText != "" {
		v.Set("search", q.SearchText)
	}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set("filter["+k+"]", q.Filters[k])
	}
	if q.SortField != "" {
		v.Set("sort_by", q.SortField)
		dir := q.SortDirection
		if dir == "" {
			dir = SortAscending
		}
		v.Set("sort_order", string(dir))
	}
	return v
}
