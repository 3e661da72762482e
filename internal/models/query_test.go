package models

import (
	"testing"
)

func TestNewQueryState_Defaults(t *testing.T) {
	q := NewQueryState(0)
	if q.Page != 1 {
		t.Errorf("Page = %d, want 1", q.Page)
	}
	if q.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", q.PageSize, DefaultPageSize)
	}
	if q.SortDirection != SortAscending {
		t.Errorf("SortDirection = %q, want asc", q.SortDirection)
	}
	if q.IsNarrowed() {
		t.Error("default query should not be narrowed")
	}
}

func TestQueryState_CloneIsDeep(t *testing.T) {
	q := NewQueryState(10)
	q.Filters["role"] = "admin"
	c := q.Clone()
	c.Filters["role"] = "user"
	if q.Filters["role"] != "admin" {
		t.Error("Clone shares the Filters map")
	}
}

func TestQueryState_Values(t *testing.T) {
	q := NewQueryState(10)
	q.Page = 2
	q.SearchText = "smith"
	q.Filters["role"] = "admin"
	q.SortField = "last_name"
	q.SortDirection = SortDescending

	full := q.Values()
	checks := map[string]string{
		"page":         "2",
		"per_page":     "10",
		"search":       "smith",
		"filter[role]": "admin",
		"sort_by":      "last_name",
		"sort_order":   "desc",
	}
	for k, want := range checks {
		if got := full.Get(k); got != want {
			t.Errorf("Values()[%s] = %q, want %q", k, got, want)
		}
	}

	paging := q.PagingOnly().Values()
	if paging.Get("search") != "" || paging.Get("filter[role]") != "" || paging.Get("sort_by") != "" {
		t.Errorf("PagingOnly().Values() leaked filters: %v", paging)
	}
	if paging.Get("page") != "2" || paging.Get("per_page") != "10" {
		t.Errorf("PagingOnly().Values() = %v, want page=2 per_page=10", paging)
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		name   string
		input  interface{}
		expect int
	}{
		{"float64", float64(42), 42},
		{"int", 7, 7},
		{"string", "12", 12},
		{"padded string", " 3 ", 3},
		{"nil", nil, 0},
		{"not a number", "abc", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToInt(tc.input); got != tc.expect {
				t.Errorf("ToInt(%v) = %d, want %d", tc.input, got, tc.expect)
			}
		})
	}
}

func TestSchema_DisplayNameAndNextRole(t *testing.T) {
	s := &Schema{
		PrimaryKey:  "id",
		LabelFields: []string{"first_name", "last_name"},
		Roles:       []string{"user", "admin"},
	}
	if got := s.DisplayName(Item{"id": float64(4), "first_name": "Jane", "last_name": "Smith"}); got != "Jane Smith" {
		t.Errorf("DisplayName = %q, want Jane Smith", got)
	}
	if got := s.DisplayName(Item{"id": float64(4)}); got != "#4" {
		t.Errorf("DisplayName(no labels) = %q, want #4", got)
	}
	if got := s.NextRole("user"); got != "admin" {
		t.Errorf("NextRole(user) = %q, want admin", got)
	}
	if got := s.NextRole("admin"); got != "user" {
		t.Errorf("NextRole(admin) = %q, want user", got)
	}
	if got := s.NextRole("coach"); got != "user" {
		t.Errorf("NextRole(unknown) = %q, want first role", got)
	}
}
