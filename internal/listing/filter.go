package listing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rflorenc/facility-workbench/internal/models"
)

// Apply filters and sorts items on the client. It only ever sees the page
// that was fetched.
func Apply(schema *models.Schema, items []models.Item, q models.QueryState) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		if Match(schema, it, q) {
			out = append(out, it)
		}
	}
	if q.SortField != "" {
		SortItems(out, q.SortField, q.SortDirection)
	}
	return out
}

// Match reports whether an item satisfies the filters and search text.
// Search is a case-insensitive substring match over label fields and columns.
func Match(schema *models.Schema, it models.Item, q models.QueryState) bool {
	for k, v := range q.Filters {
		if !strings.EqualFold(it.Text(k), v) {
			return false
		}
	}
	needle := strings.ToLower(strings.TrimSpace(q.SearchText))
	if needle == "" {
		return true
	}
	for _, f := range searchFields(schema) {
		if strings.Contains(strings.ToLower(it.Text(f)), needle) {
			return true
		}
	}
	// "Jane Smith" should match across first and last name.
	return strings.Contains(strings.ToLower(schema.DisplayName(it)), needle)
}

func searchFields(schema *models.Schema) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, f := range schema.LabelFields {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	for _, c := range schema.Columns {
		if !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	}
	return fields
}

// SortItems sorts in place and is stable. Values that both parse as numbers
// compare numerically, everything else case-insensitively.
func SortItems(items []models.Item, field string, dir models.SortDirection) {
	sort.SliceStable(items, func(i, j int) bool {
		c := compare(items[i].Text(field), items[j].Text(field))
		if dir == models.SortDescending {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// PageNumbers returns at most 5 page numbers centered on the current page.
func PageNumbers(page, pageCount int) []int {
	const maxButtons = 5
	if pageCount < 1 {
		pageCount = 1
	}
	start := page - maxButtons/2
	if start < 1 {
		start = 1
	}
	end := start + maxButtons - 1
	if end > pageCount {
		end = pageCount
		start = end - maxButtons + 1
		if start < 1 {
			start = 1
		}
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
