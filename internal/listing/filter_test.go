package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rflorenc/facility-workbench/internal/models"
)

func TestMatch(t *testing.T) {
	s := accountSchema(false)
	it := models.Item{"first_name": "Jane", "last_name": "Smith", "email": "jane@club.test", "role": "admin"}
	tests := []struct {
		name    string
		search  string
		filters map[string]string
		want    bool
	}{
		{"empty query", "", nil, true},
		{"label substring", "smi", nil, true},
		{"case insensitive", "JANE", nil, true},
		{"across label fields", "jane smith", nil, true},
		{"column field", "club.test", nil, true},
		{"no match", "doe", nil, false},
		{"filter match", "", map[string]string{"role": "Admin"}, true},
		{"filter mismatch", "", map[string]string{"role": "user"}, false},
		{"search and filter", "jane", map[string]string{"role": "user"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := models.NewQueryState(10)
			q.SearchText = tc.search
			for k, v := range tc.filters {
				q.Filters[k] = v
			}
			assert.Equal(t, tc.want, Match(s, it, q))
		})
	}
}

func TestSortItems_NumericAndText(t *testing.T) {
	items := []models.Item{
		{"price": float64(10), "name": "b"},
		{"price": float64(9), "name": "C"},
		{"price": float64(100), "name": "a"},
	}
	SortItems(items, "price", models.SortAscending)
	assert.Equal(t, []string{"9", "10", "100"}, []string{items[0].Text("price"), items[1].Text("price"), items[2].Text("price")})

	SortItems(items, "name", models.SortDescending)
	assert.Equal(t, []string{"C", "b", "a"}, []string{items[0].Text("name"), items[1].Text("name"), items[2].Text("name")})
}

func TestPageNumbers(t *testing.T) {
	tests := []struct {
		page, count int
		want        []int
	}{
		{1, 1, []int{1}},
		{1, 3, []int{1, 2, 3}},
		{1, 10, []int{1, 2, 3, 4, 5}},
		{5, 10, []int{3, 4, 5, 6, 7}},
		{10, 10, []int{6, 7, 8, 9, 10}},
		{1, 0, []int{1}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PageNumbers(tc.page, tc.count), "page %d of %d", tc.page, tc.count)
	}
}
