package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Item is a single backend record (account, player, terrain, ...).
// Field names follow the backend's JSON.
type Item map[string]interface{}

// Text returns a field rendered as a string, or "" when absent.
func (it Item) Text(field string) string {
	switch v := it[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns a numeric field as an int. Strings holding integers are
// accepted because form inputs arrive as text.
func (it Item) Int(field string) int {
	return ToInt(it[field])
}

// Key returns the primary key value rendered as a string.
func (it Item) Key(primaryKey string) string {
	return it.Text(primaryKey)
}

// Clone returns a shallow copy.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// ToInt converts the numeric shapes JSON decoding and form input produce to int.
func ToInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

// Page is one normalized page of a list response.
type Page struct {
	Items      []Item `json:"items"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageCount  int    `json:"page_count"`
}
