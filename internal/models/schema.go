package models

import "strings"

// FieldKind tells forms and validators how to treat a field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindPassword FieldKind = "password"
	KindPhone    FieldKind = "phone"
	KindNumber   FieldKind = "number"  // whole number
	KindDecimal  FieldKind = "decimal" // prices and other fractional amounts
	KindSelect   FieldKind = "select"
	KindBool     FieldKind = "bool"
	KindDate     FieldKind = "date"
	KindTime     FieldKind = "time" // HH:MM, seconds optional
	KindImage    FieldKind = "image"
)

// FormMode says whether a form creates a new record or edits an existing one.
type FormMode string

const (
	ModeCreating FormMode = "creating"
	ModeEditing  FormMode = "editing"
)

// ActionKind enumerates the actions that go through a confirmation step.
type ActionKind string

const (
	ActionDelete          ActionKind = "delete"
	ActionResetCredential ActionKind = "reset-credential"
	ActionToggleRole      ActionKind = "toggle-role"
	ActionOther           ActionKind = "other"
)

// Field describes one editable (or derived) attribute of a resource.
type Field struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Kind       FieldKind `json:"kind"`
	Required   bool      `json:"required,omitempty"`
	CreateOnly bool      `json:"create_only,omitempty"` // required and sent only when creating
	Derived    bool      `json:"derived,omitempty"`     // computed, never directly editable
	Options    []string  `json:"options,omitempty"`
	MinLength  int       `json:"min_length,omitempty"`
	Min        *int      `json:"min,omitempty"`
	Max        *int      `json:"max,omitempty"`
	Default    string    `json:"default,omitempty"`
}

// Column is a table column.
type Column struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Sortable bool   `json:"sortable,omitempty"`
	Width    int    `json:"width,omitempty"`
}

// Filter is a filter control bound to a field with a fixed set of values.
type Filter struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Options []string `json:"options"`
}

// Rule checks a cross-field constraint and returns field -> message for violations.
type Rule func(values Item, mode FormMode) map[string]string

// Deriver recomputes derived fields in place.
type Deriver func(values Item)

// Schema is everything the generic screen needs to know about one resource family.
type Schema struct {
	Name            string       `json:"name"`     // "accounts"
	Singular        string       `json:"singular"` // "Account"
	Title           string       `json:"title"`    // "User management"
	APIPath         string       `json:"api_path"` // "/accounts"
	PrimaryKey      string       `json:"primary_key"`
	LabelFields     []string     `json:"label_fields"`
	Fields          []Field      `json:"fields"`
	Columns         []Column     `json:"columns"`
	Filters         []Filter     `json:"filters,omitempty"`
	ServerFiltering bool         `json:"server_filtering"`
	PageSize        int          `json:"page_size"`
	Actions         []ActionKind `json:"actions"`
	RoleField       string       `json:"role_field,omitempty"`
	Roles           []string     `json:"roles,omitempty"` // toggle-role cycles through these
	Rules           []Rule       `json:"-"`
	Derive          []Deriver    `json:"-"`
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Filter looks up a filter by key.
func (s *Schema) Filter(key string) (Filter, bool) {
	for _, f := range s.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return Filter{}, false
}

// Sortable reports whether a column may be sorted on.
func (s *Schema) Sortable(field string) bool {
	for _, c := range s.Columns {
		if c.Field == field {
			return c.Sortable
		}
	}
	return false
}

// Supports reports whether the resource offers an action kind.
func (s *Schema) Supports(kind ActionKind) bool {
	for _, a := range s.Actions {
		if a == kind {
			return true
		}
	}
	return false
}

// DisplayName joins the label fields of an item ("Jane Smith").
func (s *Schema) DisplayName(it Item) string {
	parts := make([]string, 0, len(s.LabelFields))
	for _, f := range s.LabelFields {
		if v := it.Text(f); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "#" + it.Key(s.PrimaryKey)
	}
	return strings.Join(parts, " ")
}

// NextRole returns the role that follows current in the Roles cycle.
func (s *Schema) NextRole(current string) string {
	if len(s.Roles) == 0 {
		return current
	}
	for i, r := range s.Roles {
		if r == current {
			return s.Roles[(i+1)%len(s.Roles)]
		}
	}
	return s.Roles[0]
}
