package resources

import (
	"math"
	"strconv"
	"strings"

	"github.com/rflorenc/facility-workbench/internal/form"
	"github.com/rflorenc/facility-workbench/internal/models"
)

func intPtr(n int) *int { return &n }

// Accounts is the user management screen.
func Accounts() *models.Schema {
	return &models.Schema{
		Name:        "accounts",
		Singular:    "account",
		Title:       "Users",
		APIPath:     "/users",
		PrimaryKey:  "id",
		LabelFields: []string{"first_name", "last_name"},
		Fields: []models.Field{
			{Name: "first_name", Label: "First name", Kind: models.KindText, Required: true},
			{Name: "last_name", Label: "Last name", Kind: models.KindText, Required: true},
			{Name: "email", Label: "Email", Kind: models.KindEmail, Required: true},
			{Name: "phone", Label: "Phone", Kind: models.KindPhone, Required: true},
			{Name: "role", Label: "Role", Kind: models.KindSelect, Required: true, Options: []string{"user", "admin"}, Default: "user"},
			{Name: "password", Label: "Password", Kind: models.KindPassword, Required: true, CreateOnly: true, MinLength: 8},
		},
		Columns: []models.Column{
			{Field: "first_name", Label: "First name", Sortable: true, Width: 14},
			{Field: "last_name", Label: "Last name", Sortable: true, Width: 14},
			{Field: "email", Label: "Email", Sortable: true, Width: 26},
			{Field: "phone", Label: "Phone", Width: 16},
			{Field: "role", Label: "Role", Sortable: true, Width: 8},
		},
		Filters:         []models.Filter{{Key: "role", Label: "Role", Options: []string{"user", "admin"}}},
		ServerFiltering: true,
		PageSize:        10,
		Actions:         []models.ActionKind{models.ActionDelete, models.ActionResetCredential, models.ActionToggleRole},
		RoleField:       "role",
		Roles:           []string{"user", "admin"},
	}
}

// Reservations lists terrain bookings awaiting moderation.
func Reservations() *models.Schema {
	return &models.Schema{
		Name:        "reservations",
		Singular:    "reservation",
		Title:       "Reservations",
		APIPath:     "/reservations",
		PrimaryKey:  "id",
		LabelFields: []string{"customer_name"},
		Fields: []models.Field{
			{Name: "customer_name", Label: "Customer", Kind: models.KindText, Required: true},
			{Name: "customer_phone", Label: "Phone", Kind: models.KindPhone, Required: true},
			{Name: "terrain_id", Label: "Terrain", Kind: models.KindNumber, Required: true, Min: intPtr(1)},
			{Name: "date", Label: "Date", Kind: models.KindDate, Required: true},
			{Name: "start_time", Label: "Start", Kind: models.KindTime, Required: true},
			{Name: "end_time", Label: "End", Kind: models.KindTime, Required: true},
			{Name: "status", Label: "Status", Kind: models.KindSelect, Options: []string{"pending", "confirmed", "cancelled"}, Default: "pending"},
		},
		Columns: []models.Column{
			{Field: "customer_name", Label: "Customer", Sortable: true, Width: 20},
			{Field: "terrain_id", Label: "Terrain", Sortable: true, Width: 8},
			{Field: "date", Label: "Date", Sortable: true, Width: 12},
			{Field: "start_time", Label: "Start", Width: 7},
			{Field: "end_time", Label: "End", Width: 7},
			{Field: "status", Label: "Status", Sortable: true, Width: 10},
		},
		Filters:  []models.Filter{{Key: "status", Label: "Status", Options: []string{"pending", "confirmed", "cancelled"}}},
		PageSize: 10,
		Actions:  []models.ActionKind{models.ActionDelete, models.ActionOther},
		Rules:    []models.Rule{timeSlotRule},
	}
}

// Players are academy members; invites are tracked per player.
func Players() *models.Schema {
	return &models.Schema{
		Name:        "players",
		Singular:    "player",
		Title:       "Players",
		APIPath:     "/players",
		PrimaryKey:  "id",
		LabelFields: []string{"first_name", "last_name"},
		Fields: append([]models.Field{
			{Name: "first_name", Label: "First name", Kind: models.KindText, Required: true},
			{Name: "last_name", Label: "Last name", Kind: models.KindText, Required: true},
			{Name: "email", Label: "Email", Kind: models.KindEmail},
			{Name: "phone", Label: "Phone", Kind: models.KindPhone},
			{Name: "position", Label: "Position", Kind: models.KindSelect, Options: []string{"goalkeeper", "defender", "midfielder", "forward"}},
			{Name: "birth_date", Label: "Birth date", Kind: models.KindDate},
			{Name: "photo", Label: "Photo", Kind: models.KindImage},
		}, inviteFields()...),
		Columns: []models.Column{
			{Field: "first_name", Label: "First name", Sortable: true, Width: 14},
			{Field: "last_name", Label: "Last name", Sortable: true, Width: 14},
			{Field: "position", Label: "Position", Sortable: true, Width: 11},
			{Field: "total_invites", Label: "Invites", Sortable: true, Width: 8},
			{Field: "invites_accepted", Label: "Accepted", Width: 9},
			{Field: "invites_refused", Label: "Refused", Width: 8},
		},
		Filters:  []models.Filter{{Key: "position", Label: "Position", Options: []string{"goalkeeper", "defender", "midfielder", "forward"}}},
		PageSize: 12,
		Actions:  []models.ActionKind{models.ActionDelete},
		Derive:   []models.Deriver{DeriveInvites},
	}
}

// Teams are tournament teams.
func Teams() *models.Schema {
	return &models.Schema{
		Name:        "teams",
		Singular:    "team",
		Title:       "Teams",
		APIPath:     "/teams",
		PrimaryKey:  "id",
		LabelFields: []string{"name"},
		Fields: append([]models.Field{
			{Name: "name", Label: "Name", Kind: models.KindText, Required: true},
			{Name: "captain", Label: "Captain", Kind: models.KindText, Required: true},
			{Name: "captain_phone", Label: "Captain phone", Kind: models.KindPhone},
			{Name: "category", Label: "Category", Kind: models.KindSelect, Options: []string{"u13", "u15", "u17", "senior"}},
			{Name: "logo", Label: "Logo", Kind: models.KindImage},
		}, inviteFields()...),
		Columns: []models.Column{
			{Field: "name", Label: "Name", Sortable: true, Width: 18},
			{Field: "captain", Label: "Captain", Sortable: true, Width: 18},
			{Field: "category", Label: "Category", Sortable: true, Width: 9},
			{Field: "total_invites", Label: "Invites", Sortable: true, Width: 8},
			{Field: "invites_accepted", Label: "Accepted", Width: 9},
		},
		Filters:  []models.Filter{{Key: "category", Label: "Category", Options: []string{"u13", "u15", "u17", "senior"}}},
		PageSize: 12,
		Actions:  []models.ActionKind{models.ActionDelete},
		Derive:   []models.Deriver{DeriveInvites},
	}
}

// Terrains are the bookable pitches and courts.
func Terrains() *models.Schema {
	return &models.Schema{
		Name:        "terrains",
		Singular:    "terrain",
		Title:       "Terrains",
		APIPath:     "/terrains",
		PrimaryKey:  "id",
		LabelFields: []string{"name"},
		Fields: []models.Field{
			{Name: "name", Label: "Name", Kind: models.KindText, Required: true},
			{Name: "type", Label: "Type", Kind: models.KindSelect, Required: true, Options: []string{"football", "padel", "tennis", "basketball"}},
			{Name: "capacity", Label: "Capacity", Kind: models.KindNumber, Required: true, Min: intPtr(1), Max: intPtr(50)},
			{Name: "price_per_hour", Label: "Price / hour", Kind: models.KindDecimal, Required: true, Min: intPtr(0)},
			{Name: "status", Label: "Status", Kind: models.KindSelect, Options: []string{"available", "maintenance"}, Default: "available"},
			{Name: "image", Label: "Image", Kind: models.KindImage},
		},
		Columns: []models.Column{
			{Field: "name", Label: "Name", Sortable: true, Width: 18},
			{Field: "type", Label: "Type", Sortable: true, Width: 11},
			{Field: "capacity", Label: "Capacity", Sortable: true, Width: 9},
			{Field: "price_per_hour", Label: "Price/h", Sortable: true, Width: 8},
			{Field: "status", Label: "Status", Width: 12},
		},
		Filters:         []models.Filter{{Key: "type", Label: "Type", Options: []string{"football", "padel", "tennis", "basketball"}}},
		ServerFiltering: true,
		PageSize:        9,
		Actions:         []models.ActionKind{models.ActionDelete, models.ActionOther},
	}
}

// Settings are site-wide key/value pairs.
func Settings() *models.Schema {
	return &models.Schema{
		Name:        "settings",
		Singular:    "setting",
		Title:       "Settings",
		APIPath:     "/settings",
		PrimaryKey:  "id",
		LabelFields: []string{"key"},
		Fields: []models.Field{
			{Name: "key", Label: "Key", Kind: models.KindText, Required: true},
			{Name: "value", Label: "Value", Kind: models.KindText, Required: true},
			{Name: "description", Label: "Description", Kind: models.KindText},
		},
		Columns: []models.Column{
			{Field: "key", Label: "Key", Sortable: true, Width: 20},
			{Field: "value", Label: "Value", Width: 30},
			{Field: "description", Label: "Description", Width: 30},
		},
		PageSize: 20,
		Actions:  []models.ActionKind{models.ActionDelete},
	}
}

func inviteFields() []models.Field {
	return []models.Field{
		{Name: "total_invites", Label: "Total invites", Kind: models.KindNumber, Min: intPtr(0)},
		{Name: "misses", Label: "Misses", Kind: models.KindNumber, Min: intPtr(0)},
		{Name: "invites_accepted", Label: "Accepted", Kind: models.KindNumber, Derived: true},
		{Name: "invites_refused", Label: "Refused", Kind: models.KindNumber, Derived: true},
	}
}

// DeriveInvites clamps misses to total_invites and recomputes the accepted
// and refused counters so that accepted + refused == total_invites. Input
// that is not a non-negative whole number is left untouched for validation
// to report.
func DeriveInvites(v models.Item) {
	total, ok := wholeNumber(v["total_invites"])
	if !ok || total < 0 {
		total = 0
	}
	misses, ok := wholeNumber(v["misses"])
	switch {
	case !ok || misses < 0:
		misses = 0
	case misses > total:
		misses = total
		v["misses"] = misses
	}
	v["invites_accepted"] = total - misses
	v["invites_refused"] = misses
}

// wholeNumber reads an integer from JSON or form input. Anything else,
// including fractions and blanks, reports false.
func wholeNumber(x interface{}) (int, bool) {
	switch n := x.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// timeSlotRule rejects a reservation ending before it starts. Malformed
// times are left to the field check.
func timeSlotRule(v models.Item, _ models.FormMode) map[string]string {
	start, ok1 := form.ClockMinutes(v.Text("start_time"))
	end, ok2 := form.ClockMinutes(v.Text("end_time"))
	if !ok1 || !ok2 {
		return nil
	}
	if end <= start {
		return map[string]string{"end_time": "End must be after start"}
	}
	return nil
}
