package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rflorenc/facility-workbench/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`)
)

// Validate runs every field rule and every schema rule and returns all
// violations keyed by field name. Derived fields are never checked.
func Validate(schema *models.Schema, values models.Item, mode models.FormMode) map[string]string {
	errs := make(map[string]string)
	for _, f := range schema.Fields {
		if f.Derived {
			continue
		}
		if msg := checkField(f, values, mode); msg != "" {
			errs[f.Name] = msg
		}
	}
	for _, rule := range schema.Rules {
		for field, msg := range rule(values, mode) {
			if _, taken := errs[field]; !taken {
				errs[field] = msg
			}
		}
	}
	return errs
}

func checkField(f models.Field, values models.Item, mode models.FormMode) string {
	label := f.Label
	if label == "" {
		label = f.Name
	}
	v := strings.TrimSpace(values.Text(f.Name))
	if v == "" {
		if f.Required && (!f.CreateOnly || mode == models.ModeCreating) {
			return label + " is required"
		}
		return ""
	}

	switch f.Kind {
	case models.KindEmail:
		if !emailPattern.MatchString(v) {
			return label + " must be a valid email address"
		}
	case models.KindPhone:
		if !phonePattern.MatchString(v) {
			return label + " must be a valid phone number"
		}
	case models.KindNumber:
		n, err := strconv.Atoi(v)
		if err != nil {
			return label + " must be a whole number"
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("%s must be at least %d", label, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("%s must be at most %d", label, *f.Max)
		}
	case models.KindDecimal:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return label + " must be a number"
		}
		if f.Min != nil && n < float64(*f.Min) {
			return fmt.Sprintf("%s must be at least %d", label, *f.Min)
		}
		if f.Max != nil && n > float64(*f.Max) {
			return fmt.Sprintf("%s must be at most %d", label, *f.Max)
		}
	case models.KindTime:
		if _, ok := ClockMinutes(v); !ok {
			return label + " must be a time (HH:MM)"
		}
	case models.KindSelect:
		if len(f.Options) > 0 && !contains(f.Options, v) {
			return label + " must be one of: " + strings.Join(f.Options, ", ")
		}
	case models.KindDate:
		if !isDate(v) {
			return label + " must be a date (YYYY-MM-DD)"
		}
	case models.KindBool:
		if _, err := strconv.ParseBool(v); err != nil {
			return label + " must be true or false"
		}
	}
	if f.MinLength > 0 && utf8.RuneCountInString(v) < f.MinLength {
		return fmt.Sprintf("%s must be at least %d characters", label, f.MinLength)
	}
	return ""
}

// ClockMinutes parses HH:MM or HH:MM:SS, as time columns come back from the
// backend, into minutes since midnight. Seconds are ignored.
func ClockMinutes(v string) (int, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}

// isDate accepts a plain date or a full timestamp, which some backends
// return for date columns.
func isDate(v string) bool {
	if _, err := time.Parse("2006-01-02", v); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, v)
	return err == nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
