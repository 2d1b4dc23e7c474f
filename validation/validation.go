package validation

import (
	"net/mail"
	"strings"
	"time"
)

// DateLayout is the calendar-day format accepted for due dates.
const DateLayout = "2006-01-02"

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a violation unless the field already has one.
func (v Violations) Add(field, code string) {
	if _, ok := v[field]; !ok {
		v[field] = code
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func MaxLen(field, value string, max int, v Violations) {
	if len(value) > max {
		v.Add(field, "too_long")
	}
}

// OneOf flags value when it is not one of allowed.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Add(field, "invalid_value")
}

// Email accepts an empty value; callers combine with Required when needed.
func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.Add(field, "invalid_email")
	}
}

// Date parses a calendar day and returns it at midnight UTC.
func Date(field, value string, v Violations) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		v.Add(field, "invalid_date")
		return time.Time{}, false
	}
	return d, true
}

// Timestamp accepts RFC 3339 or a bare calendar day.
func Timestamp(field, value string, v Violations) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if d, err := time.ParseInLocation(DateLayout, value, time.UTC); err == nil {
		return d, true
	}
	v.Add(field, "invalid_timestamp")
	return time.Time{}, false
}
