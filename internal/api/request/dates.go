package request

import (
	"fmt"
	"time"

	"github.com/edvin/metering/internal/model"
)

// ParseDate parses a YYYY-MM-DD value as midnight UTC.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(model.ISODate, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q is not a valid date, expected YYYY-MM-DD", field, value)
	}
	return t.UTC(), nil
}

// ParseDateTime parses a YYYY-MM-DDTHH:MM:SS value as UTC.
func ParseDateTime(field, value string) (time.Time, error) {
	t, err := time.Parse(model.ISOTime, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q is not a valid timestamp, expected YYYY-MM-DDTHH:MM:SS", field, value)
	}
	return t.UTC(), nil
}

// ParseDateOrTime accepts either a date or a timestamp.
func ParseDateOrTime(field, value string) (time.Time, error) {
	if t, err := time.Parse(model.ISOTime, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(model.ISODate, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%s %q is not a valid date, expected YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS", field, value)
}
