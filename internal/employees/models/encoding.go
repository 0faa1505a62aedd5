package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire layout used when encoding dates.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

var jsonNull = []byte("null")

// Salary is a numeric amount that the API may send as a number or as a numeric string.
// Non-numeric and infinite input decodes to NaN.
type Salary float64

// IsSet reports whether the salary holds a usable non-zero amount.
func (s Salary) IsSet() bool {
	return s.Numeric() && s != 0
}

// Numeric reports whether the salary holds a finite number, zero included.
func (s Salary) Numeric() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s *Salary) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*s = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = ParseSalary(raw)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("salary: %w", err)
	}
	*s = Salary(f)
	return nil
}

func (s Salary) MarshalJSON() ([]byte, error) {
	if !s.Numeric() {
		return jsonNull, nil
	}
	return strconv.AppendFloat(nil, float64(s), 'f', -1, 64), nil
}

// ParseSalary converts form input into a Salary. Blank input is zero.
func ParseSalary(raw string) Salary {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return Salary(math.NaN())
	}
	return Salary(f)
}

// Date is a calendar date without a time of day. The zero value means unset.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses any of the layouts the API is known to emit.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognised date %q", raw)
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return jsonNull, nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// String returns the date in DateLayout, or an empty string when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// StateRef references a State identifier. The API sends it either as a number or a string.
type StateRef string

func (r *StateRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*r = StateRef(strings.TrimSpace(raw))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	*r = StateRef(n.String())
	return nil
}

func (r StateRef) MarshalJSON() ([]byte, error) {
	if r == "" {
		return jsonNull, nil
	}
	if id, ok := r.ID(); ok {
		return strconv.AppendInt(nil, id, 10), nil
	}
	return json.Marshal(string(r))
}

// ID returns the numeric state identifier, if the reference is numeric.
func (r StateRef) ID() (int64, bool) {
	id, err := strconv.ParseInt(string(r), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
