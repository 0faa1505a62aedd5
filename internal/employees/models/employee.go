// Package models defines the domain models exchanged with the employee API.
// It includes definitions for Employee, State, and the Gender enumeration,
// together with the lenient JSON encodings the API is known to produce.
package models

import (
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/employees/internal/employees/errors"
)

// Gender represents the gender recorded for an employee.
type Gender string

const (
	// Male represents a male employee.
	Male   Gender = "Male"
	Female Gender = "Female"
	Other  Gender = "Other"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	switch g {
	case Male, Female, Other:
		return true
	default:
		return false
	}
}

// MinimumAge is the youngest age accepted for a date of birth.
const MinimumAge = 18

// Employee defines the domain model for an employee record.
type Employee struct {
	// ID is the server-assigned identifier. Zero means the record is not persisted yet.
	ID int64 `json:"id,omitempty"`
	// Name is the employee's full name.
	Name string `json:"name"`
	// Designation is the job title, used for salary aggregation.
	Designation string `json:"designation"`
	// DateOfJoin records when the employee joined.
	DateOfJoin Date `json:"dateOfJoin"`
	// Salary is the employee's salary.
	Salary Salary `json:"salary"`
	// Gender is one of Male, Female or Other.
	Gender Gender `json:"gender"`
	// State references a State by its identifier.
	State StateRef `json:"state"`
	// DateOfBirth is the employee's birth date.
	DateOfBirth Date `json:"dateOfBirth"`
	// Age is derived from DateOfBirth and is never edited directly.
	Age int `json:"age"`
}

// State is an entry of the read-only state lookup list.
type State struct {
	// ID is the state's identifier, referenced by Employee.State.
	ID int64 `json:"id"`
	// StateName is the display name of the state.
	StateName string `json:"stateName"`
}

// Persisted reports whether the record already exists on the server,
// which selects update instead of create semantics.
func (emp Employee) Persisted() bool {
	return emp.ID != 0
}

// RecomputeAge derives Age from DateOfBirth as of now.
func (emp *Employee) RecomputeAge(now time.Time) {
	if emp.DateOfBirth.IsZero() {
		emp.Age = 0
		return
	}
	emp.Age = AgeAt(emp.DateOfBirth.Time, now)
}

// Validate checks the fields required before a record may be submitted.
func (emp Employee) Validate(now time.Time) error {
	var missing []string
	if strings.TrimSpace(emp.Name) == "" {
		missing = append(missing, "name")
	}
	if !emp.Salary.IsSet() {
		missing = append(missing, "salary")
	}
	if !emp.Gender.Valid() {
		missing = append(missing, "gender")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: required fields are missing: %s", e.ErrInvalidInput, strings.Join(missing, ", "))
	}
	if !emp.DateOfBirth.IsZero() && emp.DateOfBirth.After(LatestBirthDate(now)) {
		return fmt.Errorf("%w: employee must be at least %d years old", e.ErrInvalidInput, MinimumAge)
	}
	return nil
}

// AgeAt returns the number of full years between birth and now.
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// LatestBirthDate is the latest date of birth accepted as of now.
func LatestBirthDate(now time.Time) time.Time {
	return time.Date(now.Year()-MinimumAge, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
