// Package view derives the visible page of employees from a cache snapshot
// and tracks the query and selection state that drives it.
package view

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/gartstein/employees/internal/employees/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// PageSize is the fixed number of rows per page.
const PageSize = 5

// Column names a sortable employee field.
type Column string

const (
	ColumnNone        Column = ""
	ColumnID          Column = "id"
	ColumnName        Column = "name"
	ColumnDesignation Column = "designation"
	ColumnDateOfJoin  Column = "dateOfJoin"
	ColumnSalary      Column = "salary"
	ColumnGender      Column = "gender"
	ColumnState       Column = "state"
	ColumnDateOfBirth Column = "dateOfBirth"
	ColumnAge         Column = "age"
)

var columns = []Column{
	ColumnID, ColumnName, ColumnDesignation, ColumnDateOfJoin, ColumnSalary,
	ColumnGender, ColumnState, ColumnDateOfBirth, ColumnAge,
}

// ParseColumn resolves a column name case-insensitively.
func ParseColumn(name string) (Column, error) {
	for _, c := range columns {
		if strings.EqualFold(string(c), name) {
			return c, nil
		}
	}
	return ColumnNone, fmt.Errorf("%w: unknown sort column %q", e.ErrInvalidInput, name)
}

// Numeric reports whether the column compares by numeric difference.
func (c Column) Numeric() bool {
	switch c {
	case ColumnSalary, ColumnAge, ColumnID:
		return true
	}
	return false
}

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Query is the filter, sort and pagination state applied to a snapshot.
type Query struct {
	Search    string    `json:"search"`
	Column    Column    `json:"sortColumn,omitempty"`
	Direction Direction `json:"sortDirection"`
	Page      int       `json:"page"`
}

// Page is one projected page of rows.
type Page struct {
	Rows          []models.Employee `json:"rows"`
	Index         int               `json:"page"`
	PageSize      int               `json:"pageSize"`
	TotalFiltered int               `json:"totalFiltered"`
	HasPrevious   bool              `json:"hasPrevious"`
	HasNext       bool              `json:"hasNext"`
	// Empty is set when no rows survive the filter.
	Empty bool `json:"empty"`
}

// IDs returns the ids of the rows on the page in display order.
func (p Page) IDs() []int64 {
	ids := make([]int64, 0, len(p.Rows))
	for _, row := range p.Rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// Filter keeps the rows whose name contains search, ignoring case.
// An empty search keeps every row.
func Filter(rows []models.Employee, search string) []models.Employee {
	out := make([]models.Employee, 0, len(rows))
	needle := strings.ToLower(search)
	for _, row := range rows {
		if needle == "" || strings.Contains(strings.ToLower(row.Name), needle) {
			out = append(out, row)
		}
	}
	return out
}

// Sort orders rows in place by column. ColumnNone keeps the fetch order.
// The sort is stable, so applying it twice yields the same order.
func Sort(rows []models.Employee, column Column, dir Direction, lang language.Tag) {
	if column == ColumnNone {
		return
	}
	sign := 1
	if dir == Descending {
		sign = -1
	}

	if column.Numeric() {
		slices.SortStableFunc(rows, func(a, b models.Employee) int {
			return sign * compareFloat(numericValue(a, column), numericValue(b, column))
		})
		return
	}

	// collate.Collator keeps scratch buffers and is not safe for concurrent use.
	collator := collate.New(lang, collate.IgnoreCase)
	slices.SortStableFunc(rows, func(a, b models.Employee) int {
		return sign * collator.CompareString(textValue(a, column), textValue(b, column))
	})
}

// Paginate slices out the page at index. Out-of-range indexes yield an empty page.
func Paginate(rows []models.Employee, index int) Page {
	total := len(rows)
	start := min(index*PageSize, total)
	end := min(start+PageSize, total)

	page := Page{
		Rows:          slices.Clone(rows[start:end]),
		Index:         index,
		PageSize:      PageSize,
		TotalFiltered: total,
		HasPrevious:   index > 0,
		HasNext:       (index+1)*PageSize < total,
		Empty:         total == 0,
	}
	if page.Rows == nil {
		page.Rows = []models.Employee{}
	}
	return page
}

// Project filters, sorts and paginates rows. The input slice is not modified.
func Project(rows []models.Employee, q Query, lang language.Tag) Page {
	filtered := Filter(rows, q.Search)
	Sort(filtered, q.Column, q.Direction, lang)
	return Paginate(filtered, q.Page)
}

// Ordered filters and sorts rows without paginating.
func Ordered(rows []models.Employee, q Query, lang language.Tag) []models.Employee {
	filtered := Filter(rows, q.Search)
	Sort(filtered, q.Column, q.Direction, lang)
	return filtered
}

func numericValue(emp models.Employee, column Column) float64 {
	switch column {
	case ColumnSalary:
		if !emp.Salary.Numeric() {
			return 0
		}
		return float64(emp.Salary)
	case ColumnAge:
		return float64(emp.Age)
	case ColumnID:
		return float64(emp.ID)
	}
	return 0
}

func textValue(emp models.Employee, column Column) string {
	switch column {
	case ColumnName:
		return emp.Name
	case ColumnDesignation:
		return emp.Designation
	case ColumnGender:
		return string(emp.Gender)
	case ColumnState:
		return string(emp.State)
	case ColumnDateOfJoin:
		return emp.DateOfJoin.String()
	case ColumnDateOfBirth:
		return emp.DateOfBirth.String()
	}
	return strconv.FormatInt(emp.ID, 10)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
