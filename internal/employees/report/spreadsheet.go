package report

import (
	"fmt"
	"io"

	"github.com/gartstein/employees/internal/employees/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteSpreadsheet.
const SheetName = "Employees"

var spreadsheetHeader = []any{
	"ID", "Name", "Designation", "Date of Join", "Salary", "Gender", "State", "Date of Birth", "Age",
}

// WriteSpreadsheet writes rows as an XLSX workbook in the given order.
// stateName resolves state references to display names.
func WriteSpreadsheet(w io.Writer, rows []models.Employee, stateName func(models.StateRef) string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &spreadsheetHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var salary any
		if row.Salary.Numeric() {
			salary = float64(row.Salary)
		}
		values := []any{
			row.ID,
			row.Name,
			row.Designation,
			row.DateOfJoin.String(),
			salary,
			string(row.Gender),
			stateName(row.State),
			row.DateOfBirth.String(),
			row.Age,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
