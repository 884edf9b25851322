package reports

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// ExcelExporter is one report row.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

// ExportExcel writes headings plus one row per record into a single-sheet workbook.
func ExportExcel[T ExcelExporter](data []T, filename string, headings ...string) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for r, d := range data {
		for c, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("row %d: %w", r+1, err)
			}
		}
	}

	return f.SaveAs(filename)
}
