package sheet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

var columnWidths = []float64{50, 40, 10, 12, 10, 12, 12, 40, 15, 30}

var sampleRow = []any{
	"A beautiful sunset over the ocean with golden light",
	"",
	"video",
	"3:2",
	"10s",
	"720p",
	1,
	"",
	"Pending",
	"",
}

// CreateTemplate writes a starter workbook with a styled header row and one
// sample task.
func CreateTemplate(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Style: 1},
			{Type: "right", Style: 1},
			{Type: "top", Style: 1},
			{Type: "bottom", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range Columns {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cellName, header); err != nil {
			return fmt.Errorf("write header %s: %w", header, err)
		}
		if err := f.SetCellStyle(SheetName, cellName, cellName, headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", header, err)
		}
	}

	for i, width := range columnWidths {
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, colName, colName, width); err != nil {
			return fmt.Errorf("set column width %s: %w", colName, err)
		}
	}

	for i, value := range sampleRow {
		cellName, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cellName, value); err != nil {
			return fmt.Errorf("write sample row: %w", err)
		}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create template directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save template %s: %w", path, err)
	}
	return nil
}
