package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Attendance"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter builds an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Exporter.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Exporter.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes the title (if any), header row, data rows and notes.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	line := 1
	if data.Title != "" {
		if err := f.SetCellValue(sheetName, "A1", data.Title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		line = 3
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := writeRow(f, line, data.Headers); err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(1, line)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), line)
	if err := f.SetCellStyle(sheetName, first, last, bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	line++

	for _, values := range data.Rows {
		if err := writeRow(f, line, row(data, values)); err != nil {
			return nil, err
		}
		line++
	}

	if len(data.Notes) > 0 {
		line++
		for _, note := range data.Notes {
			cell, _ := excelize.CoordinatesToCellName(1, line)
			if err := f.SetCellValue(sheetName, cell, note); err != nil {
				return nil, fmt.Errorf("write note: %w", err)
			}
			line++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, line int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return fmt.Errorf("resolve cell: %w", err)
	}
	record := make([]interface{}, len(values))
	for i, v := range values {
		record[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &record); err != nil {
		return fmt.Errorf("write row %d: %w", line, err)
	}
	return nil
}
