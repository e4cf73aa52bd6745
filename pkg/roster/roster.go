// Package roster reads student roster files (CSV or XLSX) into rows ready for import.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column names accepted in the header row, matched case-insensitively.
const (
	ColumnExternalNumber = "external_number"
	ColumnLastName       = "last_name"
	ColumnFirstName      = "first_name"
	ColumnMiddleName     = "middle_name"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported roster format")
	ErrEmptyFile         = errors.New("roster file is empty")
	ErrMissingColumns    = errors.New("roster header is missing required columns")
	ErrTooManyRows       = errors.New("roster exceeds the row limit")
)

var requiredColumns = []string{ColumnExternalNumber, ColumnLastName, ColumnFirstName}

// Row is one parsed roster entry. Line is the 1-based data row, header excluded.
type Row struct {
	Line           int
	ExternalNumber string
	LastName       string
	FirstName      string
	MiddleName     string
}

// RowError reports a rejected row.
type RowError struct {
	Line   int
	Reason string
}

// Result holds accepted rows and per-row rejections.
type Result struct {
	Rows   []Row
	Errors []RowError
}

// Parse dispatches on the file extension. maxRows <= 0 disables the row limit.
func Parse(filename string, r io.Reader, maxRows int) (*Result, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	return parseRecords(records, maxRows)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv roster: %w", err)
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx roster: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx roster: %w", err)
	}
	return rows, nil
}

func parseRecords(records [][]string, maxRows int) (*Result, error) {
	headerIdx := -1
	for i, rec := range records {
		if !blank(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptyFile
	}

	columns := make(map[string]int)
	for i, name := range records[headerIdx] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := columns[key]; !seen {
			columns[key] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	result := &Result{Rows: []Row{}, Errors: []RowError{}}
	seen := make(map[string]int)
	line := 0
	for _, rec := range records[headerIdx+1:] {
		line++
		if blank(rec) {
			continue
		}
		if maxRows > 0 && len(result.Rows)+len(result.Errors) >= maxRows {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyRows, maxRows)
		}

		row := Row{
			Line:           line,
			ExternalNumber: cell(rec, columns, ColumnExternalNumber),
			LastName:       cell(rec, columns, ColumnLastName),
			FirstName:      cell(rec, columns, ColumnFirstName),
			MiddleName:     cell(rec, columns, ColumnMiddleName),
		}
		if reason := validate(row); reason != "" {
			result.Errors = append(result.Errors, RowError{Line: line, Reason: reason})
			continue
		}
		if first, dup := seen[row.ExternalNumber]; dup {
			result.Errors = append(result.Errors, RowError{Line: line, Reason: fmt.Sprintf("duplicate external_number %s (first seen on row %d)", row.ExternalNumber, first)})
			continue
		}
		seen[row.ExternalNumber] = line
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func validate(row Row) string {
	var missing []string
	if row.ExternalNumber == "" {
		missing = append(missing, ColumnExternalNumber)
	}
	if row.LastName == "" {
		missing = append(missing, ColumnLastName)
	}
	if row.FirstName == "" {
		missing = append(missing, ColumnFirstName)
	}
	if len(missing) > 0 {
		return "missing " + strings.Join(missing, ", ")
	}
	return ""
}

func cell(rec []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
