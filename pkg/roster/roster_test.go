package roster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	body := "External_Number,last_name,first_name,middle_name\n" +
		"2024-001,Doe,Jane,Marie\n" +
		"\n" +
		"2024-002,Cruz,Ana,\n" +
		",Reyes,Ben,\n" +
		"2024-001,Dup,Row,\n"

	res, err := Parse("roster.CSV", strings.NewReader(body), 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, Row{Line: 1, ExternalNumber: "2024-001", LastName: "Doe", FirstName: "Jane", MiddleName: "Marie"}, res.Rows[0])
	assert.Equal(t, 2, res.Rows[1].Line)
	assert.Equal(t, "", res.Rows[1].MiddleName)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, RowError{Line: 3, Reason: "missing external_number"}, res.Errors[0])
	assert.Equal(t, 4, res.Errors[1].Line)
	assert.Contains(t, res.Errors[1].Reason, "duplicate external_number 2024-001")
}

func TestParseCSVColumnOrderAndOptionalMiddleName(t *testing.T) {
	body := "first_name,external_number,last_name\nJane,1,Doe\n"
	res, err := Parse("r.csv", strings.NewReader(body), 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Jane", res.Rows[0].FirstName)
	assert.Equal(t, "1", res.Rows[0].ExternalNumber)
}

func TestParseRejectsMissingColumns(t *testing.T) {
	_, err := Parse("r.csv", strings.NewReader("external_number,first_name\n1,Jane\n"), 0)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "last_name")
}

func TestParseRejectsEmptyAndUnknownFormats(t *testing.T) {
	_, err := Parse("r.csv", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse("r.txt", strings.NewReader("x"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseEnforcesRowLimit(t *testing.T) {
	body := "external_number,last_name,first_name\n1,A,B\n2,C,D\n3,E,F\n"
	_, err := Parse("r.csv", strings.NewReader(body), 2)
	assert.ErrorIs(t, err, ErrTooManyRows)

	res, err := Parse("r.csv", strings.NewReader(body), 3)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"external_number", "last_name", "first_name", "middle_name"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"2024-010", "Lim", "Carla", ""}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2024-011", "", "Dan", ""}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := Parse("roster.xlsx", bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Carla", res.Rows[0].FirstName)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "missing last_name", res.Errors[0].Reason)
}
