// Package spreadsheettest builds in-memory workbooks for tests.
package spreadsheettest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// TimingsHeader is the header row of a typical timings upload.
var TimingsHeader = []string{
	"Date",
	"Month",
	"Fajr/SehriEND",
	"Tulu' START",
	"ZawaalSTART",
	"Dhuhur/ZawaalEND",
	"Asr",
	"Maghrib/GhurubEND/Iftaar",
	"Isha",
}

// Workbook writes header and rows into the first sheet and returns the xlsx bytes.
// Nil cells are left empty.
func Workbook(t testing.TB, header []string, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for col, label := range header {
		setCell(t, f, sheet, col+1, 1, label)
	}
	for r, row := range rows {
		for col, value := range row {
			if value == nil {
				continue
			}
			setCell(t, f, sheet, col+1, r+2, value)
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err, "Failed to serialize workbook")
	return buf.Bytes()
}

// TimingsRow builds a row in TimingsHeader order.
func TimingsRow(date, month any, fajr, sunrise, zawaal, dhuhr, asr, maghrib, isha string) []any {
	return []any{date, month, fajr, sunrise, zawaal, dhuhr, asr, maghrib, isha}
}

func setCell(t testing.TB, f *excelize.File, sheet string, col, row int, value any) {
	t.Helper()
	cell, err := excelize.CoordinatesToCellName(col, row)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, cell, value))
}
