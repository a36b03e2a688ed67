package spreadsheet_test

import (
	"errors"
	"testing"

	"github.com/namaznow/timings-import/internal/spreadsheet"
	"github.com/namaznow/timings-import/internal/spreadsheet/spreadsheettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParse_HeaderKeyedRows(t *testing.T) {
	data := spreadsheettest.Workbook(t, spreadsheettest.TimingsHeader,
		spreadsheettest.TimingsRow(1, 1, "05:00", "06:00", "12:00", "12:30", "16:00", "18:30", "20:00"),
		spreadsheettest.TimingsRow(2, 1, "05:01", "06:01", "12:01", "12:31", "16:01", "18:31", "20:01"),
	)

	rows, err := spreadsheet.Parse(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, int64(1), first["Date"])
	assert.Equal(t, int64(1), first["Month"])
	assert.Equal(t, "05:00", first["Fajr/SehriEND"])
	assert.Equal(t, "06:00", first["Tulu' START"])
	assert.Equal(t, "20:00", first["Isha"])

	assert.Equal(t, int64(2), rows[1]["Date"])
	assert.Equal(t, "20:01", rows[1]["Isha"])
}

func TestParse_NativeCellTypes(t *testing.T) {
	data := spreadsheettest.Workbook(t, []string{"Int", "Float", "Text", "NumericText"},
		[]any{100, 200.5, "hello", "007"},
	)

	rows, err := spreadsheet.Parse(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, int64(100), rows[0]["Int"])
	assert.Equal(t, 200.5, rows[0]["Float"])
	assert.Equal(t, "hello", rows[0]["Text"])
	assert.Equal(t, "007", rows[0]["NumericText"], "text cells stay text even when they look numeric")
}

func TestParse_StyledNumbersStayNumeric(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	require.NoError(t, err)
	twoDecimals, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	require.NoError(t, err)
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 9}) // 0%
	require.NoError(t, err)
	clock := "hh:mm"
	timeOfDay, err := f.NewStyle(&excelize.Style{CustomNumFmt: &clock})
	require.NoError(t, err)

	header := []any{"Count", "Amount", "Share", "Fajr/SehriEND", "Date"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	values := []any{1234, 3, 0.5, 5.0 / 24, 5}
	require.NoError(t, f.SetSheetRow(sheet, "A2", &values))
	require.NoError(t, f.SetCellStyle(sheet, "A2", "A2", thousands))
	require.NoError(t, f.SetCellStyle(sheet, "B2", "B2", twoDecimals))
	require.NoError(t, f.SetCellStyle(sheet, "C2", "C2", percent))
	require.NoError(t, f.SetCellStyle(sheet, "D2", "D2", timeOfDay))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := spreadsheet.Parse(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, int64(1234), rows[0]["Count"], "a thousands separator must not turn the number into text")
	assert.Equal(t, int64(3), rows[0]["Amount"])
	assert.Equal(t, 0.5, rows[0]["Share"])
	assert.Equal(t, "05:00", rows[0]["Fajr/SehriEND"], "time-formatted cells keep their displayed text")
	assert.Equal(t, int64(5), rows[0]["Date"])
}

func TestParse_BooleanCells(t *testing.T) {
	data := spreadsheettest.Workbook(t, []string{"Flag", "Other"},
		[]any{true, false},
	)

	rows, err := spreadsheet.Parse(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, true, rows[0]["Flag"])
	assert.Equal(t, false, rows[0]["Other"])
}

func TestParse_EmptyCellsAndBlankRows(t *testing.T) {
	data := spreadsheettest.Workbook(t, []string{"Date", "Month", "Asr"},
		[]any{5, 7, nil},
		[]any{nil, nil, nil},
		[]any{6, 7, "16:00"},
	)

	rows, err := spreadsheet.Parse(data)
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank rows are skipped")

	_, hasAsr := rows[0]["Asr"]
	assert.False(t, hasAsr, "empty cells are absent from the row")
	assert.Equal(t, "16:00", rows[1]["Asr"])
}

func TestParse_HeaderOnly(t *testing.T) {
	data := spreadsheettest.Workbook(t, spreadsheettest.TimingsHeader)

	rows, err := spreadsheet.Parse(data)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParse_DuplicateAndBlankHeaders(t *testing.T) {
	data := spreadsheettest.Workbook(t, []string{"Asr", "", "Asr", "", "Asr"},
		[]any{"a", "b", "c", "d", "e"},
	)

	rows, err := spreadsheet.Parse(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, spreadsheet.Row{
		"Asr":       "a",
		"__EMPTY":   "b",
		"Asr_1":     "c",
		"__EMPTY_1": "d",
		"Asr_2":     "e",
	}, rows[0])
}

func TestParse_HeaderWhitespaceIsKept(t *testing.T) {
	data := spreadsheettest.Workbook(t, []string{"ZawaalSTART "},
		[]any{"12:00"},
	)

	rows, err := spreadsheet.Parse(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "12:00", rows[0]["ZawaalSTART "])
}

func TestParse_DecodeError(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"plain text", []byte("Date,Month\n1,1\n")},
		{"empty", nil},
		{"truncated zip", []byte("PK\x03\x04garbage")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := spreadsheet.ParseNamed("timings.xlsx", tc.data)
			require.Error(t, err)
			assert.Nil(t, rows)

			var decodeErr *spreadsheet.DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, "timings.xlsx", decodeErr.Source)
			assert.ErrorIs(t, err, spreadsheet.ErrUnrecognizedFormat)
			assert.Contains(t, err.Error(), `"timings.xlsx"`)
		})
	}
}
