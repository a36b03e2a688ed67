// Package spreadsheet decodes uploaded workbooks into header-keyed rows.
package spreadsheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// emptyHeader is the label given to columns whose header cell is blank.
const emptyHeader = "__EMPTY"

// Row maps a header label to the cell value in that column.
// Values are int64 or float64 for numeric cells and string for text.
// Empty cells are absent.
type Row map[string]any

// Parse decodes the first sheet of the workbook in data.
func Parse(data []byte) ([]Row, error) {
	return ParseNamed("", data)
}

// ParseNamed is Parse with a source name carried into any DecodeError.
func ParseNamed(source string, data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, newDecodeError(source, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, newDecodeError(source, ErrNoSheets)
	}
	sheet := sheets[0]

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, newDecodeError(source, fmt.Errorf("read sheet %q: %w", sheet, err))
	}
	if len(grid) == 0 {
		return []Row{}, nil
	}

	width := 0
	for _, cells := range grid {
		if len(cells) > width {
			width = len(cells)
		}
	}
	labels := headerLabels(grid[0], width)

	rows := make([]Row, 0, len(grid)-1)
	for rowIdx := 1; rowIdx < len(grid); rowIdx++ {
		row := Row{}
		for colIdx, text := range grid[rowIdx] {
			if text == "" {
				continue
			}
			row[labels[colIdx]] = typedValue(f, sheet, colIdx+1, rowIdx+1, text)
		}
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// headerLabels names every column. Blank headers become __EMPTY and repeated
// labels get _1, _2, ... suffixes in column order.
func headerLabels(header []string, width int) []string {
	labels := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		base := ""
		if i < len(header) {
			base = header[i]
		}
		if base == "" {
			base = emptyHeader
		}

		label := base
		if n, ok := seen[base]; ok {
			label = fmt.Sprintf("%s_%d", base, n)
			seen[base] = n + 1
		} else {
			seen[base] = 1
		}
		labels[i] = label
	}
	return labels
}

// typedValue types a cell from what it stores. Text cells stay strings, numeric
// cells become int64 or float64 from the stored number regardless of their number
// format, and booleans become bool. Cells formatted as a date or time are the one
// exception: they keep the text Excel displays (05:00 rather than 0.2083...).
func typedValue(f *excelize.File, sheet string, col, row int, text string) any {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return parseValue(text)
	}

	cellType, err := f.GetCellType(sheet, cell)
	if err != nil {
		return parseValue(text)
	}
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return text
	case excelize.CellTypeBool:
		raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
		if err == nil {
			return raw == "1" || strings.EqualFold(raw, "true")
		}
		return text
	}

	if isDateTimeCell(f, sheet, cell) {
		return text
	}

	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil || raw == "" {
		return parseValue(text)
	}
	return parseValue(raw)
}

// parseValue returns int64 for integers, float64 for decimals, or the original string.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// builtInDateTimeFormats are the built-in number format ids that render dates or times
var builtInDateTimeFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	45: true, 46: true, 47: true,
}

// isDateTimeCell reports whether the cell's number format renders a date or time
func isDateTimeCell(f *excelize.File, sheet, cell string) bool {
	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateTimePattern(*style.CustomNumFmt)
	}
	return builtInDateTimeFormats[style.NumFmt]
}

// isDateTimePattern reports whether a format code contains date or time tokens
// outside quoted literals, escapes and [color]/[$-locale] sections.
func isDateTimePattern(code string) bool {
	code = strings.ToLower(code)
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '"':
			if end := strings.IndexByte(code[i+1:], '"'); end >= 0 {
				i += end + 1
			} else {
				return false
			}
		case '\\', '_', '*':
			i++
		case '[':
			end := strings.IndexByte(code[i+1:], ']')
			if end < 0 {
				return false
			}
			// [h], [mm], [ss] are elapsed-time tokens
			if section := code[i+1 : i+1+end]; section != "" && strings.Trim(section, "hms") == "" {
				return true
			}
			i += end + 1
		case 'y', 'd', 'h', 'm', 's':
			return true
		}
	}
	return false
}
