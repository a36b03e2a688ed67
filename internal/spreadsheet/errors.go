package spreadsheet

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedFormat indicates the bytes are not a workbook the parser can open.
var ErrUnrecognizedFormat = errors.New("unrecognized spreadsheet format")

// ErrNoSheets indicates the workbook opened but contains no sheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// DecodeError is returned when an upload cannot be decoded into rows.
type DecodeError struct {
	Source string // file name, if known
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("decode spreadsheet: %v", e.Err)
	}
	return fmt.Sprintf("decode spreadsheet %q: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(source string, err error) *DecodeError {
	return &DecodeError{Source: source, Err: err}
}
