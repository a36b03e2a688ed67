package form

import "errors"

// ValidationError is a missing precondition for submission.
// Title and Description are what the operator sees.
type ValidationError struct {
	Field       string
	Title       string
	Description string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + " missing"
}

// Submission preconditions, checked in this order
var (
	ErrLocationNotSelected = &ValidationError{
		Field:       "location",
		Title:       "Location not selected.",
		Description: "Please select a location before submitting.",
	}
	ErrSchoolNotSelected = &ValidationError{
		Field:       "school_of_thought",
		Title:       "School of Thought not selected.",
		Description: "Please select a School of Thought before submitting.",
	}
	ErrNoEntries = &ValidationError{
		Field:       "file",
		Title:       "No file uploaded.",
		Description: "Please upload a file before submitting.",
	}
)

// ErrClosed is returned when the controller was closed while an operation was pending
var ErrClosed = errors.New("form controller closed")
