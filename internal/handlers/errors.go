package handlers

// Error Codes
const (
	ErrCodeInvalidFormData = "invalid_form_data"
	ErrCodeInvalidLocation = "invalid_location"
	ErrCodeInvalidSchool   = "invalid_school_of_thought"
	ErrCodeMissingFile     = "missing_file"
	ErrCodeUploadTooLarge  = "upload_too_large"
	ErrCodeUnknown         = "unknown_error"
)

// Success Codes
const (
	SuccessCodeFileLoaded = "file_loaded"
)

// ErrorMessages maps error codes to user-friendly messages
var ErrorMessages = map[string]string{
	ErrCodeInvalidFormData: "Invalid form data.",
	ErrCodeInvalidLocation: "The selected location is not valid.",
	ErrCodeInvalidSchool:   "The selected School of Thought is not valid.",
	ErrCodeMissingFile:     "Please choose a spreadsheet to upload.",
	ErrCodeUploadTooLarge:  "The file is too large to upload.",
	ErrCodeUnknown:         "An unknown error occurred.",
}

// SuccessMessages maps success codes to user-friendly messages
var SuccessMessages = map[string]string{
	SuccessCodeFileLoaded: "File loaded. Review the timings below before submitting.",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code string) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return ErrorMessages[ErrCodeUnknown]
}

// GetSuccessMessage returns the message for a given success code
func GetSuccessMessage(code string) string {
	if msg, ok := SuccessMessages[code]; ok {
		return msg
	}
	return ""
}
