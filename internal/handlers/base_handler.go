package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/namaznow/timings-import/internal/logging"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// BaseHandler contains common handler functionality
type BaseHandler struct {
	tmpl     *template.Template
	Sessions *SessionStore
	logger   zerolog.Logger
}

// NewBaseHandler creates a common base handler with shared components
func NewBaseHandler(sessions *SessionStore) (*BaseHandler, error) {
	logger := logging.GetLogger("base-handler")
	logger.Debug().Msg("Parsing templates")

	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"orDash": func(s string) string {
			if s == "" {
				return "-"
			}
			return s
		},
	}

	// Parse only layout.html initially
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse templates")
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	logger.Debug().Msg("Templates parsed successfully")

	return &BaseHandler{
		tmpl:     tmpl,
		Sessions: sessions,
		logger:   logger,
	}, nil
}

// RenderTemplate renders a template with the given data
func (h *BaseHandler) RenderTemplate(w http.ResponseWriter, name string, data interface{}) {
	h.logger.Debug().Str("template_name", name).Msg("Executing template")

	// Clone the base template (which contains layout.html)
	tmpl, err := h.tmpl.Clone()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to clone template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Parse the specific page template into the clone
	_, err = tmpl.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("Failed to parse page template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("Failed to execute template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// BasePageData contains common data for all pages
type BasePageData struct {
	CurrentYear int
	CurrentPath string
}

// NewBasePageData creates a new BasePageData with common fields populated
func (h *BaseHandler) NewBasePageData(r *http.Request) BasePageData {
	return BasePageData{
		CurrentYear: time.Now().Year(),
		CurrentPath: r.URL.Path,
	}
}

// processMessages extracts and translates error/success codes from query parameters.
func (h *BaseHandler) processMessages(r *http.Request, logger zerolog.Logger) (errorMessage, successMessage string) {
	errorCode := r.URL.Query().Get("error")
	successCode := r.URL.Query().Get("success")
	logger.Debug().Str("error_code", errorCode).Str("success_code", successCode).Msg("Checked query parameters")

	if errorCode != "" {
		errorMessage = GetErrorMessage(errorCode)
		logger.Warn().Str("error_code", errorCode).Str("error_message", errorMessage).Msg("Processing error message")
	}

	if successCode != "" {
		successMessage = GetSuccessMessage(successCode)
		logger.Info().Str("success_code", successCode).Str("success_message", successMessage).Msg("Processing success message")
	}
	return errorMessage, successMessage
}

// redirectWithError sends the browser back to the form with an error code
func (h *BaseHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?error="+code, http.StatusSeeOther)
}

// redirectWithSuccess sends the browser back to the form with a success code
func (h *BaseHandler) redirectWithSuccess(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?success="+code, http.StatusSeeOther)
}
