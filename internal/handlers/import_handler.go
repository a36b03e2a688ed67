package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/namaznow/timings-import/internal/form"
	"github.com/namaznow/timings-import/internal/strapi"
	"github.com/namaznow/timings-import/internal/timings"
	"github.com/rs/zerolog"
)

// ImportHandler serves the import form and its upload/submit actions
type ImportHandler struct {
	*BaseHandler
	maxUploadBytes int64
}

// NewImportHandler creates a new import form handler
func NewImportHandler(baseHandler *BaseHandler, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{
		BaseHandler:    baseHandler,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers import form routes
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("POST /submit", h.handleSubmit)
}

// EntryRow is one date of parsed timings in the preview table
type EntryRow struct {
	Date  timings.DateKey
	Times timings.DailyPrayerTimes
}

// ImportPageData contains data for the import form template
type ImportPageData struct {
	BasePageData
	Locations        []strapi.Location
	LoadingLocations bool
	SelectedLocation int64
	Schools          []timings.SchoolOfThought
	SelectedSchool   timings.SchoolOfThought
	FileName         string
	Entries          []EntryRow
	Submitting       bool
	MaxUploadMB      int64
	Flashes          []form.Notification
	ErrorMessage     string
	SuccessMessage   string
}

// handleIndex renders the form, mounting the controller for a new session
func (h *ImportHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	session, isNew := h.Sessions.Get(w, r)
	handlerLogger := h.logger.With().Str("handler", "handleIndex").Str("session_id", session.ID).Logger()
	handlerLogger.Info().Str("method", r.Method).Bool("new_session", isNew).Msg("Handling import form request")

	// Mount fetches until the list has loaded once, so a reload retries a failed fetch
	if err := session.Controller.Mount(r.Context()); err != nil {
		handlerLogger.Warn().Err(err).Msg("Location list unavailable")
	}

	errorMessage, successMessage := h.processMessages(r, handlerLogger)
	snap := session.Controller.Snapshot()

	data := ImportPageData{
		BasePageData:     h.NewBasePageData(r),
		Locations:        snap.Locations,
		LoadingLocations: snap.LoadingLocations,
		SelectedLocation: snap.SelectedLocation,
		Schools:          timings.AllSchoolsOfThought(),
		SelectedSchool:   snap.SelectedSchool,
		FileName:         snap.FileName,
		Entries:          entryRows(snap.Entries),
		Submitting:       snap.Submitting,
		MaxUploadMB:      h.maxUploadBytes >> 20,
		Flashes:          session.DrainFlashes(),
		ErrorMessage:     errorMessage,
		SuccessMessage:   successMessage,
	}

	handlerLogger.Debug().Int("entries", len(data.Entries)).Msg("Rendering import template")
	h.RenderTemplate(w, "import.html", data)
}

// handleUpload decodes the chosen spreadsheet into the session's form
func (h *ImportHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Sessions.Get(w, r)
	handlerLogger := h.logger.With().Str("handler", "handleUpload").Str("session_id", session.ID).Logger()
	handlerLogger.Info().Str("method", r.Method).Msg("Handling upload request")

	if r.ContentLength > h.maxUploadBytes {
		handlerLogger.Warn().Int64("content_length", r.ContentLength).Int64("limit", h.maxUploadBytes).Msg("Upload exceeds size limit")
		h.redirectWithError(w, r, ErrCodeUploadTooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlerLogger.Warn().Int64("limit", tooLarge.Limit).Msg("Upload exceeds size limit")
			h.redirectWithError(w, r, ErrCodeUploadTooLarge)
			return
		}
		handlerLogger.Error().Err(err).Msg("Failed to parse multipart form")
		h.redirectWithError(w, r, ErrCodeInvalidFormData)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	if code := h.applySelections(r, session.Controller, handlerLogger); code != "" {
		h.redirectWithError(w, r, code)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			handlerLogger.Warn().Msg("No file in upload")
			h.redirectWithError(w, r, ErrCodeMissingFile)
			return
		}
		handlerLogger.Error().Err(err).Msg("Failed to open uploaded file")
		h.redirectWithError(w, r, ErrCodeInvalidFormData)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to read uploaded file")
		h.redirectWithError(w, r, ErrCodeInvalidFormData)
		return
	}

	// Decode failures are reported through the session's notifications
	if _, err := session.Controller.LoadFile(header.Filename, data); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.redirectWithSuccess(w, r, SuccessCodeFileLoaded)
}

// handleSubmit sends the session's parsed timings to the CMS
func (h *ImportHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Sessions.Get(w, r)
	handlerLogger := h.logger.With().Str("handler", "handleSubmit").Str("session_id", session.ID).Logger()
	handlerLogger.Info().Str("method", r.Method).Msg("Handling submit request")

	if err := r.ParseForm(); err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to parse form")
		h.redirectWithError(w, r, ErrCodeInvalidFormData)
		return
	}

	if code := h.applySelections(r, session.Controller, handlerLogger); code != "" {
		h.redirectWithError(w, r, code)
		return
	}

	// Outcomes are reported through the session's notifications
	if err := session.Controller.Submit(r.Context()); err != nil {
		handlerLogger.Debug().Err(err).Msg("Submission did not complete")
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// applySelections copies location_id and school_of_thought from the form into the controller.
// It returns an error code when a value cannot be accepted.
func (h *ImportHandler) applySelections(r *http.Request, controller *form.Controller, logger zerolog.Logger) string {
	var locationID int64
	if raw := strings.TrimSpace(r.FormValue("location_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			logger.Warn().Str("location_id", raw).Msg("Invalid location id")
			return ErrCodeInvalidLocation
		}
		locationID = id
	}
	controller.SelectLocation(locationID)

	var school timings.SchoolOfThought
	if raw := strings.TrimSpace(r.FormValue("school_of_thought")); raw != "" {
		parsed, err := timings.ParseSchoolOfThought(raw)
		if err != nil {
			logger.Warn().Err(err).Msg("Invalid school of thought")
			return ErrCodeInvalidSchool
		}
		school = parsed
	}
	if err := controller.SelectSchoolOfThought(school); err != nil {
		return ErrCodeInvalidSchool
	}

	return ""
}

// entryRows orders parsed entries by date for the preview table
func entryRows(entries timings.PrayerTimesByDate) []EntryRow {
	rows := make([]EntryRow, 0, len(entries))
	for _, key := range entries.Keys() {
		rows = append(rows, EntryRow{Date: key, Times: entries[key]})
	}
	return rows
}
