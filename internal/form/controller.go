// Package form owns the import form's state: the location list, the operator's
// selections and the parsed entries, and drives fetch, parse and submit.
package form

import (
	"context"
	"fmt"
	"sync"

	"github.com/namaznow/timings-import/internal/logging"
	appSignals "github.com/namaznow/timings-import/internal/signals"
	"github.com/namaznow/timings-import/internal/spreadsheet"
	"github.com/namaznow/timings-import/internal/strapi"
	"github.com/namaznow/timings-import/internal/timings"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// State is where the form is in its lifecycle
type State string

const (
	StateIdle             State = "idle"
	StateLoading          State = "loading"
	StateReady            State = "ready"
	StateFileParsed       State = "file_parsed"
	StateSubmitting       State = "submitting"
	StateSubmitted        State = "submitted"
	StateValidationFailed State = "validation_failed"
	StateSubmissionFailed State = "submission_failed"
)

// locationsStatus tracks the location fetch separately from the form state
type locationsStatus int

const (
	locationsPending locationsStatus = iota
	locationsLoading
	locationsLoaded
	locationsFailed
)

// LocationDirectory lists submission targets
type LocationDirectory interface {
	FetchLocations(ctx context.Context) ([]strapi.Location, error)
}

// TimingsSubmitter sends an import payload
type TimingsSubmitter interface {
	SubmitTimings(ctx context.Context, payload strapi.SubmissionPayload) (strapi.Ack, error)
}

// RowMapper turns decoded rows into date-keyed timings
type RowMapper interface {
	Map(rows []spreadsheet.Row) timings.PrayerTimesByDate
}

// ParseFunc decodes an uploaded file into rows
type ParseFunc func(name string, data []byte) ([]spreadsheet.Row, error)

// Dependencies wires a Controller. Directory and Submitter are required.
type Dependencies struct {
	Directory LocationDirectory
	Submitter TimingsSubmitter
	Mapper    RowMapper // defaults to timings.NewMapper()
	Parse     ParseFunc // defaults to spreadsheet.ParseNamed
	Notifier  Notifier  // defaults to a LogNotifier
}

// Snapshot is a read-only copy of the form state for rendering
type Snapshot struct {
	State            State
	Locations        []strapi.Location
	LoadingLocations bool
	SelectedLocation int64
	SelectedSchool   timings.SchoolOfThought
	Entries          timings.PrayerTimesByDate
	FileName         string
	Submitting       bool
}

// Controller is the state machine behind one import form.
// State changes are serialized but the lock is not held across network calls,
// so a file chosen while a submission is in flight is cleared if that submission succeeds.
type Controller struct {
	mu               sync.Mutex
	state            State
	locations        []strapi.Location
	selectedLocation int64
	selectedSchool   timings.SchoolOfThought
	entries          timings.PrayerTimesByDate
	fileName         string
	locationsStatus  locationsStatus

	directory LocationDirectory
	submitter TimingsSubmitter
	mapper    RowMapper
	parse     ParseFunc
	notifier  Notifier

	inFlight *atomic.Int32
	lifetime context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger
}

// New creates a controller in the Idle state
func New(deps Dependencies) *Controller {
	logger := logging.GetLogger("form")

	mapper := deps.Mapper
	if mapper == nil {
		mapper = timings.NewMapper()
	}
	parse := deps.Parse
	if parse == nil {
		parse = spreadsheet.ParseNamed
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Controller{
		state:     StateIdle,
		entries:   timings.PrayerTimesByDate{},
		directory: deps.Directory,
		submitter: deps.Submitter,
		mapper:    mapper,
		parse:     parse,
		notifier:  notifier,
		inFlight:  atomic.NewInt32(0),
		lifetime:  lifetime,
		cancel:    cancel,
		logger:    logger,
	}
}

// Mount fetches the location list. Once the list is loaded, or while a fetch is
// in flight, later calls are no-ops; after a failed fetch the next call tries again.
// On failure the operator is notified and the form becomes Ready with no locations.
// The fetch is bound to the controller's lifetime, not to ctx's cancellation, so a
// caller going away does not abort it. If the controller is closed before the fetch
// resolves, the result is discarded and ErrClosed returned.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.locationsStatus == locationsLoading || c.locationsStatus == locationsLoaded {
		c.mu.Unlock()
		return nil
	}
	retry := c.locationsStatus == locationsFailed
	c.locationsStatus = locationsLoading
	if c.state == StateIdle {
		c.state = StateLoading
	}
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.lifetime, cancel)
	defer stop()

	c.logger.Debug().Bool("retry", retry).Msg("Loading locations")
	locations, err := c.directory.FetchLocations(fetchCtx)

	if c.lifetime.Err() != nil {
		c.logger.Debug().Msg("Controller closed before locations resolved, discarding result")
		return ErrClosed
	}

	c.mu.Lock()
	if err != nil {
		c.locations = nil
		c.locationsStatus = locationsFailed
	} else {
		c.locations = locations
		c.locationsStatus = locationsLoaded
	}
	if c.state == StateLoading {
		c.state = StateReady
	}
	c.mu.Unlock()

	appSignals.EmitLocationsLoaded(ctx, len(locations), err == nil)

	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch locations")
		c.notifier.Notify(Notification{
			Title:       "Error fetching locations.",
			Description: "Unable to fetch locations from the server.",
			Status:      StatusError,
		})
		return fmt.Errorf("failed to fetch locations: %w", err)
	}

	c.logger.Info().Int("locations", len(locations)).Msg("Locations loaded")
	return nil
}

// LoadFile decodes and maps an upload, replacing any previous entries.
// Selections are kept. A file that cannot be decoded leaves the state unchanged.
func (c *Controller) LoadFile(name string, data []byte) (int, error) {
	logger := c.logger.With().Str("file", name).Int("size", len(data)).Logger()

	rows, err := c.parse(name, data)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to decode upload")
		c.notifier.Notify(Notification{
			Title:       "Unable to read file.",
			Description: "The file is not a recognized .xlsx spreadsheet.",
			Status:      StatusError,
		})
		return 0, err
	}

	entries := c.mapper.Map(rows)

	c.mu.Lock()
	c.entries = entries
	c.fileName = name
	c.state = StateFileParsed
	c.mu.Unlock()

	logger.Info().Int("rows", len(rows)).Int("entries", len(entries)).Msg("File parsed")
	return len(entries), nil
}

// SelectLocation records the target location; 0 clears it
func (c *Controller) SelectLocation(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedLocation = id
	c.settleLocked()
}

// SelectSchoolOfThought records the school; an empty value clears it
func (c *Controller) SelectSchoolOfThought(school timings.SchoolOfThought) error {
	if school != "" && !school.IsValid() {
		return fmt.Errorf("invalid school of thought: %q", school)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedSchool = school
	c.settleLocked()
	return nil
}

// Submit validates the form and sends the entries.
// Location, school of thought and entries are checked in that order and the first
// missing one is returned as a *ValidationError without any network call.
// On success entries and selections are reset; on failure they are kept for a retry.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if verr := c.validateLocked(); verr != nil {
		c.state = StateValidationFailed
		c.mu.Unlock()

		c.logger.Info().Str("field", verr.Field).Msg("Submission rejected by validation")
		c.notifier.Notify(Notification{Title: verr.Title, Description: verr.Description, Status: StatusError})
		return verr
	}

	payload := strapi.SubmissionPayload{
		PrayerTimings:   c.entries,
		LocationID:      c.selectedLocation,
		SchoolOfThought: c.selectedSchool,
	}
	c.state = StateSubmitting
	c.mu.Unlock()

	if n := c.inFlight.Inc(); n > 1 {
		c.logger.Warn().Int32("in_flight", n).Msg("Submission started while another is in flight")
	}

	logger := c.logger.With().
		Int64("location_id", payload.LocationID).
		Str("school_of_thought", payload.SchoolOfThought.String()).
		Int("entries", len(payload.PrayerTimings)).
		Logger()
	logger.Info().Msg("Submitting timings")

	_, err := c.submitter.SubmitTimings(ctx, payload)
	c.inFlight.Dec()

	c.mu.Lock()
	if err != nil {
		c.state = StateSubmissionFailed
	} else {
		c.state = StateSubmitted
		c.entries = timings.PrayerTimesByDate{}
		c.fileName = ""
		c.selectedLocation = 0
		c.selectedSchool = ""
	}
	c.mu.Unlock()

	appSignals.EmitTimingsSubmitted(ctx, appSignals.TimingsSubmittedData{
		LocationID:      payload.LocationID,
		SchoolOfThought: payload.SchoolOfThought,
		Entries:         len(payload.PrayerTimings),
		Success:         err == nil,
		Err:             err,
	})

	if err != nil {
		logger.Error().Err(err).Msg("Error submitting data")
		c.notifier.Notify(Notification{
			Title:       "Error submitting data.",
			Description: "An error occurred while submitting the data.",
			Status:      StatusError,
		})
		return fmt.Errorf("failed to submit timings: %w", err)
	}

	logger.Info().Msg("Data submitted successfully")
	c.notifier.Notify(Notification{Title: "Data submitted successfully.", Status: StatusSuccess})
	return nil
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	locations := make([]strapi.Location, len(c.locations))
	copy(locations, c.locations)

	entries := make(timings.PrayerTimesByDate, len(c.entries))
	for k, v := range c.entries {
		entries[k] = v
	}

	return Snapshot{
		State:            c.state,
		Locations:        locations,
		LoadingLocations: c.locationsStatus == locationsPending || c.locationsStatus == locationsLoading,
		SelectedLocation: c.selectedLocation,
		SelectedSchool:   c.selectedSchool,
		Entries:          entries,
		FileName:         c.fileName,
		Submitting:       c.inFlight.Load() > 0,
	}
}

// IsSubmitting reports whether any submission is in flight
func (c *Controller) IsSubmitting() bool {
	return c.inFlight.Load() > 0
}

// Close ends the controller's lifetime; a pending location fetch is canceled and its result dropped
func (c *Controller) Close() {
	c.cancel()
}

// Closed reports whether Close has been called
func (c *Controller) Closed() bool {
	return c.lifetime.Err() != nil
}

func (c *Controller) validateLocked() *ValidationError {
	if c.selectedLocation == 0 {
		return ErrLocationNotSelected
	}
	if c.selectedSchool == "" {
		return ErrSchoolNotSelected
	}
	if len(c.entries) == 0 {
		return ErrNoEntries
	}
	return nil
}

// settleLocked moves a finished or failed form back to its resting state
func (c *Controller) settleLocked() {
	switch c.state {
	case StateSubmitted, StateValidationFailed, StateSubmissionFailed:
		if len(c.entries) > 0 {
			c.state = StateFileParsed
		} else {
			c.state = StateReady
		}
	}
}
