package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/namaznow/timings-import/internal/form"
	"github.com/namaznow/timings-import/internal/spreadsheet/spreadsheettest"
	"github.com/namaznow/timings-import/internal/strapi"
	"github.com/namaznow/timings-import/internal/timings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FetchLocations(ctx context.Context) ([]strapi.Location, error) {
	args := m.Called(ctx)
	locations, _ := args.Get(0).([]strapi.Location)
	return locations, args.Error(1)
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitTimings(ctx context.Context, payload strapi.SubmissionPayload) (strapi.Ack, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(strapi.Ack), args.Error(1)
}

var testLocations = []strapi.Location{{ID: 1, Name: "Durban"}, {ID: 7, Name: "Lenasia"}}

type importFixture struct {
	mux       *http.ServeMux
	directory *mockDirectory
	submitter *mockSubmitter
	cookie    *http.Cookie
}

func setupImportHandler(t *testing.T, maxUploadBytes int64, locations []strapi.Location, fetchErr error) *importFixture {
	t.Helper()
	f := &importFixture{
		mux:       http.NewServeMux(),
		directory: &mockDirectory{},
		submitter: &mockSubmitter{},
	}
	f.directory.On("FetchLocations", mock.Anything).Return(locations, fetchErr)

	store := NewSessionStore(time.Hour, func(n form.Notifier) *form.Controller {
		return form.New(form.Dependencies{Directory: f.directory, Submitter: f.submitter, Notifier: n})
	})
	t.Cleanup(store.CloseAll)

	base, err := NewBaseHandler(store)
	require.NoError(t, err)
	NewImportHandler(base, maxUploadBytes).RegisterRoutes(f.mux)
	return f
}

// do sends req with the fixture's session cookie and remembers any new one
func (f *importFixture) do(req *http.Request) *httptest.ResponseRecorder {
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			f.cookie = c
		}
	}
	return w
}

func (f *importFixture) get(t *testing.T) string {
	t.Helper()
	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func (f *importFixture) upload(t *testing.T, fields map[string]string, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(req)
}

func (f *importFixture) submit(fields url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func timingsWorkbook(t *testing.T) []byte {
	return spreadsheettest.Workbook(t, spreadsheettest.TimingsHeader,
		spreadsheettest.TimingsRow(1, 1, "05:00", "06:00", "12:00", "12:30", "16:00", "18:30", "20:00"),
		spreadsheettest.TimingsRow(2, 1, "05:01", "06:01", "12:01", "12:31", "16:01", "18:31", "20:01"),
	)
}

func TestHandleIndex_RendersLocations(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)

	body := f.get(t)

	require.NotNil(t, f.cookie, "a session cookie should be set")
	assert.Contains(t, body, "Durban")
	assert.Contains(t, body, "Lenasia")
	assert.Contains(t, body, `value="HANAFI"`)
	assert.Contains(t, body, `value="SHAFIEE"`)
	assert.NotContains(t, body, "Preview")

	// Returning to the page keeps the session and does not refetch
	f.get(t)
	f.directory.AssertNumberOfCalls(t, "FetchLocations", 1)
}

func TestHandleIndex_FetchFailureShowsFlashOnce(t *testing.T) {
	f := setupImportHandler(t, 1<<20, nil, &strapi.NetworkError{Op: "fetch locations", Err: errors.New("dial tcp: refused")})

	body := f.get(t)
	assert.Equal(t, 1, strings.Count(body, "Error fetching locations."))
	assert.Contains(t, body, "Unable to fetch locations from the server.")
	assert.Contains(t, body, "Select a location")

	// Each reload retries; the failed retry raises its own flash, and earlier ones are not repeated
	body = f.get(t)
	assert.Equal(t, 1, strings.Count(body, "Error fetching locations."))
	f.directory.AssertNumberOfCalls(t, "FetchLocations", 2)
}

func TestHandleIndex_ReloadRecoversAfterFetchFailure(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)
	f.directory.ExpectedCalls = nil
	f.directory.On("FetchLocations", mock.Anything).
		Return(nil, &strapi.NetworkError{Op: "fetch locations", Err: errors.New("dial tcp: refused")}).Once()
	f.directory.On("FetchLocations", mock.Anything).Return(testLocations, nil)

	body := f.get(t)
	assert.Contains(t, body, "Error fetching locations.")
	assert.NotContains(t, body, "Durban")

	body = f.get(t)
	assert.NotContains(t, body, "Error fetching locations.")
	assert.Contains(t, body, "Durban")
	assert.Contains(t, body, "Lenasia")

	body = f.get(t)
	assert.Contains(t, body, "Durban")
	f.directory.AssertNumberOfCalls(t, "FetchLocations", 2)
}

func TestHandleIndex_TranslatesQueryCodes(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/?error="+ErrCodeMissingFile, nil))
	assert.Contains(t, w.Body.String(), GetErrorMessage(ErrCodeMissingFile))

	w = f.do(httptest.NewRequest(http.MethodGet, "/?error=bogus", nil))
	assert.Contains(t, w.Body.String(), GetErrorMessage(ErrCodeUnknown))
}

func TestHandleUpload_ParsesFileAndKeepsSelections(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)
	f.get(t)

	w := f.upload(t, map[string]string{"location_id": "7", "school_of_thought": "shafiee"}, "ramadan.xlsx", timingsWorkbook(t))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?success="+SuccessCodeFileLoaded, w.Header().Get("Location"))

	year := time.Now().Year()
	body := f.get(t)
	assert.Contains(t, body, "Loaded: ramadan.xlsx (2 days)")
	assert.Contains(t, body, fmt.Sprintf("01-01-%d", year))
	assert.Contains(t, body, fmt.Sprintf("02-01-%d", year))
	assert.Contains(t, body, "18:31")
	assert.Contains(t, body, `<option value="7" selected>Lenasia</option>`)
	assert.Contains(t, body, `<option value="SHAFIEE" selected>SHAFIEE</option>`)
}

func TestHandleUpload_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		fields   map[string]string
		file     []byte
		limit    int64
		location string
	}{
		{"missing file", nil, nil, 1 << 20, "/?error=" + ErrCodeMissingFile},
		{"too large", nil, bytes.Repeat([]byte("x"), 4096), 1024, "/?error=" + ErrCodeUploadTooLarge},
		{"invalid location", map[string]string{"location_id": "abc"}, []byte("x"), 1 << 20, "/?error=" + ErrCodeInvalidLocation},
		{"invalid school", map[string]string{"school_of_thought": "MALIKI"}, []byte("x"), 1 << 20, "/?error=" + ErrCodeInvalidSchool},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupImportHandler(t, tc.limit, testLocations, nil)
			f.get(t)

			w := f.upload(t, tc.fields, "timings.xlsx", tc.file)
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tc.location, w.Header().Get("Location"))
		})
	}
}

func TestHandleUpload_UnreadableFileKeepsPreviousEntries(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)
	f.get(t)

	f.upload(t, nil, "good.xlsx", timingsWorkbook(t))
	w := f.upload(t, nil, "notes.txt", []byte("just some text"))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	body := f.get(t)
	assert.Contains(t, body, "Unable to read file.")
	assert.Contains(t, body, "Loaded: good.xlsx (2 days)")
}

func TestHandleSubmit_ValidationDoesNotCallServer(t *testing.T) {
	testCases := []struct {
		name     string
		fields   url.Values
		withFile bool
		title    string
	}{
		{"no location", url.Values{"school_of_thought": {"HANAFI"}}, true, "Location not selected."},
		{"no school", url.Values{"location_id": {"1"}}, true, "School of Thought not selected."},
		{"no file", url.Values{"location_id": {"1"}, "school_of_thought": {"HANAFI"}}, false, "No file uploaded."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupImportHandler(t, 1<<20, testLocations, nil)
			f.get(t)
			if tc.withFile {
				f.upload(t, nil, "timings.xlsx", timingsWorkbook(t))
			}

			w := f.submit(tc.fields)
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/", w.Header().Get("Location"))

			assert.Contains(t, f.get(t), tc.title)
			f.submitter.AssertNotCalled(t, "SubmitTimings", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleSubmit_Success(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)
	f.get(t)
	f.upload(t, nil, "timings.xlsx", timingsWorkbook(t))

	year := time.Now().Year()
	f.submitter.On("SubmitTimings", mock.Anything, mock.MatchedBy(func(p strapi.SubmissionPayload) bool {
		first, ok := p.PrayerTimings[timings.DateKey(fmt.Sprintf("01-01-%d", year))]
		return ok &&
			len(p.PrayerTimings) == 2 &&
			p.LocationID == 1 &&
			p.SchoolOfThought == timings.SchoolHanafi &&
			first.Fajr == "05:00" &&
			first.Isha == "20:00"
	})).Return(strapi.Ack{StatusCode: http.StatusOK}, nil).Once()

	w := f.submit(url.Values{"location_id": {"1"}, "school_of_thought": {"HANAFI"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	f.submitter.AssertExpectations(t)

	body := f.get(t)
	assert.Contains(t, body, "Data submitted successfully.")
	assert.NotContains(t, body, "Preview", "entries are cleared after a successful submission")
	assert.NotContains(t, body, " selected>", "selections are reset")
}

func TestHandleSubmit_FailureKeepsForm(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)
	f.get(t)
	f.upload(t, nil, "timings.xlsx", timingsWorkbook(t))

	f.submitter.On("SubmitTimings", mock.Anything, mock.Anything).
		Return(strapi.Ack{}, &strapi.NetworkError{Op: "submit timings", StatusCode: 500, Err: strapi.ErrUnexpectedStatus}).Once()

	f.submit(url.Values{"location_id": {"7"}, "school_of_thought": {"HANAFI"}})

	body := f.get(t)
	assert.Contains(t, body, "Error submitting data.")
	assert.Contains(t, body, "An error occurred while submitting the data.")
	assert.Contains(t, body, "Preview")
	assert.Contains(t, body, `<option value="7" selected>Lenasia</option>`)
}

func TestImportRoutes_MethodAndPath(t *testing.T) {
	f := setupImportHandler(t, 1<<20, testLocations, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/submit", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
