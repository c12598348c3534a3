package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/scribe-gateway/internal/diff"
	"github.com/lexiqai/scribe-gateway/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestHandler(t *testing.T) (*Handler, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	engine := diff.NewEngine(nil, time.Second, zerolog.Nop())
	return NewHandler(s, engine, zerolog.Nop()), s
}

// brokenStore fails every call.
type brokenStore struct{}

var errBroken = errors.New("database is locked")

func (brokenStore) Ping(context.Context) error { return errBroken }
func (brokenStore) ListPatients(context.Context) ([]store.Patient, error) {
	return nil, errBroken
}
func (brokenStore) GetPatient(context.Context, string) (*store.Patient, error) {
	return nil, errBroken
}
func (brokenStore) ListTranscriptions(context.Context, string) ([]store.Transcription, error) {
	return nil, errBroken
}
func (brokenStore) UpsertAnalysis(context.Context, string, store.AnalysisFields) (*store.Analysis, error) {
	return nil, errBroken
}

func newBrokenHandler() *Handler {
	return NewHandler(brokenStore{}, diff.NewEngine(nil, time.Second, zerolog.Nop()), zerolog.Nop())
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestListPatients(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, s.CreatePatient(ctx, &store.Patient{MRN: "M2", Name: "Zoe Adams", Age: 30, Email: "zoe@example.com"}))
	require.NoError(t, s.CreatePatient(ctx, &store.Patient{MRN: "M1", Name: "Aaron Brook", Age: 60}))

	c, rec := newContext(http.MethodGet, "/api/patients", "")
	require.NoError(t, h.ListPatients(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Aaron Brook", got[0]["name"])
	assert.NotContains(t, got[1], "email", "list view carries summary fields only")
}

func TestListPatientsEmpty(t *testing.T) {
	h, _ := newTestHandler(t)

	c, rec := newContext(http.MethodGet, "/api/patients", "")
	require.NoError(t, h.ListPatients(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetPatient(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()
	p := &store.Patient{MRN: "M1", Name: "John Smith"}
	require.NoError(t, s.CreatePatient(ctx, p))

	c, rec := newContext(http.MethodGet, "/api/patients/"+p.ID, "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID)

	require.NoError(t, h.GetPatient(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, p.ID, got["id"])
	assert.Equal(t, []any{}, got["transcriptions"])
}

func TestGetPatientNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	c, rec := newContext(http.MethodGet, "/api/patients/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, h.GetPatient(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Patient not found", decodeError(t, rec))
}

func TestListTranscriptions(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()
	p := &store.Patient{MRN: "M1", Name: "John Smith"}
	require.NoError(t, s.CreatePatient(ctx, p))
	_, err := s.SaveTranscript(ctx, p.ID, "Patient reports a cough.", "Patient reports a cough")
	require.NoError(t, err)

	c, rec := newContext(http.MethodGet, "/api/patients/"+p.ID+"/transcriptions", "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID)

	require.NoError(t, h.ListTranscriptions(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []store.Transcription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Patient reports a cough.", got[0].Content)
}

func TestGenerateDiffValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, body := range []string{
		`{"prior_note":"Cough."}`,
		`{"current_transcript":"Cough."}`,
		`{"prior_note":"","current_transcript":""}`,
	} {
		c, rec := newContext(http.MethodPost, "/api/diff", body)
		require.NoError(t, h.GenerateDiff(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "prior_note and current_transcript are required", decodeError(t, rec))
	}
}

func TestGenerateDiffFallbackShape(t *testing.T) {
	h, _ := newTestHandler(t)

	c, rec := newContext(http.MethodPost, "/api/diff", `{"prior_note":"A. B.","current_transcript":"B. C."}`)
	require.NoError(t, h.GenerateDiff(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got diff.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"C."}, got.Changes.New)
	assert.Equal(t, []string{"A."}, got.Changes.Resolved)
	assert.Equal(t, diff.DefaultDisclaimer, got.SafeDisclaimer)
}

func TestGenerateDiffStoresAnalysis(t *testing.T) {
	h, s := newTestHandler(t)
	ctx := context.Background()
	p := &store.Patient{MRN: "M1", Name: "John Smith"}
	require.NoError(t, s.CreatePatient(ctx, p))
	tid, err := s.SaveTranscript(ctx, p.ID, "B. C.", "B")
	require.NoError(t, err)

	body := `{"prior_note":"A. B.","current_transcript":"B. C.","transcriptionId":"` + tid + `"}`
	c, rec := newContext(http.MethodPost, "/api/diff", body)
	require.NoError(t, h.GenerateDiff(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	a, err := s.GetAnalysis(ctx, tid)
	require.NoError(t, err)
	assert.Equal(t, []string{"C."}, a.ChangesNew)
	assert.Equal(t, []string{"A."}, a.ChangesResolved)
}

func TestGenerateDiffUnknownTranscription(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"prior_note":"A.","current_transcript":"B.","transcriptionId":"missing"}`
	c, rec := newContext(http.MethodPost, "/api/diff", body)
	require.NoError(t, h.GenerateDiff(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate visit diff", decodeError(t, rec))
}

func TestStoreFailures(t *testing.T) {
	h := newBrokenHandler()

	tests := []struct {
		name    string
		call    func(echo.Context) error
		param   bool
		wantMsg string
	}{
		{"list patients", h.ListPatients, false, "Failed to fetch patients"},
		{"get patient", h.GetPatient, true, "Failed to fetch patient details"},
		{"list transcriptions", h.ListTranscriptions, true, "Failed to fetch patient transcriptions"},
		{"health", h.Health, false, "Database connection failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/", "")
			if tt.param {
				c.SetParamNames("id")
				c.SetParamValues("p1")
			}
			require.NoError(t, tt.call(c))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec))
		})
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	c, rec := newContext(http.MethodGet, "/api/health", "")
	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterRoutes(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/patients/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Patient not found", decodeError(t, rec))
}
