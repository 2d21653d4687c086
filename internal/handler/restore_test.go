package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"photoreviver/internal/config"
	"photoreviver/internal/dto"
	"photoreviver/internal/logger"
	"photoreviver/internal/service"
	"photoreviver/internal/service/imaging"
	"photoreviver/internal/service/remote"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRestorer struct {
	history bool
	err     error
	last    service.Task
}

func (f *fakeRestorer) Submit(_ context.Context, task service.Task) (*service.Outcome, error) {
	f.last = task
	if f.err != nil {
		return nil, f.err
	}
	return &service.Outcome{
		ID:     task.ID,
		JobID:  task.JobID,
		Engine: "local",
		Step:   task.Step,
		Data:   []byte("JPEGDATA"),
	}, nil
}

func (f *fakeRestorer) HistoryEnabled() bool { return f.history }

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{RequestTimeout: time.Second},
		Processing: config.ProcessingConfig{MaxUploadBytes: 1024},
	}
}

func uploadRequest(t *testing.T, target, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestRestoreHandlerSuccess(t *testing.T) {
	f := &fakeRestorer{history: true}
	h := RestoreHandler(f, testConfig(), logger.NewNop())

	req := uploadRequest(t, "/api/restore", "grandpa.png", "image/png", []byte("pixels"), map[string]string{"engine": "Remote"})
	req.Header.Set(JobIDHeader, "job-7")
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="restored_grandpa.png"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "job-7", rec.Header().Get(JobIDHeader))
	assert.Equal(t, f.last.ID, rec.Header().Get(RestorationIDHeader))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "JPEGDATA", rec.Body.String())

	assert.Equal(t, imaging.StepAll, f.last.Step)
	assert.Equal(t, "remote", f.last.Engine)
	assert.Equal(t, []byte("pixels"), f.last.Input)
	assert.Equal(t, "grandpa.png", f.last.Filename)
}

func TestRestoreHandlerGeneratesJobID(t *testing.T) {
	f := &fakeRestorer{}
	rec := httptest.NewRecorder()
	RestoreHandler(f, testConfig(), logger.NewNop())(rec, uploadRequest(t, "/api/restore", "a.jpg", "image/jpeg", []byte("x"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(JobIDHeader))
	assert.Equal(t, f.last.JobID, rec.Header().Get(JobIDHeader))
	assert.Empty(t, rec.Header().Get(RestorationIDHeader), "no record id without history")
}

func TestRestoreHandlerValidation(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		want        string
	}{
		{"missing file", "", "", nil, "No file uploaded"},
		{"not an image", "notes.txt", "text/plain", []byte("hello"), "File must be an image"},
		{"too large", "big.jpg", "image/jpeg", bytes.Repeat([]byte{1}, 1025), "File size must be less than 1.0 KiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRestorer{}
			rec := httptest.NewRecorder()
			RestoreHandler(f, testConfig(), logger.NewNop())(rec, uploadRequest(t, "/api/restore", tt.filename, tt.contentType, tt.data, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, detail(t, rec))
			assert.Nil(t, f.last.Input, "restorer not called")
		})
	}
}

func TestRestoreStepHandler(t *testing.T) {
	f := &fakeRestorer{}
	h := RestoreStepHandler(f, testConfig(), logger.NewNop())

	rec := httptest.NewRecorder()
	h(rec, uploadRequest(t, "/api/restore-step?step=colorization", "a.jpg", "image/jpeg", []byte("x"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, imaging.StepColorization, f.last.Step)

	rec = httptest.NewRecorder()
	h(rec, uploadRequest(t, "/api/restore-step", "a.jpg", "image/jpeg", []byte("x"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, imaging.StepAll, f.last.Step)

	rec = httptest.NewRecorder()
	h(rec, uploadRequest(t, "/api/restore-step?step=sepia", "a.jpg", "image/jpeg", []byte("x"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "invalid step")
}

func TestRestoreHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", imaging.ErrDecode), http.StatusBadRequest},
		{fmt.Errorf("%w %q", service.ErrUnknownEngine, "x"), http.StatusBadRequest},
		{service.ErrQueueFull, http.StatusServiceUnavailable},
		{remote.ErrNotConfigured, http.StatusServiceUnavailable},
		{remote.ErrUnavailable, http.StatusServiceUnavailable},
		{remote.ErrTimeout, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{remote.ErrPredictionFailed, http.StatusBadGateway},
		{errors.New("opencv exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := &fakeRestorer{err: tt.err}
			rec := httptest.NewRecorder()
			RestoreHandler(f, testConfig(), logger.NewNop())(rec, uploadRequest(t, "/api/restore", "a.jpg", "image/jpeg", []byte("x"), nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(JobIDHeader))
		})
	}

	status, msg := statusFor(errors.New("opencv exploded"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Error processing image: opencv exploded", msg)
}

func TestRootAndHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	RootHandler()(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"message":"Smart Photo Reviver API","status":"running"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
