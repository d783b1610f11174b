package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/types"
)

// render runs WriteError without a logger and decodes what it wrote.
func render(t *testing.T, err error) (*httptest.ResponseRecorder, types.APIError) {
	t.Helper()
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, err)
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"plan": "sub-12"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"plan":"sub-12"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"id": "x"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestWriteErrorStatusAndMessage(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad input"), http.StatusBadRequest, "bad input"},
		{pkgerrors.New(pkgerrors.CodeDuplicateTransaction, "transaction number already registered"), http.StatusConflict, "transaction number already registered"},
		{pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough units"), http.StatusConflict, "not enough units"},
		{pkgerrors.New(pkgerrors.CodeLockedRecord, "proof is validated"), http.StatusLocked, "proof is validated"},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "cannot approve"), http.StatusUnprocessableEntity, "cannot approve"},
		// Server-side codes never leak the caller's message.
		{pkgerrors.New(pkgerrors.CodeCodeGeneration, "collided 5 times"), http.StatusInternalServerError, "could not allocate a unique code"},
		{pkgerrors.New(pkgerrors.CodeDependency, "pq: connection refused on 10.0.0.3"), http.StatusServiceUnavailable, "dependency unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec, body := render(t, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestWriteErrorDetails(t *testing.T) {
	_, body := render(t, pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "amount"}))
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Code)
	assert.Equal(t, map[string]any{"field": "amount"}, body.Details)

	_, body = render(t, errors.New("boom"))
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Code)
	assert.Nil(t, body.Details, "internal errors carry no details")
}

func TestWriteErrorMarksRetryableFailures(t *testing.T) {
	rec, body := render(t, pkgerrors.New(pkgerrors.CodeConcurrentModification, "product changed"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.True(t, body.Retryable)

	rec, body = render(t, pkgerrors.New(pkgerrors.CodeInsufficientStock, "no units"))
	assert.Empty(t, rec.Header().Get("Retry-After"), "insufficient stock should not invite a retry")
	assert.False(t, body.Retryable)
}

func TestWriteErrorLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: logger.FormatJSON})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "plan not found"))
	assert.Contains(t, buf.String(), "request.rejected")
	assert.NotContains(t, buf.String(), `"stack"`)

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeDependency, "db down"))
	assert.Contains(t, buf.String(), "request.error")
	assert.Contains(t, buf.String(), `"level":"error"`)
}
