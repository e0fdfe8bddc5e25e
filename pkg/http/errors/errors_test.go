package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		ErrCodeUnauthorized:      http.StatusUnauthorized,
		ErrCodeForbidden:         http.StatusForbidden,
		ErrCodeNotFound:          http.StatusNotFound,
		ErrCodeNicknameTaken:     http.StatusConflict,
		ErrCodeInvalidPayload:    http.StatusBadRequest,
		ErrCodeInternalError:     http.StatusInternalServerError,
		"something_unrecognised": http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

func TestRespondError_WritesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondNotFound(rec, ErrCodeQuizNotFound, "quiz 7 does not exist")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeQuizNotFound, body.Error)
	assert.Equal(t, "quiz 7 does not exist", body.Message)
}
