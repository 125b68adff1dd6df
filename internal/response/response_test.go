package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"plain library error", errors.New("corrupt xref"), http.StatusInternalServerError},
		{"bad request", BadRequest("missing file", nil), http.StatusBadRequest},
		{"not found", NotFound("no such file", nil), http.StatusNotFound},
		{"too large", TooLarge("upload too big", nil), http.StatusRequestEntityTooLarge},
		{"unauthorized", Unauthorized("token required"), http.StatusUnauthorized},
		{"rate limited", RateLimited("slow down"), http.StatusTooManyRequests},
		{"internal", Internal("disk", errors.New("EIO")), http.StatusInternalServerError},
		{"wrapped bad request", fmt.Errorf("split: %w", BadRequest("bad pages", nil)), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFor(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := BadRequest("invalid pages", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "invalid pages: sentinel", err.Error())
	assert.Equal(t, "just message", NotFound("just message", nil).Error())
	assert.Equal(t, "inner", OperationFailed("", errors.New("inner")).Error())
}

func TestOkEnvelope(t *testing.T) {
	res := Ok("PDFs merged successfully", map[string]any{"file_id": "abc"})
	require.True(t, res.IsOk())
	assert.Equal(t, http.StatusOK, res.Status())
	assert.NoError(t, res.Err())

	payload, ok := res.Payload()
	require.True(t, ok)
	assert.Equal(t, "abc", payload["file_id"])

	raw, err := json.Marshal(res.Envelope())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "PDFs merged successfully", decoded["message"])
	assert.NotEmpty(t, decoded["timestamp"])
	assert.Contains(t, decoded, "data")
	require.Contains(t, decoded, "error")
	assert.Nil(t, decoded["error"])
}

func TestFailEnvelope(t *testing.T) {
	res := Fail[map[string]any]("Failed to split PDF", BadRequest("page 4 out of range", nil))
	require.False(t, res.IsOk())
	assert.Equal(t, http.StatusBadRequest, res.Status())

	_, ok := res.Payload()
	assert.False(t, ok)

	env := res.Envelope()
	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Error)
	assert.Equal(t, "page 4 out of range", *env.Error)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)
}

func TestFailEnvelope_InternalMasked(t *testing.T) {
	env := Failure("Error saving upload", Internal("write", errors.New("/tmp/secret/path: no space left")))
	require.NotNil(t, env.Error)
	assert.Equal(t, InternalErrorDetail, *env.Error)
}

func TestFailWithoutError(t *testing.T) {
	res := Fail[any]("No files provided", nil)
	assert.Equal(t, http.StatusInternalServerError, res.Status())
	require.NotNil(t, res.Envelope().Error)
	assert.Equal(t, "No files provided", *res.Envelope().Error)
}

func TestSuccessNilData(t *testing.T) {
	env := Success("File deleted successfully", nil)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{}, env.Data)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "bad_request", KindBadRequest.String())
	assert.Equal(t, "operation", KindOf(errors.New("x")).String())
}
