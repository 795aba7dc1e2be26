package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	err := NewAPIError(ErrInvalidInput, "column has no mapping", nil)
	assert.Equal(t, "INVALID_INPUT: column has no mapping", err.Error())
}

func TestIsInvalidInput(t *testing.T) {
	assert.True(t, IsInvalidInput(NewAPIError(ErrInvalidInput, "coercion failed", nil)))
	assert.True(t, IsInvalidInput(NewAPIError(ErrBadRequest, "bad payload", nil)))
	assert.False(t, IsInvalidInput(NewAPIError(ErrInternalServer, "db down", nil)))
	assert.False(t, IsInvalidInput(errors.New("plain error")))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, MapErrorToHTTPStatus(NewAPIError(ErrNotFound, "missing", nil)))
	assert.Equal(t, http.StatusConflict, MapErrorToHTTPStatus(NewAPIError(ErrConflict, "duplicate", nil)))
	assert.Equal(t, http.StatusBadRequest, MapErrorToHTTPStatus(NewAPIError(ErrInvalidInput, "bad", nil)))
	assert.Equal(t, http.StatusInternalServerError, MapErrorToHTTPStatus(errors.New("unknown")))
}
