package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("quiz run").Status)
	assert.Equal(t, "quiz run not found", NotFound("quiz run").Message)
	assert.Equal(t, http.StatusConflict, Conflict("run not active").Status)
	assert.Equal(t, http.StatusBadRequest, BadRequest("attemptIndex is required").Status)
	assert.Equal(t, http.StatusServiceUnavailable, Unavailable("store down", nil).Status)
}

func TestUnwrapAndStatus(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("start quiz: %w", Unavailable("failed to open transaction", cause))

	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, CodeUnavailable))
	assert.False(t, Is(err, CodeConflict))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(cause))
	assert.Equal(t, http.StatusOK, StatusOf(nil))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "[CONFLICT] quiz run already exited", Conflict("quiz run already exited").Error())
	assert.Equal(t, "[INTERNAL_ERROR] boom: disk full", Internal("boom", errors.New("disk full")).Error())
}
