package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Conflict("taken", nil), http.StatusBadRequest},
		{Unauthorized("", nil), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("user", nil), http.StatusNotFound},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", Conflict("Email has already been taken", nil))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrConflict, appErr.Code)
	assert.True(t, Is(wrapped, ErrConflict))
	assert.False(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(fmt.Errorf("plain"), ErrConflict))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "user not found", NotFound("user", nil).Error())
	assert.Equal(t, "internal server error: db down", Internal(fmt.Errorf("db down")).Error())
	assert.Equal(t, "unauthorized", Unauthorized("", nil).Message)
}
