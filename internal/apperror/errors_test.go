package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("taken"), http.StatusConflict},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{Internal("boom", errors.New("db down")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestTypeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("get question 7: %w", NotFound("question not found"))

	assert.True(t, IsNotFound(err))
	assert.Equal(t, TypeNotFound, TypeOf(err))
	assert.False(t, Is(err, TypeConflict))
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, TypeInternal, TypeOf(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestError_MessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("create question", cause)

	assert.Equal(t, "internal: create question: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
