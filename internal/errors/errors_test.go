package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeInvalidState, http.StatusBadRequest},
		{CodePersistence, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeInvalidCredentials, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFoundf("book not found with id: %s", "book-1")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))
	assert.Equal(t, "book not found with id: book-1", err.Error())
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("borrow: %w", Conflict("book currently unavailable"))

	assert.True(t, Is(err, ErrConflict))
	assert.Equal(t, CodeConflict, CodeOf(err))
}

func TestPersistence_HidesCauseFromMessage(t *testing.T) {
	err := Persistence(io.ErrUnexpectedEOF, "failed to borrow book")

	assert.Equal(t, "failed to borrow book", err.Message)
	assert.Contains(t, err.Error(), "unexpected EOF")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, Is(err, ErrPersistence))
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestWithDetails_KeepsCodeAndCause(t *testing.T) {
	base := Wrap(io.EOF, CodeValidation, "validation failed")
	detailed := base.WithDetails(map[string]string{"title": "is required"})

	assert.Equal(t, CodeValidation, detailed.Code)
	assert.ErrorIs(t, detailed, io.EOF)
	assert.Nil(t, base.Details)
	assert.NotNil(t, detailed.Details)
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(io.EOF))
}
