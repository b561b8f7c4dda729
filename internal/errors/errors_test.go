package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ValidationError("score out of range")
		assert.Equal(t, "validation: score out of range", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := InternalError("store query failed", cause)
		assert.Equal(t, "internal: store query failed: connection refused", err.Error())
	})
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := InternalError("wrapped", cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		errType ErrorType
		status  int
	}{
		{TypeValidation, http.StatusBadRequest},
		{TypeNotFound, http.StatusNotFound},
		{TypeRateLimited, http.StatusTooManyRequests},
		{TypeInternal, http.StatusInternalServerError},
		{TypeExternal, http.StatusBadGateway},
		{ErrorType("bogus"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := &Error{Type: tt.errType, Message: "msg"}
			assert.Equal(t, tt.status, err.HTTPStatus())
		})
	}
}

func TestError_WithField(t *testing.T) {
	err := RateLimitedError("slow down").
		WithField("retry_after_seconds", int64(42)).
		WithField("ratee", "1234")

	assert.Equal(t, int64(42), err.Context["retry_after_seconds"])
	assert.Equal(t, "1234", err.Context["ratee"])
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("structured error passes through", func(t *testing.T) {
		orig := NotFoundError("user not found")
		assert.Same(t, orig, AsStructuredError(orig))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		plain := fmt.Errorf("plain")
		err := AsStructuredError(plain)
		require.NotNil(t, err)
		assert.Equal(t, TypeInternal, err.Type)
		assert.ErrorIs(t, err, plain)
	})
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		code    int
		errType ErrorType
	}{
		{http.StatusBadRequest, TypeValidation},
		{http.StatusNotFound, TypeNotFound},
		{http.StatusTooManyRequests, TypeRateLimited},
		{http.StatusBadGateway, TypeExternal},
		{http.StatusTeapot, TypeInternal},
	}

	for _, tt := range tests {
		httpErr := echo.NewHTTPError(tt.code, "msg")
		wrapped := WrapHTTPError(httpErr)
		assert.Equal(t, tt.errType, wrapped.Type)
		assert.Equal(t, "msg", wrapped.Message)
	}
}
