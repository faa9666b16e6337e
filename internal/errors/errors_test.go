package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeValidationFailed, "empty peer id")
	assert.Equal(t, "VALIDATION_FAILED: empty peer id", err.Error())

	wrapped := Wrap(errors.New("connection refused"), ErrCodeChatAPI, "send failed")
	assert.Equal(t, "CHAT_API: send failed: connection refused", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrCodeStream, "read failed")

	assert.True(t, errors.Is(err, cause))

	var appErr *AppError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &appErr))
	assert.Equal(t, ErrCodeStream, appErr.Code)
}

func TestNewAPIError_Retryability(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		retryable  bool
	}{
		{"server error", 500, true},
		{"rate limited", 429, true},
		{"request timeout", 408, true},
		{"transport failure", 0, true},
		{"validation rejection", 422, false},
		{"unauthorized", 401, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError("/send/u2", tt.statusCode, "", errors.New("request failed"))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestNewAPIError_UserMessage(t *testing.T) {
	withServerMsg := NewAPIError("/send/u2", 422, "Message too long", errors.New("rejected"))
	assert.Equal(t, "Message too long", GetUserMessage(withServerMsg))

	withoutServerMsg := NewAPIError("/send/u2", 500, "", errors.New("rejected"))
	assert.Equal(t, "Something went wrong, please try again", GetUserMessage(withoutServerMsg))
}

func TestGetUserMessage_PlainError(t *testing.T) {
	assert.Equal(t, "Something went wrong, please try again", GetUserMessage(errors.New("raw")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, GetCode(NewTimeoutError("send message")))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("raw")))
}

func TestNewTimeoutError(t *testing.T) {
	err := NewTimeoutError("send message")
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "Request timed out, please try again", GetUserMessage(err))
}
