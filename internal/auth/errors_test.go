package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "validation",
			err:      validationError("Email is required"),
			wantCode: CodeValidation,
			wantMsg:  "Email is required",
		},
		{
			name:     "conflict",
			err:      conflictError(MsgEmailInUse),
			wantCode: CodeConflict,
			wantMsg:  MsgEmailInUse,
		},
		{
			name:     "authentication",
			err:      authenticationError(MsgInvalidToken),
			wantCode: CodeAuthentication,
			wantMsg:  MsgInvalidToken,
		},
		{
			name:     "rate limited",
			err:      RateLimitError("Too many requests"),
			wantCode: CodeRateLimited,
			wantMsg:  "Too many requests",
		},
		{
			name:     "internal hides cause",
			err:      internalError("create user", errors.New("connection refused")),
			wantCode: CodeInternal,
			wantMsg:  MsgInternal,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: CodeInternal,
			wantMsg:  MsgInternal,
		},
		{
			name:     "wrapped taxonomy error",
			err:      fmt.Errorf("handler: %w", authenticationError(MsgTokenExpired)),
			wantCode: CodeAuthentication,
			wantMsg:  MsgTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, ErrorCode(tt.err))
			assert.Equal(t, tt.wantMsg, PublicMessage(tt.err))
			assert.True(t, IsCode(tt.err, tt.wantCode))
		})
	}
}

func TestRateLimitError_Status(t *testing.T) {
	err := RateLimitError("slow down")
	assert.Equal(t, 429, StatusForCode(ErrorCode(err)))
}

func TestErrorCode_Nil(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.False(t, IsCode(nil, CodeInternal))
}

func TestInternalError_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := internalError("create user", cause)
	assert.ErrorIs(t, err, cause)
}
