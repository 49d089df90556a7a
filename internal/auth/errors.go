package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes surfaced to the transport layer.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeConflict       = "CONFLICT"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL_ERROR"
)

// Messages shared between flows. Login failures for unknown emails and wrong
// passwords must stay identical.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgAccountDeactivated = "Account is deactivated"
	MsgEmailInUse         = "Email already in use"
	MsgInvalidResetToken  = "Invalid or expired reset token"
	MsgTokenRequired      = "Access token required"
	MsgInvalidToken       = "Invalid token"
	MsgTokenExpired       = "Token expired"
	MsgTokenRevoked       = "Token revoked"
	MsgInvalidUser        = "Invalid or inactive user"
	MsgInternal           = "Internal server error"
	MsgForgotPassword     = "If an account with that email exists, a password reset link has been sent"
	MsgPasswordReset      = "Password has been reset successfully"
)

func validationError(msg string) error {
	return oops.Code(CodeValidation).Public(msg).Errorf("%s", msg)
}

func conflictError(msg string) error {
	return oops.Code(CodeConflict).Public(msg).Errorf("%s", msg)
}

func authenticationError(msg string) error {
	return oops.Code(CodeAuthentication).Public(msg).Errorf("%s", msg)
}

// RateLimitError is returned to clients that exhausted a limiter window.
func RateLimitError(msg string) error {
	return oops.Code(CodeRateLimited).Public(msg).Errorf("%s", msg)
}

func internalError(operation string, err error) error {
	return oops.Code(CodeInternal).
		With("operation", operation).
		Public(MsgInternal).
		Wrap(err)
}

// ErrorCode returns the taxonomy code carried by err, CodeInternal for
// anything that did not pass through the service boundary.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return CodeInternal
	}
	switch oopsErr.Code() {
	case CodeValidation:
		return CodeValidation
	case CodeConflict:
		return CodeConflict
	case CodeAuthentication:
		return CodeAuthentication
	case CodeRateLimited:
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// PublicMessage is the text safe to show a client for err.
func PublicMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return MsgInternal
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Public() == "" {
		return MsgInternal
	}
	return oopsErr.Public()
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// Store sentinels. Implementations of Repository return these.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrResetTokenInvalid = errors.New("reset token not found or expired")
)
