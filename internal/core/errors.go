package core

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeSpaceNotFound        = "space_not_found"
	ErrCodeUnknownRecipient     = "unknown_recipient"
	ErrCodeNotInSpace           = "not_in_space"
	ErrCodeBadRequest           = "bad_request"
	ErrCodeInternal             = "internal_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// Terminal reports whether the error should close the connection.
func (e *CoreError) Terminal() bool {
	return e.Code == ErrCodeAuthenticationFailed || e.Code == ErrCodeSpaceNotFound
}
