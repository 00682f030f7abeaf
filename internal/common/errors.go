package common

import "fmt"

// LimitKind names one of the global ceilings enforced before new work is admitted.
type LimitKind string

const (
	LimitUsers    LimitKind = "USER_LIMIT"
	LimitPhotos   LimitKind = "PHOTO_LIMIT"
	LimitStorage  LimitKind = "STORAGE_LIMIT"
	LimitFileSize LimitKind = "FILE_SIZE"
)

// LimitError reports a rejected request together with the ceiling it hit.
type LimitError struct {
	Kind    LimitKind
	Message string
}

func (e *LimitError) Error() string { return e.Message }

func (e *LimitError) Unwrap() error { return ErrorLimitExceeded }

// VerificationError is returned when an upload does not match object storage.
// The FAILED transition has already been persisted when callers see it.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("upload verification failed: %s", e.Reason)
}

func (e *VerificationError) Unwrap() error { return ErrorVerificationFailed }

// ValidationError carries a user-facing message for malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrorValidation }

// NotFoundError is ErrorNotFound with a user-facing message.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Unwrap() error { return ErrorNotFound }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(message string) error {
	return &NotFoundError{Message: message}
}
