package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can pick a recovery strategy.
type ErrorKind string

const (
	KindDirectory       ErrorKind = "DIRECTORY_ERROR"
	KindWrite           ErrorKind = "WRITE_ERROR"
	KindCompression     ErrorKind = "COMPRESSION_ERROR"
	KindCleanup         ErrorKind = "CLEANUP_ERROR"
	KindNotFound        ErrorKind = "NOT_FOUND_ERROR"
	KindCorruptArtifact ErrorKind = "CORRUPT_ARTIFACT_ERROR"
	KindInvalidSchedule ErrorKind = "INVALID_SCHEDULE_ERROR"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrDirectory       = &Error{Kind: KindDirectory}
	ErrWrite           = &Error{Kind: KindWrite}
	ErrCompression     = &Error{Kind: KindCompression}
	ErrCleanup         = &Error{Kind: KindCleanup}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrCorruptArtifact = &Error{Kind: KindCorruptArtifact}
	ErrInvalidSchedule = &Error{Kind: KindInvalidSchedule}

	ErrRecordNotFound = errors.New("metadata record not found")
)

// Error is the failure type returned by every backup operation.
type Error struct {
	Kind    ErrorKind
	Name    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Name != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Name)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Name != "" || t.Message != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

func NewError(kind ErrorKind, name, message string, cause error) *Error {
	return &Error{Kind: kind, Name: name, Message: message, Err: cause}
}

func NewDirectoryError(path string, cause error) *Error {
	return NewError(KindDirectory, path, "failed to ensure directory", cause)
}

func NewWriteError(name, message string, cause error) *Error {
	return NewError(KindWrite, name, message, cause)
}

func NewCompressionError(name, message string, cause error) *Error {
	return NewError(KindCompression, name, message, cause)
}

func NewCleanupError(name string, cause error) *Error {
	return NewError(KindCleanup, name, "failed to remove uncompressed intermediate", cause)
}

func NewNotFoundError(name string, cause error) *Error {
	return NewError(KindNotFound, name, "backup not found", cause)
}

func NewCorruptArtifactError(name, message string, cause error) *Error {
	return NewError(KindCorruptArtifact, name, message, cause)
}

func NewInvalidScheduleError(expr string, cause error) *Error {
	return NewError(KindInvalidSchedule, expr, "invalid cron expression", cause)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
