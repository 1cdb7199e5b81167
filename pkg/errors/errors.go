package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure leaving a service is classified as one of these.
var (
	ErrValidation            = errors.New("validation error")
	ErrCredentialMissing     = errors.New("credential missing")
	ErrTransport             = errors.New("transport error")
	ErrUploadRejected        = errors.New("upload rejected")
	ErrMissingEmbedReference = errors.New("missing embed reference")
	ErrPartialAttachment     = errors.New("partial attachment failure")
	ErrPublishFailure        = errors.New("publish failure")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
)

// Error pairs a user-facing message with its kind and the diagnostic cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// Error returns the message followed by the cause, if any.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New creates an error of the given kind.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err as kind with a user-facing message.
func Wrap(err, kind error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// GetKind returns the kind of the outermost classified error.
func GetKind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// GetMessage returns the message meant for the end user.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong, please try again"
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

func IsCredentialMissing(err error) bool { return errors.Is(err, ErrCredentialMissing) }
