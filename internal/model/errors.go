package model

import (
	"errors"
	"fmt"
)

// FailureKind names a class of user-facing pipeline failure. The transport
// layer maps kinds to client-visible statuses; anything without a kind is an
// internal error and must not leak detail to the caller.
type FailureKind string

const (
	// FailureDecode: input bytes are not a valid document of the declared modality.
	FailureDecode FailureKind = "decode"
	// FailureConversion: extraction ran but recovered no usable tables or text.
	FailureConversion FailureKind = "conversion"
	// FailureReference: an edit addressed a cell that does not exist.
	FailureReference FailureKind = "reference"
	// FailureUnsupportedFormat: unknown export format or input extension.
	FailureUnsupportedFormat FailureKind = "unsupported_format"
)

// DomainError is a typed, user-facing failure with enough structure for the
// transport layer to map to a status without parsing messages.
type DomainError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// DecodeError builds a decode-class failure wrapping the underlying cause.
func DecodeError(message string, cause error) error {
	return &DomainError{Kind: FailureDecode, Message: message, Err: cause}
}

// ConversionError builds a conversion-class failure.
func ConversionError(message string) error {
	return &DomainError{Kind: FailureConversion, Message: message}
}

// ReferenceErrorf builds a reference-class failure.
func ReferenceErrorf(format string, args ...any) error {
	return &DomainError{Kind: FailureReference, Message: fmt.Sprintf(format, args...)}
}

// UnsupportedFormatErrorf builds an unsupported-format failure.
func UnsupportedFormatErrorf(format string, args ...any) error {
	return &DomainError{Kind: FailureUnsupportedFormat, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from anywhere in an error chain.
func KindOf(err error) (FailureKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind FailureKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
