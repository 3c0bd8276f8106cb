// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure surfaced to the caller of a conversion.
type ErrorKind string

const (
	KindInvalidIdentifier         ErrorKind = "InvalidIdentifier"
	KindUnsupportedFilesystem     ErrorKind = "UnsupportedFilesystem"
	KindDeviceBusy                ErrorKind = "DeviceBusy"
	KindDeviceChanged             ErrorKind = "DeviceChanged"
	KindDetectionFailed           ErrorKind = "DetectionFailed"
	KindInsufficientSpace         ErrorKind = "InsufficientSpace"
	KindStagingAllocationFailed   ErrorKind = "StagingAllocationFailed"
	KindCopyFailed                ErrorKind = "CopyFailed"
	KindUnmountFailed             ErrorKind = "UnmountFailed"
	KindFormatFailed              ErrorKind = "FormatFailed"
	KindDeviceNotReadyAfterFormat ErrorKind = "DeviceNotReadyAfterFormat"
	KindTimeout                   ErrorKind = "Timeout"
	KindConversionInProgress      ErrorKind = "ConversionInProgress"
	KindCancelled                 ErrorKind = "Cancelled"
	KindUnexpectedFailure         ErrorKind = "UnexpectedFailure"
)

// Error is a classified conversion failure. Message is human readable and
// is what the GUI shows; Err carries the underlying cause when there is one.
type Error struct {
	Kind    ErrorKind
	Device  string
	Message string
	Err     error
}

// NewError builds a classified error.
func NewError(kind ErrorKind, device, message string, err error) *Error {
	return &Error{Kind: kind, Device: device, Message: message, Err: err}
}

// Errorf builds a classified error with a formatted message and no cause.
func Errorf(kind ErrorKind, device, format string, args ...any) *Error {
	return &Error{Kind: kind, Device: device, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, ErrKind(k))
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// ErrKind returns a sentinel matching any *Error of kind k under errors.Is.
func ErrKind(k ErrorKind) error {
	return &Error{Kind: k}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnexpectedFailure when err carries no classification.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpectedFailure
}

// Classify returns err unchanged when it is already classified and wraps it
// as kind otherwise.
func Classify(err error, kind ErrorKind, device string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(kind, device, err.Error(), err)
}

// Cancelled builds the error reported when a run is stopped on request.
func Cancelled(device string, err error) *Error {
	return NewError(KindCancelled, device, "conversion cancelled", err)
}
