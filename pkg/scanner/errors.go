package scanner

import (
	"errors"
	"fmt"
)

// Kind is the stable machine-readable tag carried by every engine error.
type Kind string

const (
	KindDeviceNotFound   Kind = "device_not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindConnection       Kind = "connection_error"
	KindTransferTimeout  Kind = "transfer_timeout"
	KindTransfer         Kind = "transfer_error"
	KindAlreadyCapturing Kind = "already_capturing"
	KindNoFinger         Kind = "no_finger_detected"
	KindLowQuality       Kind = "low_quality"
	KindCorruptTemplate  Kind = "corrupt_template"
)

// Error is the engine error type: a human-readable message plus a stable
// kind tag, optionally wrapping a transport cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two engine errors by kind, so sentinel comparisons like
// errors.Is(err, ErrAlreadyCapturing) work regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrDeviceNotFound   = &Error{Kind: KindDeviceNotFound, Message: "no fingerprint scanner found"}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied, Message: "permission denied opening scanner"}
	ErrAlreadyCapturing = &Error{Kind: KindAlreadyCapturing, Message: "a capture is already in progress"}
	ErrNoFinger         = &Error{Kind: KindNoFinger, Message: "no finger detected before timeout"}
	ErrLowQuality       = &Error{Kind: KindLowQuality, Message: "image quality too low"}
)

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the kind tag from any error returned by the engine;
// unknown errors report as connection errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindConnection
}
