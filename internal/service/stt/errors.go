package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrorCode classifies a recognition error.
type ErrorCode string

const (
	CodeNoSpeech             ErrorCode = "no-speech"
	CodeAborted              ErrorCode = "aborted"
	CodeNotAllowed           ErrorCode = "not-allowed"
	CodeServiceNotAllowed    ErrorCode = "service-not-allowed"
	CodeAudioCapture         ErrorCode = "audio-capture"
	CodeNetwork              ErrorCode = "network"
	CodeLanguageNotSupported ErrorCode = "language-not-supported"
	CodeUnknown              ErrorCode = "unknown"
)

// Recoverable reports whether the code means nothing went wrong yet:
// no speech heard so far, or the stream was stopped on purpose.
func (c ErrorCode) Recoverable() bool {
	return c == CodeNoSpeech || c == CodeAborted
}

// PermissionDenied reports whether the code means access was refused.
func (c ErrorCode) PermissionDenied() bool {
	return c == CodeNotAllowed || c == CodeServiceNotAllowed
}

// Error is a classified recognition error.
type Error struct {
	Code ErrorCode
	Err  error
}

// NewError wraps err with a code. err may be nil.
func NewError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stt: %s", e.Code)
	}
	return fmt.Sprintf("stt: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of err. Context cancellation and end of stream
// count as aborted; any other unclassified error is unknown.
func CodeOf(err error) ErrorCode {
	var sttErr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sttErr):
		return sttErr.Code
	case errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return CodeAborted
	case errors.Is(err, context.DeadlineExceeded):
		return CodeNoSpeech
	default:
		return CodeUnknown
	}
}
