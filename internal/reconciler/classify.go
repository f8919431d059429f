package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

// Class is the classifier's verdict on a submission error.
type Class int

const (
	// ClassFatal is a definitive rejection. Surface it; do not poll.
	ClassFatal Class = iota
	// ClassAmbiguous means no response was received. The job may still be
	// running, so poll for its record.
	ClassAmbiguous
	// ClassCanceled means the caller gave up.
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassAmbiguous:
		return "ambiguous"
	case ClassCanceled:
		return "canceled"
	}
	return "unknown"
}

// FatalError is a definitive failure. StatusCode and Body are set when the
// endpoint answered with a non-2xx response.
type FatalError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *FatalError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("analysis endpoint returned %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("analysis endpoint returned %d", e.StatusCode)
	case e.Err != nil:
		return e.Err.Error()
	}
	return "analysis failed"
}

func (e *FatalError) Unwrap() error { return e.Err }

// Classify decides how the reconciler reacts to a submission error. Errors
// that prove a response was received, or that the request was never valid,
// are fatal. Transport-level failures where no response arrived are
// ambiguous. Anything unrecognised is fatal.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}

	var fatal *FatalError
	if errors.As(err, &fatal) || errors.Is(err, ErrInvalidJob) {
		return ClassFatal
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return ClassAmbiguous
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassAmbiguous
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassAmbiguous
	}
	return ClassFatal
}
