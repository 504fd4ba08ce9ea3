// Package feederr defines the error taxonomy shared by the photo feed engine.
//
// Every failure is terminal for the single operation that raised it and is
// reported through a signal or callback, never across the async boundary.
package feederr

import (
	"errors"
	"fmt"
)

// Class represents a classification of feed errors.
type Class string

const (
	// ClassTransport represents network, DNS and timeout failures.
	ClassTransport Class = "transport"

	// ClassHTTPStatus represents non-2xx responses.
	ClassHTTPStatus Class = "http_status"

	// ClassParse represents malformed page documents.
	ClassParse Class = "parse"

	// ClassDecode represents bytes that are not a valid image.
	ClassDecode Class = "decode"

	// ClassRateLimit represents requests refused locally because the API quota is exhausted.
	ClassRateLimit Class = "rate_limit"

	// ClassCancelled represents operations abandoned by a reset or shutdown.
	ClassCancelled Class = "cancelled"

	classUnknown Class = "unknown"
)

var (
	// ErrRateLimited is wrapped by errors of ClassRateLimit.
	ErrRateLimited = errors.New("api quota exhausted")

	// ErrCancelled is wrapped by errors of ClassCancelled.
	ErrCancelled = errors.New("operation cancelled")
)

// Error is a classified feed error.
type Error struct {
	Class      Class
	StatusCode int
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps a network level failure.
func Transport(url string, err error) *Error {
	return &Error{Class: ClassTransport, URL: url, Err: err}
}

// HTTPStatus reports a non-2xx response.
func HTTPStatus(url string, statusCode int) *Error {
	return &Error{Class: ClassHTTPStatus, URL: url, StatusCode: statusCode}
}

// Parse wraps a document level parse failure.
func Parse(url string, err error) *Error {
	return &Error{Class: ClassParse, URL: url, Err: err}
}

// Decode wraps an image decode failure.
func Decode(url string, err error) *Error {
	return &Error{Class: ClassDecode, URL: url, Err: err}
}

// RateLimited reports a request refused by the quota tracker.
func RateLimited(url string) *Error {
	return &Error{Class: ClassRateLimit, URL: url, Err: ErrRateLimited}
}

// Cancelled reports an operation abandoned before completion.
func Cancelled(url string, cause error) *Error {
	if cause == nil {
		cause = ErrCancelled
	} else {
		cause = fmt.Errorf("%w: %v", ErrCancelled, cause)
	}
	return &Error{Class: ClassCancelled, URL: url, Err: cause}
}

// ClassOf returns the class of err, or "unknown" when err is not a feed error.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return classUnknown
}

// IsClass reports whether err is a feed error of the given class.
func IsClass(err error, class Class) bool {
	return err != nil && ClassOf(err) == class
}
