package tsclient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPayload is returned when there is nothing to time-stamp.
	ErrEmptyPayload error = &InputError{Msg: "payload to be time-stamped is empty"}

	// ErrUnsupportedAlgorithm is wrapped by errors for unknown digest
	// algorithms.
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

	// ErrDigestLengthMismatch is matched by DigestLengthMismatchError.
	ErrDigestLengthMismatch = errors.New("digest length does not match digest algorithm")
)

// Validation failure kinds, usable with errors.Is on a *ValidationError.
var (
	ErrMissingToken     = errors.New("time-stamp response contains no token")
	ErrSignatureInvalid = errors.New("time-stamp token signature is invalid")
	ErrDigestMismatch   = errors.New("time-stamp token message imprint does not match request")
	ErrNonceMismatch    = errors.New("time-stamp token nonce does not match request")
	ErrPolicyMismatch   = errors.New("time-stamp token policy is not accepted")
)

// ParseError results from an invalid Time-Stamp request.
type ParseError string

func (p ParseError) Error() string {
	return string(p)
}

// InputError is returned for caller input that is rejected before any network
// or cryptographic work takes place.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Err.Error() + ": " + e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// DigestLengthMismatchError indicates a message imprint whose length differs
// from the output size of its digest algorithm.
type DigestLengthMismatchError struct {
	Algorithm DigestAlgorithm
	Got       int
}

func (e *DigestLengthMismatchError) Error() string {
	return fmt.Sprintf("%s digest must be %d bytes, got %d", e.Algorithm, e.Algorithm.Size(), e.Got)
}

func (e *DigestLengthMismatchError) Is(target error) bool {
	return target == ErrDigestLengthMismatch
}

// EncodingError is returned when a request cannot be serialized.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return "failed to encode Time-Stamp request: " + e.Err.Error()
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// TransportError is returned when the TSA could not be reached or answered
// with a non-success HTTP status. StatusCode is zero when no HTTP response was
// received.
type TransportError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return "received HTTP error: " + e.Status
	case e.Err != nil:
		return "failed to reach TSA: " + e.Err.Error()
	default:
		return "failed to reach TSA"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when the TSA reply does not decode into a
// Time-Stamp response or token.
type MalformedResponseError struct {
	Msg string
	Err error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed Time-Stamp response"
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// RejectionError carries a PKIStatusInfo that did not grant the request.
type RejectionError struct {
	Status        Status
	StatusStrings []string
	FailureInfo   FailureInfo
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Status, strings.Join(e.StatusStrings, ","), e.FailureInfo)
}

// ValidationError is returned when a token fails to bind to the request that
// produced it, or fails cryptographic verification. Kind is one of
// ErrMissingToken, ErrSignatureInvalid, ErrDigestMismatch, ErrNonceMismatch or
// ErrPolicyMismatch.
type ValidationError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *ValidationError) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
