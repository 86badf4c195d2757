// Copyright 2026 The magsp00f Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emv

import (
	"errors"
	"fmt"
	"io"
)

// Error categories for retry and degradation decisions
var (
	// Transport errors - potentially retryable on a fresh session
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrNotConnected     = errors.New("transport not connected")
	ErrCardLost         = errors.New("card left the field")

	// Protocol errors - the session degrades but continues where possible
	ErrMalformedTLV    = errors.New("malformed TLV data")
	ErrTruncatedAFL    = errors.New("AFL is not a multiple of 4 bytes")
	ErrMissingTag      = errors.New("expected tag not present")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrEmptyResponse   = errors.New("empty response from card")

	// Data errors - not retryable
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidHex       = errors.New("invalid hex string")
)

// ErrorType represents the category of error for session handling
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// ProtocolError describes a malformed or unexpected card response. The read
// session logs these and proceeds in degraded mode; they never abort the
// host process.
type ProtocolError struct {
	Err         error  // Underlying category error
	Step        string // Protocol step that observed the problem
	ResponseHex string // Offending response, if any
}

func (e *ProtocolError) Error() string {
	if e.ResponseHex != "" {
		return fmt.Sprintf("%s: %v (response %s)", e.Step, e.Err, e.ResponseHex)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a protocol error for the given session step
func NewProtocolError(step string, err error, responseHex string) *ProtocolError {
	return &ProtocolError{Step: step, Err: err, ResponseHex: responseHex}
}

// IsRetryable returns true if the error is potentially retryable on a fresh
// session against the same card.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the card or reader is gone and
// the session cannot make further progress. This is distinct from
// IsRetryable, which describes whether a fresh session could succeed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrCardLost),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// IsProtocol returns true if the error is a protocol-level degradation
// rather than a transport failure.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
