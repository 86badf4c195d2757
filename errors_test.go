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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := NewTransportError("write", "/dev/ttyUSB0", ErrTransportWrite, ErrorTypeTransient)
	assert.Equal(t, "write /dev/ttyUSB0: transport write failed", err.Error())
	assert.True(t, err.Retryable)
	require.ErrorIs(t, err, ErrTransportWrite)

	noPort := NewTransportError("detect", "", ErrCardLost, ErrorTypePermanent)
	assert.Equal(t, "detect: card left the field", noPort.Error())
	assert.False(t, noPort.Retryable)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRetryable(NewTimeoutError("read", "mock")))
	assert.True(t, IsRetryable(NewTransportError("read", "mock", ErrTransportRead, ErrorTypeTransient)))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrTransportTimeout)))

	assert.False(t, IsRetryable(NewTransportError("open", "mock", ErrTransportClosed, ErrorTypePermanent)))
	assert.False(t, IsRetryable(ErrInvalidParameter))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	assert.True(t, IsFatal(NewTransportError("exchange", "mock", ErrCardLost, ErrorTypePermanent)))
	assert.True(t, IsFatal(ErrCardLost))
	assert.True(t, IsFatal(ErrNotConnected))
	assert.True(t, IsFatal(io.EOF))

	assert.False(t, IsFatal(NewTimeoutError("read", "mock")))
	assert.False(t, IsFatal(ErrMalformedTLV))
	assert.False(t, IsFatal(nil))
}

func TestProtocolError(t *testing.T) {
	t.Parallel()

	err := NewProtocolError("SELECT AID", ErrInvalidResponse, "6A82")
	assert.Equal(t, "SELECT AID: invalid response format (response 6A82)", err.Error())
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.True(t, IsProtocol(err))
	assert.True(t, IsProtocol(fmt.Errorf("outer: %w", err)))

	bare := NewProtocolError("GPO", ErrEmptyResponse, "")
	assert.Equal(t, "GPO: empty response from card", bare.Error())

	assert.False(t, IsProtocol(errors.New("plain")))
}
