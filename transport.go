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
	"context"
	"sync"
	"time"
)

// Transport defines the interface for exchanging APDUs with a card.
// Implementations exist for serial-attached PN532 readers and PC/SC
// readers; HCE and NFC reader-mode callbacks on the host side satisfy the
// same contract.
type Transport interface {
	// Connect establishes the card connection
	Connect(ctx context.Context) error

	// Exchange sends a command APDU and waits for the response APDU,
	// status word included
	Exchange(ctx context.Context, command []byte) ([]byte, error)

	// Close releases the card connection
	Close() error

	// SetTimeout sets the per-command budget for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents a serial-attached PN532 reader bridge.
	TransportUART TransportType = "uart"
	// TransportPCSC represents a PC/SC smart card reader.
	TransportPCSC TransportType = "pcsc"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides a mock implementation of Transport for testing.
// Responses are keyed by command hex; unmatched commands fall back to a
// 6A82 (file not found) response so a scripted session never hangs.
type MockTransport struct {
	responses map[string][]byte
	errorMap  map[string]error
	callCount map[string]int
	sent      [][]byte
	timeout   time.Duration
	delay     time.Duration
	mu        sync.RWMutex
	connected bool
	connectErr error
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[string][]byte),
		errorMap:  make(map[string]error),
		callCount: make(map[string]int),
		timeout:   time.Second,
	}
}

// Connect implements Transport
func (m *MockTransport) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

// Exchange implements Transport
func (m *MockTransport) Exchange(ctx context.Context, command []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return nil, ErrNotConnected
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	key := BytesToHex(command)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount[key]++
	cmd := make([]byte, len(command))
	copy(cmd, command)
	m.sent = append(m.sent, cmd)

	if err, exists := m.errorMap[key]; exists {
		return nil, err
	}
	if response, exists := m.responses[key]; exists {
		return response, nil
	}

	// Unknown command: file not found
	return []byte{0x6A, 0x82}, nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// SetTimeout implements Transport
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// SetResponse configures a response for a specific command hex
func (m *MockTransport) SetResponse(commandHex string, response []byte) {
	m.mu.Lock()
	m.responses[normalizeHexKey(commandHex)] = response
	m.mu.Unlock()
}

// SetResponseHex configures a hex response for a specific command hex
func (m *MockTransport) SetResponseHex(commandHex, responseHex string) {
	response, err := HexToBytes(responseHex)
	if err != nil {
		panic("mock transport: bad response hex: " + responseHex)
	}
	m.SetResponse(commandHex, response)
}

// SetError configures an error to be returned for a specific command hex
func (m *MockTransport) SetError(commandHex string, err error) {
	m.mu.Lock()
	m.errorMap[normalizeHexKey(commandHex)] = err
	m.mu.Unlock()
}

// SetConnectError makes Connect fail with the given error
func (m *MockTransport) SetConnectError(err error) {
	m.mu.Lock()
	m.connectErr = err
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate reader response time
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// CallCount returns how many times a command was exchanged
func (m *MockTransport) CallCount(commandHex string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[normalizeHexKey(commandHex)]
}

// SentCommands returns every command exchanged, in order
func (m *MockTransport) SentCommands() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

func normalizeHexKey(s string) string {
	b, err := HexToBytes(s)
	if err != nil {
		panic("mock transport: bad command hex: " + s)
	}
	return BytesToHex(b)
}
