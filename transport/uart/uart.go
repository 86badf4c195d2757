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

// Package uart bridges the card session to a PN532 reader attached over a
// serial port (USB or Bluetooth serial). APDUs are framed through the
// PN532 InDataExchange command; everything above this package sees only
// the Transport contract.
package uart

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"

	emv "github.com/magsp00f/go-emv"
)

// PN532 command codes used by the bridge.
const (
	cmdSAMConfiguration    = 0x14
	cmdInListPassiveTarget = 0x4A
	cmdInDataExchange      = 0x40
	cmdInRelease           = 0x52

	hostToPn532 = 0xD4
	pn532ToHost = 0xD5
)

const defaultBaudRate = 115200

// ackFrame is the fixed acknowledge the PN532 sends after a valid command
// frame.
var ackFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// wakeupSequence precedes the first command after power-up; the long
// preamble gives the chip time to leave low-VBAT mode.
var wakeupSequence = []byte{
	0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Transport talks to a PN532 over a serial port and exposes the card
// behind it through the emv.Transport contract.
type Transport struct {
	port      serial.Port
	portName  string
	timeout   time.Duration
	connected bool
	target    byte
}

// New opens the serial port. The card connection itself is established by
// Connect, which wakes the chip and selects a passive target.
func New(portName string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, emv.NewTransportError("open", portName, err, emv.ErrorTypePermanent)
	}
	t := &Transport{
		port:     port,
		portName: portName,
		timeout:  emv.DefaultCommandTimeout,
	}
	if err := port.SetReadTimeout(t.timeout); err != nil {
		_ = port.Close()
		return nil, emv.NewTransportError("set timeout", portName, err, emv.ErrorTypePermanent)
	}
	return t, nil
}

// Connect wakes the PN532, configures the SAM and waits for an ISO14443-A
// card in the field.
func (t *Transport) Connect(ctx context.Context) error {
	if _, err := t.port.Write(wakeupSequence); err != nil {
		return emv.NewTransportError("wakeup", t.portName, err, emv.ErrorTypeTransient)
	}

	// Normal mode, no virtual card, no timeout multiplier
	if _, err := t.command(ctx, cmdSAMConfiguration, []byte{0x01, 0x14, 0x01}); err != nil {
		return fmt.Errorf("SAM configuration: %w", err)
	}

	// One ISO14443-A target at 106 kbps
	resp, err := t.command(ctx, cmdInListPassiveTarget, []byte{0x01, 0x00})
	if err != nil {
		return fmt.Errorf("list passive target: %w", err)
	}
	if len(resp) < 1 || resp[0] == 0 {
		return emv.NewTransportError("detect", t.portName, emv.ErrCardLost, emv.ErrorTypeTimeout)
	}
	t.target = 1
	t.connected = true
	emv.Debugf("uart: card present on %s", t.portName)
	return nil
}

// Exchange sends an APDU through InDataExchange and returns the response
// APDU, status word included.
func (t *Transport) Exchange(ctx context.Context, command []byte) ([]byte, error) {
	if !t.connected {
		return nil, emv.ErrNotConnected
	}

	args := make([]byte, 0, 1+len(command))
	args = append(args, t.target)
	args = append(args, command...)

	resp, err := t.command(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, emv.NewTransportError("exchange", t.portName, emv.ErrInvalidResponse, emv.ErrorTypeTransient)
	}
	if status := resp[0] & 0x3F; status != 0 {
		// 0x29 and 0x2B report the target released or gone
		if status == 0x29 || status == 0x2B {
			t.connected = false
			return nil, emv.NewTransportError("exchange", t.portName, emv.ErrCardLost, emv.ErrorTypePermanent)
		}
		return nil, emv.NewTransportError("exchange", t.portName,
			fmt.Errorf("%w: PN532 status 0x%02X", emv.ErrInvalidResponse, status), emv.ErrorTypeTransient)
	}
	return resp[1:], nil
}

// Close releases the target and the serial port. Safe to call once per
// session on every exit path.
func (t *Transport) Close() error {
	if t.connected {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, _ = t.command(ctx, cmdInRelease, []byte{t.target})
		cancel()
		t.connected = false
	}
	if err := t.port.Close(); err != nil {
		return emv.NewTransportError("close", t.portName, err, emv.ErrorTypePermanent)
	}
	return nil
}

// SetTimeout sets the per-command read budget.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return emv.NewTransportError("set timeout", t.portName, err, emv.ErrorTypePermanent)
	}
	return nil
}

// IsConnected reports whether a card target is selected.
func (t *Transport) IsConnected() bool {
	return t.connected
}

// Type implements emv.Transport.
func (*Transport) Type() emv.TransportType {
	return emv.TransportUART
}

// command runs one PN532 command frame: write, ack, response.
func (t *Transport) command(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.sendFrame(cmd, args); err != nil {
		return nil, err
	}
	if err := t.waitAck(); err != nil {
		return nil, err
	}
	return t.receiveFrame(cmd)
}

// sendFrame writes a normal information frame:
// 00 00 FF LEN LCS TFI CMD ARGS... DCS 00
func (t *Transport) sendFrame(cmd byte, args []byte) error {
	dataLen := byte(len(args) + 2) // TFI + CMD
	frame := make([]byte, 0, 8+len(args))
	frame = append(frame, 0x00, 0x00, 0xFF, dataLen, ^dataLen+1, hostToPn532, cmd)
	frame = append(frame, args...)

	sum := hostToPn532 + cmd
	for _, b := range args {
		sum += b
	}
	frame = append(frame, ^sum+1, 0x00)

	if _, err := t.port.Write(frame); err != nil {
		return emv.NewTransportError("write", t.portName, err, emv.ErrorTypeTransient)
	}
	return nil
}

// waitAck reads until the fixed ack frame appears or the read times out.
func (t *Transport) waitAck() error {
	buf := make([]byte, 0, len(ackFrame))
	single := make([]byte, 1)
	deadline := time.Now().Add(t.timeout)
	for time.Now().Before(deadline) {
		n, err := t.port.Read(single)
		if err != nil {
			return emv.NewTransportError("ack", t.portName, err, emv.ErrorTypeTransient)
		}
		if n == 0 {
			return emv.NewTimeoutError("ack", t.portName)
		}
		buf = append(buf, single[0])
		if len(buf) > len(ackFrame) {
			buf = buf[1:]
		}
		if len(buf) == len(ackFrame) && matches(buf, ackFrame) {
			return nil
		}
	}
	return emv.NewTimeoutError("ack", t.portName)
}

// receiveFrame reads and validates a response frame for the given command.
func (t *Transport) receiveFrame(cmd byte) ([]byte, error) {
	header := make([]byte, 5)
	if err := t.readFull(header); err != nil {
		return nil, err
	}
	// Align on the 00 00 FF start sequence; some adapters emit leading noise
	for !(header[0] == 0x00 && header[1] == 0x00 && header[2] == 0xFF) {
		copy(header, header[1:])
		if err := t.readFull(header[4:]); err != nil {
			return nil, err
		}
	}
	dataLen := int(header[3])
	if byte(dataLen)+header[4] != 0 {
		return nil, emv.NewTransportError("receive", t.portName,
			fmt.Errorf("%w: length checksum", emv.ErrInvalidResponse), emv.ErrorTypeTransient)
	}

	body := make([]byte, dataLen+2) // data + DCS + postamble
	if err := t.readFull(body); err != nil {
		return nil, err
	}

	sum := byte(0)
	for _, b := range body[:dataLen+1] {
		sum += b
	}
	if sum != 0 {
		return nil, emv.NewTransportError("receive", t.portName,
			fmt.Errorf("%w: data checksum", emv.ErrInvalidResponse), emv.ErrorTypeTransient)
	}
	if dataLen < 2 || body[0] != pn532ToHost || body[1] != cmd+1 {
		return nil, emv.NewTransportError("receive", t.portName,
			fmt.Errorf("%w: unexpected frame", emv.ErrInvalidResponse), emv.ErrorTypeTransient)
	}
	return body[2:dataLen], nil
}

// readFull reads exactly len(buf) bytes or reports a timeout.
func (t *Transport) readFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := t.port.Read(buf[read:])
		if err != nil {
			return emv.NewTransportError("read", t.portName, err, emv.ErrorTypeTransient)
		}
		if n == 0 {
			return emv.NewTimeoutError("read", t.portName)
		}
		read += n
	}
	return nil
}

func matches(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
