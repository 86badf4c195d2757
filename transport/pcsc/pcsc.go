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

// Package pcsc runs the card session over a PC/SC smart card reader. Any
// CCID reader the platform's pcscd knows about works, contactless or
// contact.
package pcsc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ebfe/scard"

	emv "github.com/magsp00f/go-emv"
)

// Transport drives a PC/SC reader through the platform smart card service
// and exposes the inserted card via the emv.Transport contract.
type Transport struct {
	ctx       *scard.Context
	card      *scard.Card
	reader    string
	timeout   time.Duration
	connected bool
}

// New establishes the PC/SC context and resolves the reader. An empty
// reader name selects the first reader the service reports.
func New(reader string) (*Transport, error) {
	sctx, err := scard.EstablishContext()
	if err != nil {
		return nil, emv.NewTransportError("establish context", reader, err, emv.ErrorTypePermanent)
	}

	readers, err := sctx.ListReaders()
	if err != nil {
		_ = sctx.Release()
		return nil, emv.NewTransportError("list readers", reader, err, emv.ErrorTypePermanent)
	}
	if len(readers) == 0 {
		_ = sctx.Release()
		return nil, emv.NewTransportError("list readers", reader, fmt.Errorf("no readers available"), emv.ErrorTypePermanent)
	}

	resolved := ""
	if reader == "" {
		resolved = readers[0]
	} else {
		for _, r := range readers {
			if strings.Contains(r, reader) {
				resolved = r
				break
			}
		}
		if resolved == "" {
			_ = sctx.Release()
			return nil, emv.NewTransportError("resolve reader", reader, fmt.Errorf("reader not found"), emv.ErrorTypePermanent)
		}
	}

	return &Transport{
		ctx:     sctx,
		reader:  resolved,
		timeout: emv.DefaultCommandTimeout,
	}, nil
}

// Reader returns the resolved reader name.
func (t *Transport) Reader() string {
	return t.reader
}

// Connect waits for a card in the reader and connects to it with the T=1
// protocol preferred.
func (t *Transport) Connect(ctx context.Context) error {
	states := []scard.ReaderState{{Reader: t.reader, CurrentState: scard.StateUnaware}}
	deadline := time.Now().Add(t.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.ctx.GetStatusChange(states, 250*time.Millisecond); err != nil && err != scard.ErrTimeout {
			return emv.NewTransportError("status change", t.reader, err, emv.ErrorTypeTransient)
		}
		if states[0].EventState&scard.StatePresent != 0 {
			break
		}
		states[0].CurrentState = states[0].EventState
		if time.Now().After(deadline) {
			return emv.NewTimeoutError("wait for card", t.reader)
		}
	}

	card, err := t.ctx.Connect(t.reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return emv.NewTransportError("connect", t.reader, err, emv.ErrorTypeTransient)
	}
	t.card = card
	t.connected = true
	emv.Debugf("pcsc: connected to %s", t.reader)
	return nil
}

// Exchange transmits one APDU and returns the full response, status word
// included.
func (t *Transport) Exchange(ctx context.Context, command []byte) ([]byte, error) {
	if !t.connected || t.card == nil {
		return nil, emv.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := t.card.Transmit(command)
	if err != nil {
		if err == scard.ErrRemovedCard || err == scard.ErrNoSmartcard {
			t.connected = false
			return nil, emv.NewTransportError("transmit", t.reader, emv.ErrCardLost, emv.ErrorTypePermanent)
		}
		return nil, emv.NewTransportError("transmit", t.reader, err, emv.ErrorTypeTransient)
	}
	if len(resp) < 2 {
		return nil, emv.NewTransportError("transmit", t.reader, emv.ErrInvalidResponse, emv.ErrorTypeTransient)
	}
	return resp, nil
}

// Close disconnects the card and releases the PC/SC context.
func (t *Transport) Close() error {
	var firstErr error
	if t.card != nil {
		if err := t.card.Disconnect(scard.LeaveCard); err != nil {
			firstErr = emv.NewTransportError("disconnect", t.reader, err, emv.ErrorTypePermanent)
		}
		t.card = nil
	}
	t.connected = false
	if err := t.ctx.Release(); err != nil && firstErr == nil {
		firstErr = emv.NewTransportError("release context", t.reader, err, emv.ErrorTypePermanent)
	}
	return firstErr
}

// SetTimeout sets the budget used while waiting for card presence. PC/SC
// transmits are bounded by the service itself.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

// IsConnected reports whether a card connection is active.
func (t *Transport) IsConnected() bool {
	return t.connected
}

// Type implements emv.Transport.
func (*Transport) Type() emv.TransportType {
	return emv.TransportPCSC
}
