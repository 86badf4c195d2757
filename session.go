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
	"fmt"
	"time"
)

// SessionState tracks progress through the fixed contactless read sequence.
// Transitions are strictly sequential and one-directional; a fresh session
// is required to retry.
type SessionState int

const (
	// StateIdle is the initial state before any command is issued.
	StateIdle SessionState = iota
	// StatePpseSelected follows a SELECT PPSE exchange.
	StatePpseSelected
	// StateAidSelected follows a SELECT AID exchange.
	StateAidSelected
	// StateGpoProcessed follows a GET PROCESSING OPTIONS exchange.
	StateGpoProcessed
	// StateRecordsRead follows the AFL-driven READ RECORD exchanges.
	StateRecordsRead
	// StateComplete means the CardData snapshot has been assembled.
	StateComplete
	// StateError is terminal, reached when further progress is meaningless.
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePpseSelected:
		return "PpseSelected"
	case StateAidSelected:
		return "AidSelected"
	case StateGpoProcessed:
		return "GpoProcessed"
	case StateRecordsRead:
		return "RecordsRead"
	case StateComplete:
		return "Complete"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// DefaultCommandTimeout is the per-command budget applied to the transport.
const DefaultCommandTimeout = 5 * time.Second

// Session runs one contactless read against a card behind a Transport:
// SELECT PPSE, extract AIDs, SELECT AID, GPO, AFL record reads. The session
// owns its tag map for the duration of the read and hands a copied snapshot
// into the returned CardData. Sessions are single-use.
type Session struct {
	transport Transport
	builder   *CommandBuilder
	tags      TagDictionary

	state   SessionState
	tagMap  map[string]string
	aids    []string
	aid     string
	log     []ApduLogEntry
	timeout time.Duration
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCommandBuilder replaces the default command builder, typically to
// inject a custom terminal profile.
func WithCommandBuilder(b *CommandBuilder) SessionOption {
	return func(s *Session) { s.builder = b }
}

// WithCommandTimeout overrides the per-command transport budget.
func WithCommandTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

// NewSession creates a session over the given transport.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport: transport,
		tags:      NewTagDictionary(),
		state:     StateIdle,
		tagMap:    make(map[string]string),
		timeout:   DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = NewCommandBuilder(nil, s.tags)
	}
	return s
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return s.state
}

// Read drives the full protocol sequence and returns the CardData snapshot.
// Failures degrade rather than abort: a single failed exchange is logged
// and the sequence continues where it can, ending with partial CardData.
// The transport is always closed before Read returns, exactly once,
// whatever state the session ended in. Cancellation via ctx is observed
// between commands.
func (s *Session) Read(ctx context.Context) (*CardData, error) {
	if s.state != StateIdle {
		return nil, fmt.Errorf("%w: session already used (state %s)", ErrInvalidParameter, s.state)
	}

	defer func() {
		if err := s.transport.Close(); err != nil {
			Debugf("transport close: %v", err)
		}
	}()

	if err := s.transport.Connect(ctx); err != nil {
		s.state = StateError
		return s.snapshot(), fmt.Errorf("connect: %w", err)
	}
	if err := s.transport.SetTimeout(s.timeout); err != nil {
		Debugf("set timeout: %v", err)
	}

	readErr := s.run(ctx)
	data := s.snapshot()
	if readErr != nil {
		return data, readErr
	}
	return data, nil
}

func (s *Session) run(ctx context.Context) error {
	// SELECT PPSE
	ppseResp, err := s.exchange(ctx, s.builder.BuildSelectPPSE(), "SELECT PPSE")
	if err != nil {
		s.state = StateError
		return err
	}
	s.mergeTags(ResponseData(ppseResp))
	s.aids = ExtractAIDs(ppseResp)
	s.state = StatePpseSelected

	// SELECT AID: first discovered AID wins
	s.aid = s.aids[0]
	aidResp, err := s.exchange(ctx, s.builder.BuildSelectAID(s.aid), "SELECT AID "+s.aid)
	if err != nil {
		s.state = StateError
		return err
	}
	if sw := StatusWord(aidResp); sw != SWSuccess {
		// Degraded mode: no application to talk to, but the PPSE tags and
		// log are still a useful partial read.
		s.state = StateError
		return NewProtocolError("SELECT AID", ErrInvalidResponse, fmt.Sprintf("%04X", sw))
	}
	s.mergeTags(ResponseData(aidResp))
	s.state = StateAidSelected

	// GET PROCESSING OPTIONS, driven by the card's PDOL when present
	pdolHex := s.tagMap["9F38"]
	gpoResp, err := s.exchange(ctx, s.builder.BuildGPO(pdolHex), "GET PROCESSING OPTIONS")
	if err != nil {
		s.state = StateError
		return err
	}
	if IsSuccess(gpoResp) {
		s.mergeTags(ResponseData(gpoResp))
		s.state = StateGpoProcessed
	} else {
		Debugf("GPO declined with %04X, continuing without processing options", StatusWord(gpoResp))
	}

	// READ RECORD for each AFL-implied record; individual failures are
	// logged and skipped.
	s.readRecords(ctx)
	s.state = StateRecordsRead

	s.state = StateComplete
	return nil
}

// readRecords issues one READ RECORD per record named by the AFL. A
// transport error on a single record read is non-fatal unless it signals
// the card is gone.
func (s *Session) readRecords(ctx context.Context) {
	afl, err := HexToBytes(s.tagMap["94"])
	if err != nil || len(afl) == 0 {
		Debugf("no AFL, skipping record reads")
		return
	}
	for _, entry := range ParseAFL(afl) {
		if err := entry.Validate(); err != nil {
			Debugf("skipping AFL entry: %v", err)
			continue
		}
		for record := entry.FirstRecord; record <= entry.LastRecord; record++ {
			desc := fmt.Sprintf("READ RECORD SFI %d REC %d", entry.SFI, record)
			resp, err := s.exchange(ctx, s.builder.BuildReadRecord(entry.SFI, record), desc)
			if err != nil {
				if IsFatal(err) || ctx.Err() != nil {
					return
				}
				continue
			}
			if IsSuccess(resp) {
				s.mergeTags(ResponseData(resp))
			}
		}
	}
}

// exchange sends one command, appending exactly one log entry whether the
// exchange succeeded or failed.
func (s *Session) exchange(ctx context.Context, command []byte, description string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	Debugf("TX %s: %s", description, FormatHexBytes(command))
	response, err := s.transport.Exchange(ctx, command)
	elapsed := time.Since(start)

	entry := ApduLogEntry{
		Timestamp:       start,
		Command:         BytesToHex(command),
		Description:     description,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
	if err != nil || len(response) == 0 {
		entry.Response = ErrorStatusMarker
		entry.StatusWord = ErrorStatusMarker
		s.log = append(s.log, entry)
		if err == nil {
			err = NewProtocolError(description, ErrEmptyResponse, "")
		}
		Debugf("RX %s: error: %v", description, err)
		return nil, err
	}

	entry.Response = BytesToHex(response)
	entry.StatusWord = fmt.Sprintf("%04X", StatusWord(response))
	s.log = append(s.log, entry)
	Debugf("RX %s: %s", description, FormatHexBytes(response))
	return response, nil
}

// mergeTags folds a response's decoded tags into the session map,
// last-writer-wins. The map only ever grows within a session.
func (s *Session) mergeTags(data []byte) {
	for _, e := range DecodeTLVDeep(data) {
		s.tagMap[e.TagHex()] = e.ValueHex()
	}
}

// snapshot assembles the immutable CardData from whatever the session
// accumulated, complete or partial.
func (s *Session) snapshot() *CardData {
	return NewCardData(s.tagMap, s.aids, s.aid, s.log)
}

// APDULog returns a copy of the exchanges logged so far, for callers that
// want progress before the snapshot exists.
func (s *Session) APDULog() []ApduLogEntry {
	return append([]ApduLogEntry(nil), s.log...)
}
