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

package emulate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emv "github.com/magsp00f/go-emv"
)

// loopbackTransport feeds session commands straight into a Responder, so a
// real read session can be driven against the emulated card.
type loopbackTransport struct {
	responder *Responder
	connected bool
}

func (l *loopbackTransport) Connect(context.Context) error { l.connected = true; return nil }
func (l *loopbackTransport) Exchange(_ context.Context, command []byte) ([]byte, error) {
	if !l.connected {
		return nil, emv.ErrNotConnected
	}
	return l.responder.Process(command), nil
}
func (l *loopbackTransport) Close() error                  { l.connected = false; return nil }
func (l *loopbackTransport) SetTimeout(time.Duration) error { return nil }
func (l *loopbackTransport) IsConnected() bool             { return l.connected }
func (l *loopbackTransport) Type() emv.TransportType       { return emv.TransportMock }

func TestResponder_PPSEResponse(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil)
	resp := r.PPSEResponse()

	require.True(t, emv.IsSuccess(resp))

	aids := emv.ExtractAIDs(resp)
	require.Len(t, aids, 2)
	assert.Equal(t, emv.AIDVisa, aids[0])
	assert.Equal(t, emv.AIDUSDebit, aids[1])

	m := emv.TagMap(emv.DecodeTLVDeep(emv.ResponseData(resp)))
	assert.Equal(t, emv.BytesToHex(emv.PPSEName), m["84"])
}

func TestResponder_PPSEResponseLargeDirectory(t *testing.T) {
	t.Parallel()

	// Enough applications to push the directory past 255 bytes, forcing the
	// two-byte long length form on the outer templates.
	identity := DefaultIdentity()
	identity.AIDs = nil
	for i := range 24 {
		identity.AIDs = append(identity.AIDs, fmt.Sprintf("A00000000000%02X", i))
	}

	r := NewResponder(identity)
	resp := r.PPSEResponse()
	require.True(t, emv.IsSuccess(resp))

	aids := emv.ExtractAIDs(resp)
	require.Len(t, aids, 24)
	assert.Equal(t, identity.AIDs[0], aids[0])
	assert.Equal(t, identity.AIDs[23], aids[23])
}

func TestResponder_AIDResponse(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil)

	resp := r.AIDResponse(emv.AIDVisa)
	require.True(t, emv.IsSuccess(resp))

	m := emv.TagMap(emv.DecodeTLVDeep(emv.ResponseData(resp)))
	assert.Equal(t, emv.AIDVisa, m["84"])
	assert.Equal(t, "9F66049F3704", m["9F38"])

	// Lowercase input is accepted
	resp = r.AIDResponse("a0000000031010")
	assert.True(t, emv.IsSuccess(resp))
}

func TestResponder_UnknownAIDFileNotFound(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil)

	resp := r.AIDResponse(emv.AIDMastercard)
	assert.Equal(t, uint16(emv.SWFileNotFound), emv.StatusWord(resp))
}

func TestResponder_GPOResponsePerWorkflow(t *testing.T) {
	t.Parallel()

	for _, w := range Workflows() {
		r := NewResponder(nil)
		require.NoError(t, r.SetWorkflow(w))

		resp := r.GPOResponse()
		require.True(t, emv.IsSuccess(resp), "workflow %s", w)

		m := emv.TagMap(emv.DecodeTLVDeep(emv.ResponseData(resp)))
		assert.Equal(t, emv.BytesToHex(w.AIP()), m["82"], "workflow %s", w)
		assert.Equal(t, "08010100", m["94"], "workflow %s", w)
		assert.Equal(t, emv.BytesToHex([]byte{w.CryptogramInfoData()}), m["9F27"], "workflow %s", w)

		if w == WorkflowForceOfflineTC {
			assert.Equal(t, "00000000000000001F00", m["8E"], "workflow %s", w)
		} else {
			assert.NotContains(t, m, "8E")
		}
	}
}

func TestResponder_RecordResponse(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil)

	resp := r.RecordResponse(1, 1)
	require.True(t, emv.IsSuccess(resp))

	m := emv.TagMap(emv.DecodeTLVDeep(emv.ResponseData(resp)))
	assert.Equal(t, "4154904674973556", m["5A"])
	assert.Equal(t, "290228", m["5F24"])

	assert.Equal(t, uint16(emv.SWFileNotFound), emv.StatusWord(r.RecordResponse(1, 2)))
	assert.Equal(t, uint16(emv.SWFileNotFound), emv.StatusWord(r.RecordResponse(2, 1)))
}

func TestResponder_SetWorkflowInvalid(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil)
	err := r.SetWorkflow(Workflow(9))
	require.ErrorIs(t, err, emv.ErrInvalidParameter)
	assert.Equal(t, WorkflowMSDOnly, r.Workflow())
}

func TestResponder_GenerateCryptogram(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil)
	assert.Empty(t, r.GenerateCryptogram())

	require.NoError(t, r.SetWorkflow(WorkflowForceOfflineTC))
	assert.Equal(t, "4011203A0000", r.GenerateCryptogram())

	require.NoError(t, r.SetWorkflow(WorkflowOnlineAuthorization))
	assert.Equal(t, "8011203A0000", r.GenerateCryptogram())
}

func TestResponder_ProcessDispatch(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil)

	// Unsupported instruction
	resp := r.Process([]byte{0x00, 0x20, 0x00, 0x00})
	assert.Equal(t, uint16(0x6D00), emv.StatusWord(resp))

	// Short command
	resp = r.Process([]byte{0x00})
	assert.Equal(t, uint16(0x6D00), emv.StatusWord(resp))

	// SELECT with a truncated body
	resp = r.Process([]byte{0x00, 0xA4, 0x04, 0x00, 0x07, 0xA0})
	assert.Equal(t, uint16(emv.SWFileNotFound), emv.StatusWord(resp))
}

func TestResponder_FullReadSession(t *testing.T) {
	t.Parallel()

	responder := NewResponder(nil)
	session := emv.NewSession(&loopbackTransport{responder: responder})

	card, err := session.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, emv.StateComplete, session.State())

	assert.Equal(t, emv.AIDVisa, card.SelectedAID)
	assert.Equal(t, []string{emv.AIDVisa, emv.AIDUSDebit}, card.AvailableAIDs)
	assert.Equal(t, "2000", card.AIP)
	assert.Equal(t, "08010100", card.AFL)
	assert.Equal(t, "4154904674973556", card.PAN)
	assert.Equal(t, "4154904674973556D29022010000820083001F", card.Track2)
	assert.Equal(t, "CARDHOLDER/VISA", card.CardholderName)
	assert.Equal(t, "2902", card.ExpiryDate)
	assert.Equal(t, "D3967976E30EFAFC", card.ApplicationCryptogram)
	assert.Equal(t, "011E", card.ATC)
	assert.Equal(t, emv.BrandVisa, card.Brand())

	// PPSE, SELECT AID, GPO, one record
	assert.Len(t, card.APDULog, 4)
}

func TestResponder_FullReadSessionForceOffline(t *testing.T) {
	t.Parallel()

	responder := NewResponder(nil)
	require.NoError(t, responder.SetWorkflow(WorkflowForceOfflineTC))
	session := emv.NewSession(&loopbackTransport{responder: responder})

	card, err := session.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "6000", card.AIP)
	assert.Equal(t, "40", card.CryptogramInfoData)
	assert.Equal(t, "00000000000000001F00", card.CVMList)
}

func TestDefaultIdentityPAN(t *testing.T) {
	t.Parallel()

	identity := DefaultIdentity()
	assert.Equal(t, "4154904674973556", identity.PAN())
	assert.True(t, emv.LuhnValid(identity.PAN()))

	noSep := &CardIdentity{Track2Hex: "4154904674973556"}
	assert.Empty(t, noSep.PAN())
}
