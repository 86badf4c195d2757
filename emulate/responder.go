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
	"bytes"
	"fmt"
	"strings"

	emv "github.com/magsp00f/go-emv"
	"github.com/magsp00f/go-emv/internal/syncutil"
)

// CardIdentity is the fixed card an emulation session presents: track data,
// the applications it advertises and the static cryptogram material the GPO
// template carries.
type CardIdentity struct {
	Track2Hex      string
	CardholderName string
	ExpiryHex      string            // tag 5F24 value
	AIDs           []string          // advertised in PPSE, priority order
	Labels         map[string]string // AID -> application label
	IssuerAppData  string            // tag 9F10 value hex
	Cryptogram     string            // tag 9F26 value hex
	ATCHex         string            // tag 9F36 value hex
}

// DefaultIdentity returns the VISA test identity used across the research
// workflows.
func DefaultIdentity() *CardIdentity {
	return &CardIdentity{
		Track2Hex:      "4154904674973556D29022010000820083001F",
		CardholderName: "CARDHOLDER/VISA",
		ExpiryHex:      "290228",
		AIDs:           []string{emv.AIDVisa, emv.AIDUSDebit},
		Labels: map[string]string{
			emv.AIDVisa:    "VISA",
			emv.AIDUSDebit: "US DEBIT",
		},
		IssuerAppData: "06011203A00000",
		Cryptogram:    "D3967976E30EFAFC",
		ATCHex:        "011E",
	}
}

// PAN extracts the PAN from the identity's Track2 data.
func (c *CardIdentity) PAN() string {
	sep := strings.IndexByte(strings.ToUpper(c.Track2Hex), 'D')
	if sep < 0 {
		return ""
	}
	return c.Track2Hex[:sep]
}

// Responder produces card-side APDU responses for the selected workflow.
// Selecting a workflow is the only state change; every response is a pure
// function of workflow and identity.
type Responder struct {
	identity *CardIdentity
	workflow Workflow
	mu       syncutil.RWMutex
}

// NewResponder creates a responder for the identity, defaulting to the
// MSD-only workflow. A nil identity uses the VISA test identity.
func NewResponder(identity *CardIdentity) *Responder {
	if identity == nil {
		identity = DefaultIdentity()
	}
	return &Responder{identity: identity, workflow: WorkflowMSDOnly}
}

// SetWorkflow switches the active workflow.
func (r *Responder) SetWorkflow(w Workflow) error {
	if !w.Valid() {
		return fmt.Errorf("%w: workflow %d", emv.ErrInvalidParameter, int(w))
	}
	r.mu.Lock()
	r.workflow = w
	r.mu.Unlock()
	emv.Debugf("emulation workflow set to %s", w)
	return nil
}

// Workflow returns the active workflow.
func (r *Responder) Workflow() Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workflow
}

// swSuccess and swFileNotFound are the response trailers appended to every
// emitted APDU.
var (
	swSuccess      = []byte{0x90, 0x00}
	swFileNotFound = []byte{0x6A, 0x82}
	swInsNotFound  = []byte{0x6D, 0x00}
)

// PPSEResponse builds the FCI for SELECT "2PAY.SYS.DDF01": one application
// template per advertised AID, in priority order.
func (r *Responder) PPSEResponse() []byte {
	var dir []byte
	for i, aid := range r.identity.AIDs {
		aidBytes, err := emv.HexToBytes(aid)
		if err != nil {
			continue
		}
		var app []byte
		app = append(app, emv.EncodeTLV([]byte{0x4F}, aidBytes)...)
		if label := r.identity.Labels[aid]; label != "" {
			app = append(app, emv.EncodeTLV([]byte{0x50}, []byte(label))...)
		}
		app = append(app, emv.EncodeTLV([]byte{0x87}, []byte{byte(i + 1)})...)
		dir = append(dir, encodeTemplate(0x61, app)...)
	}

	fciProprietary := encodeTemplate(0xBF0C, dir)
	var fci []byte
	fci = append(fci, emv.EncodeTLV([]byte{0x84}, emv.PPSEName)...)
	fci = append(fci, encodeTemplateByte(0xA5, fciProprietary)...)

	return withStatus(encodeTemplateByte(0x6F, fci), swSuccess)
}

// AIDResponse builds the FCI for SELECT AID. Unknown AIDs yield 6A82, file
// not found, regardless of workflow.
func (r *Responder) AIDResponse(aidHex string) []byte {
	aidHex = strings.ToUpper(aidHex)
	known := false
	for _, aid := range r.identity.AIDs {
		if aid == aidHex {
			known = true
			break
		}
	}
	if !known {
		return append([]byte(nil), swFileNotFound...)
	}

	aidBytes, err := emv.HexToBytes(aidHex)
	if err != nil {
		return append([]byte(nil), swFileNotFound...)
	}

	var prop []byte
	if label := r.identity.Labels[aidHex]; label != "" {
		prop = append(prop, emv.EncodeTLV([]byte{0x50}, []byte(label))...)
	}
	prop = append(prop, emv.EncodeTLV([]byte{0x87}, []byte{0x01})...)
	// PDOL: request TTQ (4) and unpredictable number (4)
	pdol := []byte{0x9F, 0x66, 0x04, 0x9F, 0x37, 0x04}
	prop = append(prop, emv.EncodeTLV([]byte{0x9F, 0x38}, pdol)...)

	var fci []byte
	fci = append(fci, emv.EncodeTLV([]byte{0x84}, aidBytes)...)
	fci = append(fci, encodeTemplateByte(0xA5, prop)...)

	return withStatus(encodeTemplateByte(0x6F, fci), swSuccess)
}

// GPOResponse builds the processing options template for the active
// workflow: the workflow's AIP, an AFL naming the one record the responder
// serves, the track data and the cryptogram fields with the workflow's CID.
func (r *Responder) GPOResponse() []byte {
	w := r.Workflow()

	track2, err := emv.HexToBytes(r.identity.Track2Hex)
	if err != nil {
		track2 = nil
	}

	var body []byte
	body = append(body, emv.EncodeTLV([]byte{0x82}, w.AIP())...)
	body = append(body, emv.EncodeTLV([]byte{0x94}, []byte{0x08, 0x01, 0x01, 0x00})...)
	if track2 != nil {
		body = append(body, emv.EncodeTLV([]byte{0x57}, track2)...)
	}
	body = append(body, emv.EncodeTLV([]byte{0x5F, 0x34}, []byte{0x00})...)
	body = append(body, emv.EncodeTLV([]byte{0x5F, 0x20}, []byte(r.identity.CardholderName))...)
	if iad, err := emv.HexToBytes(r.identity.IssuerAppData); err == nil {
		body = append(body, emv.EncodeTLV([]byte{0x9F, 0x10}, iad)...)
	}
	if ac, err := emv.HexToBytes(r.identity.Cryptogram); err == nil {
		body = append(body, emv.EncodeTLV([]byte{0x9F, 0x26}, ac)...)
	}
	body = append(body, emv.EncodeTLV([]byte{0x9F, 0x27}, []byte{w.CryptogramInfoData()})...)
	if atc, err := emv.HexToBytes(r.identity.ATCHex); err == nil {
		body = append(body, emv.EncodeTLV([]byte{0x9F, 0x36}, atc)...)
	}
	if w == WorkflowForceOfflineTC {
		// CVM list: no amounts, single "no CVM required" rule
		cvm := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x1F, 0x00}
		body = append(body, emv.EncodeTLV([]byte{0x8E}, cvm)...)
	}

	return withStatus(encodeTemplateByte(0x77, body), swSuccess)
}

// RecordResponse builds the single record template the AFL advertises.
// Requests outside SFI 1 record 1 yield 6A82.
func (r *Responder) RecordResponse(sfi, record byte) []byte {
	if sfi != 1 || record != 1 {
		return append([]byte(nil), swFileNotFound...)
	}

	var body []byte
	if track2, err := emv.HexToBytes(r.identity.Track2Hex); err == nil {
		body = append(body, emv.EncodeTLV([]byte{0x57}, track2)...)
	}
	if pan, err := emv.HexToBytes(r.identity.PAN()); err == nil {
		body = append(body, emv.EncodeTLV([]byte{0x5A}, pan)...)
	}
	body = append(body, emv.EncodeTLV([]byte{0x5F, 0x20}, []byte(r.identity.CardholderName))...)
	if exp, err := emv.HexToBytes(r.identity.ExpiryHex); err == nil {
		body = append(body, emv.EncodeTLV([]byte{0x5F, 0x24}, exp)...)
	}

	return withStatus(encodeTemplateByte(0x70, body), swSuccess)
}

// GenerateCryptogram returns the canned cryptogram value for the active
// workflow. MSD-only produces none; forced offline produces a TC-prefixed
// value, everything else an ARQC-prefixed one. This is field
// classification material, not cryptography.
func (r *Responder) GenerateCryptogram() string {
	switch r.Workflow() {
	case WorkflowMSDOnly:
		return ""
	case WorkflowForceOfflineTC:
		return "4011203A0000"
	default:
		return "8011203A0000"
	}
}

// Process dispatches an incoming command APDU to the matching response:
// SELECT PPSE, SELECT AID, GPO and READ RECORD are recognized; anything
// else is answered with 6D00 (instruction not supported).
func (r *Responder) Process(command []byte) []byte {
	if len(command) < 4 {
		return append([]byte(nil), swInsNotFound...)
	}

	cla, ins := command[0], command[1]
	switch {
	case cla == 0x00 && ins == 0xA4:
		return r.processSelect(command)
	case cla == 0x80 && ins == 0xA8:
		return r.GPOResponse()
	case cla == 0x00 && ins == 0xB2:
		if len(command) < 4 {
			return append([]byte(nil), swFileNotFound...)
		}
		record := command[2]
		sfi := command[3] >> 3
		return r.RecordResponse(sfi, record)
	default:
		return append([]byte(nil), swInsNotFound...)
	}
}

func (r *Responder) processSelect(command []byte) []byte {
	if len(command) < 5 {
		return append([]byte(nil), swFileNotFound...)
	}
	lc := int(command[4])
	if len(command) < 5+lc {
		return append([]byte(nil), swFileNotFound...)
	}
	name := command[5 : 5+lc]
	if bytes.Equal(name, emv.PPSEName) {
		return r.PPSEResponse()
	}
	return r.AIDResponse(emv.BytesToHex(name))
}

// withStatus appends a status word trailer to response data.
func withStatus(data, sw []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, data...)
	out = append(out, sw...)
	return out
}

// encodeTemplateByte wraps data in a one-byte constructed tag, switching to
// the long length form when the payload exceeds 127 bytes.
func encodeTemplateByte(tag byte, inner []byte) []byte {
	return encodeTemplateTag([]byte{tag}, inner)
}

// encodeTemplate wraps data in a two-byte constructed tag given as a
// uint16, e.g. 0xBF0C.
func encodeTemplate(tag uint16, inner []byte) []byte {
	if tag <= 0xFF {
		return encodeTemplateTag([]byte{byte(tag)}, inner)
	}
	return encodeTemplateTag([]byte{byte(tag >> 8), byte(tag)}, inner)
}

func encodeTemplateTag(tag, inner []byte) []byte {
	out := make([]byte, 0, len(tag)+3+len(inner))
	out = append(out, tag...)
	switch {
	case len(inner) > 0xFF:
		out = append(out, 0x82, byte(len(inner)>>8), byte(len(inner)))
	case len(inner) > 0x7F:
		out = append(out, 0x81, byte(len(inner)))
	default:
		out = append(out, byte(len(inner)))
	}
	out = append(out, inner...)
	return out
}
