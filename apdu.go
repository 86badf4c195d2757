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
	"fmt"
)

// Well-known contactless application identifiers.
const (
	// AIDVisa is the VISA credit/debit application.
	AIDVisa = "A0000000031010"
	// AIDMastercard is the MasterCard credit/debit application.
	AIDMastercard = "A0000000041010"
	// AIDUSDebit is the US common debit application.
	AIDUSDebit = "A0000000980840"
)

// PPSEName is the contactless payment system environment DF name,
// "2PAY.SYS.DDF01".
var PPSEName = []byte("2PAY.SYS.DDF01")

// Status word helpers. The status word is the final two bytes of every
// response APDU; 9000 is success.
const (
	// SWSuccess indicates normal processing.
	SWSuccess = 0x9000
	// SWFileNotFound indicates the selected file/application is absent.
	SWFileNotFound = 0x6A82
)

// StatusWord extracts the trailing status word from a response APDU.
// Responses shorter than two bytes yield 0.
func StatusWord(response []byte) uint16 {
	if len(response) < 2 {
		return 0
	}
	return uint16(response[len(response)-2])<<8 | uint16(response[len(response)-1])
}

// ResponseData strips the trailing status word from a response APDU.
func ResponseData(response []byte) []byte {
	if len(response) <= 2 {
		return nil
	}
	return response[:len(response)-2]
}

// IsSuccess reports whether a response carries status word 9000.
func IsSuccess(response []byte) bool {
	return StatusWord(response) == SWSuccess
}

// CommandBuilder constructs ISO 7816-4 command APDUs for the contactless
// read flow. Terminal data objects for GPO construction come from the
// injected TerminalProfile; the tag dictionary is used for diagnostics only.
type CommandBuilder struct {
	terminal *TerminalProfile
	tags     TagDictionary
}

// NewCommandBuilder creates a command builder around a terminal profile.
// A nil profile uses the standard research-terminal defaults.
func NewCommandBuilder(terminal *TerminalProfile, tags TagDictionary) *CommandBuilder {
	if terminal == nil {
		terminal = DefaultTerminalProfile()
	}
	if tags == nil {
		tags = NewTagDictionary()
	}
	return &CommandBuilder{terminal: terminal, tags: tags}
}

// BuildSelectPPSE constructs the SELECT for the contactless PPSE directory.
func (*CommandBuilder) BuildSelectPPSE() []byte {
	cmd := make([]byte, 0, 5+len(PPSEName)+1)
	cmd = append(cmd, 0x00, 0xA4, 0x04, 0x00, byte(len(PPSEName)))
	cmd = append(cmd, PPSEName...)
	cmd = append(cmd, 0x00)
	return cmd
}

// BuildSelectAID constructs a SELECT by DF name for the given AID hex.
// Validation is the caller's job: an empty or odd-length AID still produces
// a command, one the card will answer with 6A82.
func (*CommandBuilder) BuildSelectAID(aidHex string) []byte {
	aid, err := HexToBytes(aidHex)
	if err != nil {
		aid = nil
	}
	cmd := make([]byte, 0, 5+len(aid)+1)
	cmd = append(cmd, 0x00, 0xA4, 0x04, 0x00, byte(len(aid)))
	cmd = append(cmd, aid...)
	cmd = append(cmd, 0x00)
	return cmd
}

// PDOLTag is one entry of a processing options data object list: the tag the
// card wants and the length it expects. Values are irrelevant in the list
// itself; the terminal supplies them.
type PDOLTag struct {
	Tag    string
	Length int
}

// ParseDOL parses a PDOL or CDOL tag/length list. Truncated trailers end the
// parse with the entries collected so far.
func ParseDOL(dol []byte) []PDOLTag {
	var tags []PDOLTag
	i := 0
	for i < len(dol) {
		tag, next, ok := readTag(dol, i)
		if !ok {
			break
		}
		if next >= len(dol) {
			break
		}
		length := int(dol[next])
		tags = append(tags, PDOLTag{Tag: BytesToHex(tag), Length: length})
		i = next + 1
	}
	return tags
}

// BuildGPO constructs GET PROCESSING OPTIONS. A non-empty pdolHex is parsed
// as the card's requested tag/length list and each tag is answered with a
// synthesized terminal value of exactly the requested length; unknown tags
// are zero-filled rather than failing the build. An empty PDOL yields the
// minimal 8300 command template.
func (b *CommandBuilder) BuildGPO(pdolHex string) []byte {
	var data []byte
	pdol, err := HexToBytes(pdolHex)
	if err == nil && len(pdol) > 0 {
		for _, pt := range ParseDOL(pdol) {
			value := b.terminal.Value(pt.Tag, pt.Length)
			Debugf("GPO %s (%s) = %s", pt.Tag, b.tags.Name(pt.Tag), BytesToHex(value))
			data = append(data, value...)
		}
	}

	template := EncodeTLV([]byte{0x83}, data)
	if template == nil {
		// Oversized terminal data cannot happen with sane PDOLs; fall back
		// to the empty template rather than emit a broken frame.
		template = []byte{0x83, 0x00}
	}

	cmd := make([]byte, 0, 5+len(template)+1)
	cmd = append(cmd, 0x80, 0xA8, 0x00, 0x00, byte(len(template)))
	cmd = append(cmd, template...)
	cmd = append(cmd, 0x00)
	return cmd
}

// BuildReadRecord constructs READ RECORD for the given short file identifier
// and record number. P2 encodes the SFI shifted left three bits with the
// "P1 is a record number" marker.
func (*CommandBuilder) BuildReadRecord(sfi, record byte) []byte {
	return []byte{0x00, 0xB2, record, sfi<<3 | 0x04, 0x00}
}

// FallbackAIDs is returned by ExtractAIDs when a PPSE response carries no
// usable directory, so a session can continue in degraded mode against the
// schemes seen in practice.
func FallbackAIDs() []string {
	return []string{AIDVisa, AIDMastercard, AIDUSDebit}
}

// ExtractAIDs scans a PPSE response for tag 4F application identifiers, in
// encounter order. A response with no 4F entries (or one that fails to
// decode at all) yields the fixed fallback list.
func ExtractAIDs(ppseResponse []byte) []string {
	var aids []string
	for _, value := range FindAllTags(ResponseData(ppseResponse), "4F") {
		aids = append(aids, BytesToHex(value))
	}
	if len(aids) == 0 {
		Debugf("PPSE held no 4F entries, using fallback AID list")
		return FallbackAIDs()
	}
	return aids
}

// AFLEntry is one application file locator group: a file to read and the
// record range within it.
type AFLEntry struct {
	SFI         byte
	FirstRecord byte
	LastRecord  byte
	OfflineAuth byte
}

// ParseAFL splits AFL bytes into 4-byte groups. A trailing partial group is
// dropped; record reading proceeds with the complete groups.
func ParseAFL(afl []byte) []AFLEntry {
	var entries []AFLEntry
	for i := 0; i+4 <= len(afl); i += 4 {
		entries = append(entries, AFLEntry{
			SFI:         afl[i] >> 3,
			FirstRecord: afl[i+1],
			LastRecord:  afl[i+2],
			OfflineAuth: afl[i+3],
		})
	}
	if len(afl)%4 != 0 {
		Debugf("AFL length %d not a multiple of 4, trailing bytes ignored", len(afl))
	}
	return entries
}

// Validate reports whether the entry describes a readable record range.
func (e AFLEntry) Validate() error {
	if e.FirstRecord == 0 || e.LastRecord < e.FirstRecord {
		return fmt.Errorf("%w: records %d-%d", ErrInvalidParameter, e.FirstRecord, e.LastRecord)
	}
	return nil
}
