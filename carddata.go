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
	"strings"
	"time"
)

// ApduLogEntry records one command/response exchange. Entries are
// append-only per session and never mutated after the fact; failed
// exchanges log an ERROR marker in place of the response.
type ApduLogEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Command         string    `json:"command"`
	Response        string    `json:"response"`
	StatusWord      string    `json:"status_word"`
	Description     string    `json:"description"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
}

// ErrorStatusMarker replaces the status word in log entries for exchanges
// that failed at the transport level.
const ErrorStatusMarker = "ERROR"

// CardData is the structured result of a read session. Every scalar field
// is optional — EMV data is frequently partially present, and an absent
// field stays an empty string, distinct from a present-but-empty value in
// the tag map. CardData is immutable once constructed; derived values are
// produced by Clone-and-modify, never in place, so the original read stays
// available for comparison and audit.
type CardData struct {
	PAN            string `json:"pan,omitempty"`
	Track2         string `json:"track2,omitempty"`
	CardholderName string `json:"cardholder_name,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	ServiceCode    string `json:"service_code,omitempty"`
	AIP            string `json:"aip,omitempty"`
	AFL            string `json:"afl,omitempty"`
	PDOL           string `json:"pdol,omitempty"`

	// Cryptogram material (classified, never verified)
	ApplicationCryptogram string `json:"application_cryptogram,omitempty"`
	CryptogramInfoData    string `json:"cryptogram_info_data,omitempty"`
	ATC                   string `json:"atc,omitempty"`
	UnpredictableNumber   string `json:"unpredictable_number,omitempty"`

	CVMList string `json:"cvm_list,omitempty"`

	Tags          map[string]string `json:"tags"`
	AvailableAIDs []string          `json:"available_aids"`
	SelectedAID   string            `json:"selected_aid,omitempty"`
	APDULog       []ApduLogEntry    `json:"apdu_log"`
}

// NewCardData assembles a CardData snapshot from a session's accumulated
// tag map, AID list and APDU log. The inputs are copied; the caller's maps
// and slices stay independent.
func NewCardData(tags map[string]string, aids []string, selectedAID string, log []ApduLogEntry) *CardData {
	cd := &CardData{
		Tags:          make(map[string]string, len(tags)),
		AvailableAIDs: append([]string(nil), aids...),
		SelectedAID:   selectedAID,
		APDULog:       append([]ApduLogEntry(nil), log...),
	}
	for k, v := range tags {
		cd.Tags[k] = v
	}

	cd.AIP = tags["82"]
	cd.AFL = tags["94"]
	cd.PDOL = tags["9F38"]
	cd.ApplicationCryptogram = tags["9F26"]
	cd.CryptogramInfoData = tags["9F27"]
	cd.ATC = tags["9F36"]
	cd.UnpredictableNumber = tags["9F37"]
	cd.CVMList = tags["8E"]
	cd.Track2 = tags["57"]
	// BCD-padded PANs carry trailing F nibbles
	cd.PAN = strings.TrimRight(tags["5A"], "F")

	if name, ok := tags["5F20"]; ok {
		if raw, err := HexToBytes(name); err == nil {
			cd.CardholderName = strings.TrimSpace(string(raw))
		}
	}
	if exp, ok := tags["5F24"]; ok && len(exp) >= 4 {
		cd.ExpiryDate = exp[:4]
	}

	// Track2 equivalent data fills gaps the record templates left:
	// PAN D expiry(4) service-code(3) discretionary.
	if cd.Track2 != "" {
		pan, exp, svc := splitTrack2(cd.Track2)
		if cd.PAN == "" {
			cd.PAN = pan
		}
		if cd.ExpiryDate == "" {
			cd.ExpiryDate = exp
		}
		if cd.ServiceCode == "" {
			cd.ServiceCode = svc
		}
	}

	return cd
}

// splitTrack2 separates PAN, expiry and service code at the D field
// separator. Track2 shorter than expiry+service after the separator yields
// what is present.
func splitTrack2(track2 string) (pan, expiry, service string) {
	t := strings.ToUpper(track2)
	sep := strings.IndexByte(t, 'D')
	if sep < 0 {
		return "", "", ""
	}
	pan = t[:sep]
	rest := t[sep+1:]
	if len(rest) >= 4 {
		expiry = rest[:4]
	}
	if len(rest) >= 7 {
		service = rest[4:7]
	}
	return pan, expiry, service
}

// Clone returns a deep copy. Attack transforms derive their modified views
// from a clone so the source read is never corrupted.
func (c *CardData) Clone() *CardData {
	if c == nil {
		return nil
	}
	out := *c
	out.Tags = make(map[string]string, len(c.Tags))
	for k, v := range c.Tags {
		out.Tags[k] = v
	}
	out.AvailableAIDs = append([]string(nil), c.AvailableAIDs...)
	out.APDULog = append([]ApduLogEntry(nil), c.APDULog...)
	return &out
}

// MaskedPAN renders the PAN with all but the first six and last four digits
// replaced, for display surfaces that must not show the full number.
func (c *CardData) MaskedPAN() string {
	if len(c.PAN) < 10 {
		return c.PAN
	}
	return c.PAN[:6] + strings.Repeat("*", len(c.PAN)-10) + c.PAN[len(c.PAN)-4:]
}

// CardBrand is the payment scheme inferred from the PAN prefix.
type CardBrand string

const (
	// BrandVisa is a PAN starting with 4.
	BrandVisa CardBrand = "VISA"
	// BrandMastercard is a PAN starting with 51-55 or 2221-2720.
	BrandMastercard CardBrand = "MasterCard"
	// BrandAmex is a PAN starting with 34 or 37.
	BrandAmex CardBrand = "American Express"
	// BrandDiscover is a PAN starting with 6011 or 65.
	BrandDiscover CardBrand = "Discover"
	// BrandUnknown is anything else, including an absent PAN.
	BrandUnknown CardBrand = "Unknown"
)

// Brand infers the card scheme from the PAN prefix.
func (c *CardData) Brand() CardBrand {
	pan := c.PAN
	switch {
	case pan == "":
		return BrandUnknown
	case pan[0] == '4':
		return BrandVisa
	case len(pan) >= 2 && pan[0] == '5' && pan[1] >= '1' && pan[1] <= '5':
		return BrandMastercard
	case len(pan) >= 4 && pan[:4] >= "2221" && pan[:4] <= "2720":
		return BrandMastercard
	case strings.HasPrefix(pan, "34"), strings.HasPrefix(pan, "37"):
		return BrandAmex
	case strings.HasPrefix(pan, "6011"), strings.HasPrefix(pan, "65"):
		return BrandDiscover
	default:
		return BrandUnknown
	}
}

// HasTag reports whether the tag map carries a non-empty value for the tag.
func (c *CardData) HasTag(tagHex string) bool {
	v, ok := c.Tags[strings.ToUpper(tagHex)]
	return ok && v != ""
}
