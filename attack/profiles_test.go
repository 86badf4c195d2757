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

package attack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emv "github.com/magsp00f/go-emv"
)

// fullCard returns card data satisfying every profile's requirements.
func fullCard() *emv.CardData {
	return emv.NewCardData(map[string]string{
		"82":   "2000",
		"94":   "08010100",
		"57":   "4154904674973556D29022010000820083001F",
		"5A":   "4154904674973556",
		"9F27": "80",
		"8E":   "00000000000000001F0042031E031F00",
	}, []string{emv.AIDVisa, emv.AIDUSDebit}, emv.AIDVisa, nil)
}

func profileByID(t *testing.T, id ProfileID) Profile {
	t.Helper()
	for _, p := range Profiles() {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("profile %s not defined", id)
	return Profile{}
}

func TestPPSEAidPoisoning(t *testing.T) {
	t.Parallel()

	card := fullCard()
	result := profileByID(t, PPSEAidPoisoning).Execute(card)

	require.True(t, result.OK, result.Reason)
	assert.Equal(t, emv.AIDVisa, result.Before)
	assert.Equal(t, emv.AIDMastercard, result.After)
	// Position preserved: the MasterCard AID sits where the VISA one was
	assert.Equal(t, emv.AIDMastercard+","+emv.AIDUSDebit, result.Derived["available_aids"])

	// Source card untouched
	assert.Equal(t, []string{emv.AIDVisa, emv.AIDUSDebit}, card.AvailableAIDs)
}

func TestPPSEAidPoisoning_NoVisaAID(t *testing.T) {
	t.Parallel()

	card := emv.NewCardData(nil, []string{emv.AIDUSDebit}, emv.AIDUSDebit, nil)
	result := profileByID(t, PPSEAidPoisoning).Execute(card)

	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, emv.AIDVisa)
}

func TestAIPForceOffline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		aip  string
		want string
	}{
		{"2000", "2008"},
		{"6000", "6008"},
		{"2008", "2008"}, // already offline-capable, idempotent
		{"7C00", "7C08"},
	}

	for _, tt := range tests {
		card := fullCard()
		card.Tags["82"] = tt.aip
		card.AIP = tt.aip

		result := profileByID(t, AIPForceOffline).Execute(card)
		require.True(t, result.OK, result.Reason)
		assert.Equal(t, tt.want, result.Derived["aip"], "aip %s", tt.aip)
		assert.Equal(t, tt.aip, card.AIP, "source must not be mutated")
	}
}

func TestAIPForceOffline_MissingAIP(t *testing.T) {
	t.Parallel()

	card := emv.NewCardData(nil, nil, "", nil)
	result := profileByID(t, AIPForceOffline).Execute(card)

	assert.False(t, result.OK)
	assert.Equal(t, "data requirements not met", result.Reason)
}

func TestTrack2Spoofing(t *testing.T) {
	t.Parallel()

	card := fullCard()
	result := profileByID(t, Track2Spoofing).Execute(card)

	require.True(t, result.OK, result.Reason)

	spoofed := result.Derived["pan"]
	require.Len(t, spoofed, len(card.PAN))
	assert.NotEqual(t, card.PAN, spoofed)
	assert.Equal(t, card.PAN[:6], spoofed[:6], "BIN must be preserved")
	assert.True(t, emv.LuhnValid(spoofed), "spoofed PAN must pass Luhn")

	track2 := result.Derived["track2"]
	assert.NotContains(t, track2, card.PAN)
	assert.Contains(t, track2, spoofed)

	// Source card untouched
	assert.Equal(t, "4154904674973556", card.PAN)
	assert.Equal(t, "4154904674973556D29022010000820083001F", card.Track2)
}

func TestSpoofPAN(t *testing.T) {
	t.Parallel()

	spoofed, ok := SpoofPAN("4154904674973556")
	require.True(t, ok)
	assert.Equal(t, "415490", spoofed[:6])
	assert.True(t, emv.LuhnValid(spoofed))

	// Deterministic: same input, same output
	again, _ := SpoofPAN("4154904674973556")
	assert.Equal(t, spoofed, again)

	_, ok = SpoofPAN("4154904")
	assert.False(t, ok, "7 digits cannot carry BIN + check digit")

	_, ok = SpoofPAN("415490X674973556")
	assert.False(t, ok, "non-digit middle must be rejected")

	// Malformed 5A data can corrupt any position, including the BIN and
	// check digit the rotation never touches
	_, ok = SpoofPAN("4I54904674973556")
	assert.False(t, ok, "non-digit BIN must be rejected")

	_, ok = SpoofPAN("415490467497355X")
	assert.False(t, ok, "non-digit check digit must be rejected")
}

func TestCryptogramDowngrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cid    string
		before string
	}{
		{"80", "ARQC"},
		{"00", "AAC"},
		{"40", "TC"},
	}

	for _, tt := range tests {
		card := fullCard()
		card.Tags["9F27"] = tt.cid

		result := profileByID(t, CryptogramDowngrade).Execute(card)
		require.True(t, result.OK, result.Reason)
		assert.Equal(t, "40", result.Derived["cryptogram_info_data"], "cid %s", tt.cid)
		assert.Contains(t, result.Before, tt.before)
		assert.Contains(t, result.After, "TC")
	}
}

func TestCryptogramDowngrade_PreservesLowBits(t *testing.T) {
	t.Parallel()

	card := fullCard()
	card.Tags["9F27"] = "BF" // ARQC with advice/reason bits set

	result := profileByID(t, CryptogramDowngrade).Execute(card)
	require.True(t, result.OK)
	// Top two bits forced to TC, low six bits carried over
	assert.Equal(t, "7F", result.Derived["cryptogram_info_data"])
}

func TestClassifyCryptogram(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ARQC", ClassifyCryptogram(0x80))
	assert.Equal(t, "TC", ClassifyCryptogram(0x40))
	assert.Equal(t, "AAC", ClassifyCryptogram(0x00))
	assert.Equal(t, "RFU", ClassifyCryptogram(0xC0))
	assert.Equal(t, "ARQC", ClassifyCryptogram(0xA3))
}

func TestCVMBypass(t *testing.T) {
	t.Parallel()

	card := fullCard()
	result := profileByID(t, CVMBypass).Execute(card)

	require.True(t, result.OK, result.Reason)
	modified := result.Derived["cvm_list"]
	assert.Equal(t, "3F00", modified[:4])
	// Remaining rules untouched
	assert.Equal(t, card.CVMList[4:], modified[4:])
	assert.Equal(t, "00000000000000001F0042031E031F00", card.CVMList)
}

func TestCVMBypass_ListTooShort(t *testing.T) {
	t.Parallel()

	card := fullCard()
	card.Tags["8E"] = "3F"

	result := profileByID(t, CVMBypass).Execute(card)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "CVM")
}

func TestProfileApplicable(t *testing.T) {
	t.Parallel()

	full := fullCard()
	empty := emv.NewCardData(nil, nil, "", nil)

	for _, p := range Profiles() {
		assert.True(t, p.Applicable(full), "profile %s should apply to a full card", p.ID)
		assert.False(t, p.Applicable(empty), "profile %s should not apply to an empty card", p.ID)
	}
}

func TestProfileExecute_NilCard(t *testing.T) {
	t.Parallel()

	result := profileByID(t, CVMBypass).Execute(nil)
	assert.False(t, result.OK)
	assert.Equal(t, "no card data", result.Reason)
}

func TestResultString(t *testing.T) {
	t.Parallel()

	ok := Result{OK: true, Before: "2000", After: "2800"}
	assert.Equal(t, "2000 -> 2800", ok.String())

	failed := failure("missing field")
	assert.Equal(t, "not applied: missing field", failed.String())
}
