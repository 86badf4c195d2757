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

// Package attack implements named, declarative transforms over read card
// data: AID substitution, AIP bit manipulation, Track2 PAN re-spoofing with
// Luhn repair, cryptogram type downgrade and CVM-list neutralization. Every
// transform is pure — the CardData it is given is never mutated; derived
// values come back in the Result so the original read stays available for
// comparison and audit.
package attack

import (
	"fmt"

	emv "github.com/magsp00f/go-emv"
)

// ProfileID identifies one attack profile. The set is closed: dispatch is
// by ID over the profiles this package defines, not open-ended dynamic
// registration.
type ProfileID string

const (
	// PPSEAidPoisoning replaces a known AID in the discovered list with a
	// different scheme's AID at the same position.
	PPSEAidPoisoning ProfileID = "ppse_aid_poisoning"
	// AIPForceOffline asserts the offline-capable bit in the AIP.
	AIPForceOffline ProfileID = "aip_force_offline"
	// Track2Spoofing substitutes a BIN-preserving, Luhn-valid PAN into the
	// Track2 data.
	Track2Spoofing ProfileID = "track2_spoofing"
	// CryptogramDowngrade forces the cryptogram information data type bits
	// to TC (offline approval).
	CryptogramDowngrade ProfileID = "cryptogram_downgrade"
	// CVMBypass rewrites the leading CVM rule to "no CVM required".
	CVMBypass ProfileID = "cvm_bypass"
)

// Result is the out-of-band outcome of a transform. OK=false with a Reason
// is an expected, common outcome (missing EMV fields), not an error.
type Result struct {
	OK      bool
	Reason  string
	Before  string
	After   string
	Derived map[string]string
}

func (r Result) String() string {
	if !r.OK {
		return "not applied: " + r.Reason
	}
	return fmt.Sprintf("%s -> %s", r.Before, r.After)
}

func failure(reason string) Result {
	return Result{Reason: reason}
}

// Profile is one declarative transform: its identity, the card fields it
// needs, its configuration and the pure transform function.
type Profile struct {
	ID               ProfileID
	Description      string
	DataRequirements []string
	Config           map[string]string
	transform        func(card *emv.CardData, config map[string]string) Result
}

// Applicable reports whether every data requirement is satisfied by the
// card. Requirements are names dispatched over CardData fields and tag-map
// keys; an unknown requirement is treated as satisfied.
func (p Profile) Applicable(card *emv.CardData) bool {
	for _, req := range p.DataRequirements {
		if !hasRequirement(card, req) {
			return false
		}
	}
	return true
}

func hasRequirement(card *emv.CardData, req string) bool {
	switch req {
	case "pan":
		return card.PAN != ""
	case "track2_data":
		return card.Track2 != ""
	case "application_interchange_profile":
		return card.AIP != ""
	case "application_file_locator":
		return card.AFL != ""
	case "supported_aids":
		return len(card.AvailableAIDs) > 0
	case "cardholder_name":
		return card.CardholderName != ""
	case "expiry_date":
		return card.ExpiryDate != ""
	case "cryptogram_data":
		return card.HasTag("9F27")
	case "cvm_list":
		return card.HasTag("8E")
	default:
		return true
	}
}

// Execute runs the transform against an immutable card snapshot. Unmet
// requirements yield a failed Result, never a panic or error.
func (p Profile) Execute(card *emv.CardData) Result {
	if card == nil {
		return failure("no card data")
	}
	if !p.Applicable(card) {
		return failure("data requirements not met")
	}
	return p.transform(card, p.Config)
}
