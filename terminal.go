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
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TTQProfile selects the terminal transaction qualifiers advertised during
// GPO construction, steering the card onto different processing paths.
type TTQProfile string

const (
	// TTQStandard is the most common qualifier set (27000000).
	TTQStandard TTQProfile = "standard"
	// TTQEnhanced advertises enhanced terminal features (B7604000).
	TTQEnhanced TTQProfile = "enhanced"
	// TTQSimplified advertises a basic MSD-capable terminal (A0000000).
	TTQSimplified TTQProfile = "simplified"
	// TTQAdvanced advertises the full feature set (F0204000).
	TTQAdvanced TTQProfile = "advanced"
)

var ttqValues = map[TTQProfile]string{
	TTQStandard:   "27000000",
	TTQEnhanced:   "B7604000",
	TTQSimplified: "A0000000",
	TTQAdvanced:   "F0204000",
}

// TerminalProfile holds the terminal-side constants used to satisfy PDOL and
// CDOL requests. These are research-terminal placeholders, not a faithful
// terminal, so all of them are configuration rather than hardcoded values.
type TerminalProfile struct {
	AmountAuthorized string     `yaml:"amount_authorized"`
	CurrencyCode     string     `yaml:"currency_code"`
	CountryCode      string     `yaml:"country_code"`
	TransactionType  string     `yaml:"transaction_type"`
	Capabilities     string     `yaml:"capabilities"`
	ExtraCaps        string     `yaml:"additional_capabilities"`
	TerminalType     string     `yaml:"terminal_type"`
	SerialNumber     string     `yaml:"serial_number"`
	TTQ              TTQProfile `yaml:"ttq"`

	// Now and Rand exist so tests can pin date/time and the unpredictable
	// number; nil means wall clock and crypto/rand.
	Now  func() time.Time `yaml:"-"`
	Rand func(n int) []byte `yaml:"-"`
}

// DefaultTerminalProfile returns the standard synthesized terminal:
// $10.00 USD, US country code, attended online-capable terminal.
func DefaultTerminalProfile() *TerminalProfile {
	return &TerminalProfile{
		AmountAuthorized: "000000001000",
		CurrencyCode:     "0840",
		CountryCode:      "0840",
		TransactionType:  "00",
		Capabilities:     "E0E1C8",
		ExtraCaps:        "6000F0A001",
		TerminalType:     "22",
		SerialNumber:     "0000000000000000",
		TTQ:              TTQStandard,
	}
}

// LoadTerminalProfile reads a terminal profile from a YAML file, filling
// unset fields from the defaults.
func LoadTerminalProfile(path string) (*TerminalProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terminal profile: %w", err)
	}
	profile := DefaultTerminalProfile()
	if err := yaml.Unmarshal(raw, profile); err != nil {
		return nil, fmt.Errorf("parse terminal profile: %w", err)
	}
	if _, ok := ttqValues[profile.TTQ]; !ok {
		return nil, fmt.Errorf("%w: unknown ttq profile %q", ErrInvalidParameter, profile.TTQ)
	}
	return profile, nil
}

// SetTTQ switches the qualifier profile used for subsequent GPO builds.
func (p *TerminalProfile) SetTTQ(profile TTQProfile) error {
	if _, ok := ttqValues[profile]; !ok {
		return fmt.Errorf("%w: unknown ttq profile %q", ErrInvalidParameter, profile)
	}
	p.TTQ = profile
	return nil
}

// TTQHex returns the qualifier bytes for the current profile.
func (p *TerminalProfile) TTQHex() string {
	if v, ok := ttqValues[p.TTQ]; ok {
		return v
	}
	return ttqValues[TTQStandard]
}

// Value synthesizes the terminal data object for a PDOL/CDOL tag at exactly
// the requested length. Unknown tags are zero-filled; a card must always get
// a best-effort object rather than a failed build.
func (p *TerminalProfile) Value(tagHex string, length int) []byte {
	if length <= 0 {
		return nil
	}
	switch strings.ToUpper(tagHex) {
	case "9F02": // Amount, Authorized
		return p.padded(p.AmountAuthorized, length)
	case "9F03": // Amount, Other
		return make([]byte, length)
	case "5F2A": // Transaction Currency Code
		return p.padded(p.CurrencyCode, length)
	case "9F1A": // Terminal Country Code
		return p.padded(p.CountryCode, length)
	case "9A": // Transaction Date, YYMMDD
		return p.padded(p.now().Format("060102"), length)
	case "9F21": // Transaction Time, HHMMSS
		return p.padded(p.now().Format("150405"), length)
	case "9C": // Transaction Type
		return p.padded(p.TransactionType, length)
	case "9F33": // Terminal Capabilities
		return p.padded(p.Capabilities, length)
	case "9F40": // Additional Terminal Capabilities
		return p.padded(p.ExtraCaps, length)
	case "9F35": // Terminal Type
		return p.padded(p.TerminalType, length)
	case "9F1E": // Interface Device Serial Number
		return p.padded(p.SerialNumber, length)
	case "95": // Terminal Verification Results
		return make([]byte, length)
	case "9F34": // CVM Results
		return p.padded("000000", length)
	case "9F66": // Terminal Transaction Qualifiers
		return p.padded(p.TTQHex(), length)
	case "9B": // Transaction Status Information
		return p.padded("0000", length)
	case "9F37": // Unpredictable Number
		return p.random(length)
	case "9F41": // Transaction Sequence Counter
		return p.padded("00000001", length)
	case "9F7A": // Application Version Number
		return p.padded("01", length)
	case "9F36": // Application Transaction Counter
		return p.padded("0001", length)
	default:
		Debugf("unknown DOL tag %s, zero-filling %d bytes", tagHex, length)
		return make([]byte, length)
	}
}

// padded left-pads a hex string with zeros to the requested byte length,
// truncating from the left when the value is longer than requested.
func (p *TerminalProfile) padded(hexValue string, length int) []byte {
	want := length * 2
	if len(hexValue) < want {
		hexValue = strings.Repeat("0", want-len(hexValue)) + hexValue
	} else if len(hexValue) > want {
		hexValue = hexValue[len(hexValue)-want:]
	}
	b, err := HexToBytes(hexValue)
	if err != nil {
		return make([]byte, length)
	}
	return b
}

func (p *TerminalProfile) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *TerminalProfile) random(length int) []byte {
	if p.Rand != nil {
		return p.Rand(length)
	}
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return b
}
