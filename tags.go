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

// TagDictionary maps EMV tags (uppercase hex) to semantic names. It exists
// for diagnostics and log readability only; protocol behavior never depends
// on a name lookup.
type TagDictionary map[string]string

// NewTagDictionary constructs the standard EMV tag dictionary. The table is
// built once at startup and injected where needed rather than referenced as
// ambient global state.
func NewTagDictionary() TagDictionary {
	return TagDictionary{
		"4F":   "Application Identifier (AID)",
		"50":   "Application Label",
		"57":   "Track 2 Equivalent Data",
		"5A":   "Application PAN",
		"5F20": "Cardholder Name",
		"5F24": "Application Expiration Date",
		"5F25": "Application Effective Date",
		"5F28": "Issuer Country Code",
		"5F2A": "Transaction Currency Code",
		"5F30": "Service Code",
		"5F34": "PAN Sequence Number",
		"61":   "Application Template",
		"6F":   "FCI Template",
		"70":   "Record Template",
		"77":   "Response Message Template Format 2",
		"80":   "Response Message Template Format 1",
		"82":   "Application Interchange Profile",
		"83":   "Command Template",
		"84":   "Dedicated File Name",
		"87":   "Application Priority Indicator",
		"88":   "Short File Identifier",
		"8A":   "Authorization Response Code",
		"8C":   "CDOL1",
		"8D":   "CDOL2",
		"8E":   "CVM List",
		"8F":   "CA Public Key Index",
		"94":   "Application File Locator",
		"95":   "Terminal Verification Results",
		"9A":   "Transaction Date",
		"9B":   "Transaction Status Information",
		"9C":   "Transaction Type",
		"9F02": "Amount Authorized",
		"9F03": "Amount Other",
		"9F06": "Application Identifier (Terminal)",
		"9F07": "Application Usage Control",
		"9F08": "Application Version Number",
		"9F0D": "Issuer Action Code - Default",
		"9F0E": "Issuer Action Code - Denial",
		"9F0F": "Issuer Action Code - Online",
		"9F10": "Issuer Application Data",
		"9F11": "Issuer Code Table Index",
		"9F12": "Application Preferred Name",
		"9F1A": "Terminal Country Code",
		"9F1E": "Interface Device Serial Number",
		"9F21": "Transaction Time",
		"9F26": "Application Cryptogram",
		"9F27": "Cryptogram Information Data",
		"9F33": "Terminal Capabilities",
		"9F34": "CVM Results",
		"9F35": "Terminal Type",
		"9F36": "Application Transaction Counter",
		"9F37": "Unpredictable Number",
		"9F38": "PDOL",
		"9F40": "Additional Terminal Capabilities",
		"9F41": "Transaction Sequence Counter",
		"9F4A": "Static Data Authentication Tag List",
		"9F66": "Terminal Transaction Qualifiers",
		"9F6C": "Card Transaction Qualifiers",
		"9F6E": "Form Factor Indicator",
		"9F7A": "Application Version Number (Card)",
		"A5":   "FCI Proprietary Template",
		"BF0C": "FCI Issuer Discretionary Data",
	}
}

// Name returns the semantic name for a tag, or "Unknown" when the tag is not
// in the dictionary.
func (d TagDictionary) Name(tagHex string) string {
	if name, ok := d[tagHex]; ok {
		return name
	}
	return "Unknown"
}
