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

// Package emv models EMV contactless protocol exchanges for security
// research: BER-TLV parsing, APDU command construction (SELECT PPSE/AID,
// GET PROCESSING OPTIONS, READ RECORD) and a sequential read session that
// assembles a CardData snapshot from a card behind a Transport.
//
// The package performs no cryptographic operations. Cryptogram handling is
// limited to classifying and rewriting status and type fields, which is all
// the research workflows in attack/ and emulate/ require.
package emv
