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

// Package emulate answers terminal APDUs as an emulated card. A Responder
// holds a fixed card identity and a selected workflow; its responses are
// canned but internally consistent, so a terminal walking SELECT PPSE,
// SELECT AID, GPO and READ RECORD sees a card whose AIP, CVM behavior and
// cryptogram type match the chosen workflow.
package emulate

import (
	"fmt"

	emv "github.com/magsp00f/go-emv"
)

// Workflow selects the emulation behavior: which AIP the card advertises
// and which cryptogram type it produces.
type Workflow int

const (
	// WorkflowMSDOnly emulates magnetic stripe data only, no chip
	// authentication (AIP 2000).
	WorkflowMSDOnly Workflow = iota + 1
	// WorkflowForceOfflineTC generates an offline approval with no CVM
	// required (AIP 6000).
	WorkflowForceOfflineTC
	// WorkflowOnlineAuthorization requests online authorization via ARQC
	// (AIP A000).
	WorkflowOnlineAuthorization
	// WorkflowContactlessOptimized favors a fast minimal exchange
	// (AIP 8000).
	WorkflowContactlessOptimized
	// WorkflowFullEMV advertises the complete chip authentication suite
	// (AIP 7C00).
	WorkflowFullEMV
)

// Workflows lists every defined workflow in ID order.
func Workflows() []Workflow {
	return []Workflow{
		WorkflowMSDOnly,
		WorkflowForceOfflineTC,
		WorkflowOnlineAuthorization,
		WorkflowContactlessOptimized,
		WorkflowFullEMV,
	}
}

func (w Workflow) String() string {
	switch w {
	case WorkflowMSDOnly:
		return "msd_only"
	case WorkflowForceOfflineTC:
		return "force_offline_tc"
	case WorkflowOnlineAuthorization:
		return "online_authorization"
	case WorkflowContactlessOptimized:
		return "contactless_optimized"
	case WorkflowFullEMV:
		return "full_emv"
	default:
		return fmt.Sprintf("Workflow(%d)", int(w))
	}
}

// Description returns the human-readable workflow summary.
func (w Workflow) Description() string {
	switch w {
	case WorkflowMSDOnly:
		return "MSD-Only: magnetic stripe emulation only"
	case WorkflowForceOfflineTC:
		return "Force Offline TC: generate offline approval"
	case WorkflowOnlineAuthorization:
		return "Online Authorization: request online approval"
	case WorkflowContactlessOptimized:
		return "Contactless Optimized: fast transaction"
	case WorkflowFullEMV:
		return "Full EMV: complete chip authentication"
	default:
		return "unknown workflow"
	}
}

// Valid reports whether w names a defined workflow.
func (w Workflow) Valid() bool {
	return w >= WorkflowMSDOnly && w <= WorkflowFullEMV
}

// AIP returns the application interchange profile the workflow advertises.
func (w Workflow) AIP() []byte {
	switch w {
	case WorkflowForceOfflineTC:
		return []byte{0x60, 0x00}
	case WorkflowOnlineAuthorization:
		return []byte{0xA0, 0x00}
	case WorkflowContactlessOptimized:
		return []byte{0x80, 0x00}
	case WorkflowFullEMV:
		return []byte{0x7C, 0x00}
	default:
		return []byte{0x20, 0x00}
	}
}

// CryptogramInfoData returns the CID byte consistent with the workflow:
// TC for forced offline approval, ARQC otherwise.
func (w Workflow) CryptogramInfoData() byte {
	if w == WorkflowForceOfflineTC {
		return 0x40
	}
	return 0x80
}

// TTQ returns the terminal qualifier profile that exercises this workflow
// from the reader side.
func (w Workflow) TTQ() emv.TTQProfile {
	switch w {
	case WorkflowMSDOnly:
		return emv.TTQSimplified
	case WorkflowContactlessOptimized:
		return emv.TTQEnhanced
	case WorkflowFullEMV:
		return emv.TTQAdvanced
	default:
		return emv.TTQStandard
	}
}
