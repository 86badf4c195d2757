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
	"testing"

	"github.com/stretchr/testify/assert"

	emv "github.com/magsp00f/go-emv"
)

func TestWorkflowAIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		workflow Workflow
		want     string
	}{
		{WorkflowMSDOnly, "2000"},
		{WorkflowForceOfflineTC, "6000"},
		{WorkflowOnlineAuthorization, "A000"},
		{WorkflowContactlessOptimized, "8000"},
		{WorkflowFullEMV, "7C00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, emv.BytesToHex(tt.workflow.AIP()), "workflow %s", tt.workflow)
	}
}

func TestWorkflowCryptogramInfoData(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x40), WorkflowForceOfflineTC.CryptogramInfoData())
	assert.Equal(t, byte(0x80), WorkflowMSDOnly.CryptogramInfoData())
	assert.Equal(t, byte(0x80), WorkflowOnlineAuthorization.CryptogramInfoData())
	assert.Equal(t, byte(0x80), WorkflowFullEMV.CryptogramInfoData())
}

func TestWorkflowString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "msd_only", WorkflowMSDOnly.String())
	assert.Equal(t, "force_offline_tc", WorkflowForceOfflineTC.String())
	assert.Equal(t, "online_authorization", WorkflowOnlineAuthorization.String())
	assert.Equal(t, "contactless_optimized", WorkflowContactlessOptimized.String())
	assert.Equal(t, "full_emv", WorkflowFullEMV.String())
	assert.Equal(t, "Workflow(42)", Workflow(42).String())
}

func TestWorkflowValid(t *testing.T) {
	t.Parallel()

	for _, w := range Workflows() {
		assert.True(t, w.Valid(), "workflow %s", w)
		assert.NotEmpty(t, w.Description())
	}
	assert.False(t, Workflow(0).Valid())
	assert.False(t, Workflow(6).Valid())
}

func TestWorkflowTTQ(t *testing.T) {
	t.Parallel()

	assert.Equal(t, emv.TTQSimplified, WorkflowMSDOnly.TTQ())
	assert.Equal(t, emv.TTQStandard, WorkflowForceOfflineTC.TTQ())
	assert.Equal(t, emv.TTQStandard, WorkflowOnlineAuthorization.TTQ())
	assert.Equal(t, emv.TTQEnhanced, WorkflowContactlessOptimized.TTQ())
	assert.Equal(t, emv.TTQAdvanced, WorkflowFullEMV.TTQ())
}
