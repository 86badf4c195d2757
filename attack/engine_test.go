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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emv "github.com/magsp00f/go-emv"
)

func TestEngineIDs_DefinitionOrder(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	assert.Equal(t, []ProfileID{
		PPSEAidPoisoning,
		AIPForceOffline,
		Track2Spoofing,
		CryptogramDowngrade,
		CVMBypass,
	}, engine.IDs())
}

func TestEngineProfile(t *testing.T) {
	t.Parallel()

	engine := NewEngine()

	p, ok := engine.Profile(CVMBypass)
	require.True(t, ok)
	assert.Equal(t, CVMBypass, p.ID)
	assert.NotEmpty(t, p.Description)

	_, ok = engine.Profile("nonexistent")
	assert.False(t, ok)
}

func TestEngineApplicable(t *testing.T) {
	t.Parallel()

	engine := NewEngine()

	assert.Len(t, engine.Applicable(fullCard()), 5)

	// AIP only: force-offline is the single applicable profile
	card := emv.NewCardData(map[string]string{"82": "2000"}, nil, "", nil)
	assert.Equal(t, []ProfileID{AIPForceOffline}, engine.Applicable(card))
}

func TestEngineExecute_UnknownProfile(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	_, err := engine.Execute("no_such_profile", fullCard())
	require.ErrorIs(t, err, emv.ErrInvalidParameter)
}

func TestEngineStats(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	card := fullCard()

	for range 3 {
		_, err := engine.Execute(AIPForceOffline, card)
		require.NoError(t, err)
	}
	_, err := engine.Execute(CVMBypass, card)
	require.NoError(t, err)

	stats := engine.Stats()
	assert.Equal(t, 3, stats[AIPForceOffline])
	assert.Equal(t, 1, stats[CVMBypass])

	// The returned map is a copy
	stats[AIPForceOffline] = 99
	assert.Equal(t, 3, engine.Stats()[AIPForceOffline])

	engine.Reset()
	assert.Empty(t, engine.Stats())
}

func TestEngineConcurrentExecute(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	card := fullCard()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range engine.IDs() {
				_, err := engine.Execute(id, card)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	stats := engine.Stats()
	for _, id := range engine.IDs() {
		assert.Equal(t, 8, stats[id])
	}
	// The shared snapshot survived concurrent evaluation untouched
	assert.Equal(t, "4154904674973556", card.PAN)
	assert.Equal(t, "2000", card.AIP)
}
