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
	"fmt"

	emv "github.com/magsp00f/go-emv"
	"github.com/magsp00f/go-emv/internal/syncutil"
)

// Engine dispatches attack profiles by ID and tracks per-profile invocation
// statistics. The profiles themselves are stateless; the engine may be
// shared across goroutines evaluating different cards concurrently.
type Engine struct {
	profiles map[ProfileID]Profile
	order    []ProfileID
	stats    map[ProfileID]int
	mu       syncutil.RWMutex
}

// NewEngine creates an engine over the closed profile set.
func NewEngine() *Engine {
	e := &Engine{
		profiles: make(map[ProfileID]Profile),
		stats:    make(map[ProfileID]int),
	}
	for _, p := range Profiles() {
		e.profiles[p.ID] = p
		e.order = append(e.order, p.ID)
	}
	return e
}

// Profile returns the profile for an ID.
func (e *Engine) Profile(id ProfileID) (Profile, bool) {
	p, ok := e.profiles[id]
	return p, ok
}

// IDs returns every profile ID in definition order.
func (e *Engine) IDs() []ProfileID {
	return append([]ProfileID(nil), e.order...)
}

// Applicable returns the IDs of every profile whose data requirements the
// card satisfies, in definition order.
func (e *Engine) Applicable(card *emv.CardData) []ProfileID {
	var ids []ProfileID
	for _, id := range e.order {
		if e.profiles[id].Applicable(card) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Execute runs one profile against the card and records the invocation.
// Unknown IDs are the only error condition; a transform that cannot apply
// reports failure through the Result.
func (e *Engine) Execute(id ProfileID, card *emv.CardData) (Result, error) {
	p, ok := e.profiles[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown attack profile %q", emv.ErrInvalidParameter, id)
	}

	result := p.Execute(card)

	e.mu.Lock()
	e.stats[id]++
	e.mu.Unlock()

	emv.Debugf("attack %s: %s", id, result)
	return result, nil
}

// Stats returns a copy of the per-profile invocation counts.
func (e *Engine) Stats() map[ProfileID]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[ProfileID]int, len(e.stats))
	for k, v := range e.stats {
		out[k] = v
	}
	return out
}

// Reset clears the invocation counts.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.stats = make(map[ProfileID]int)
	e.mu.Unlock()
}
