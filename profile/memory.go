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

package profile

import (
	"context"
	"fmt"

	"github.com/magsp00f/go-emv/internal/syncutil"
)

// MemoryStore is an in-memory Store for tests and short-lived sessions.
type MemoryStore struct {
	profiles map[string]*CardProfile
	order    []string
	mu       syncutil.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*CardProfile)}
}

// Save implements Store. Saving an existing ID overwrites it in place.
func (s *MemoryStore) Save(_ context.Context, p *CardProfile) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("save profile: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.profiles[p.ID] = p
	return nil
}

// List implements Store, oldest first.
func (s *MemoryStore) List(_ context.Context) ([]*CardProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CardProfile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id])
	}
	return out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*CardProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// Delete implements Store. Deleting an absent ID reports ErrNotFound.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.profiles, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
