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

// Package profile persists card profiles captured by read sessions. The
// read core only ever writes into this boundary; it never reads back from
// persistence during a session.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	emv "github.com/magsp00f/go-emv"
)

// ErrNotFound indicates no profile exists for the requested ID.
var ErrNotFound = errors.New("card profile not found")

// CardProfile wraps a CardData snapshot with storage identity.
type CardProfile struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	CreatedAt time.Time     `json:"created_at"`
	Card      *emv.CardData `json:"card"`
}

// NewCardProfile assigns a fresh ID and a display label derived from the
// card (brand and masked PAN) when none is given.
func NewCardProfile(card *emv.CardData, label string) *CardProfile {
	if label == "" {
		label = string(card.Brand())
		if masked := card.MaskedPAN(); masked != "" {
			label += " " + masked
		}
	}
	return &CardProfile{
		ID:        uuid.NewString(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
		Card:      card,
	}
}

// Store is the card profile persistence boundary: save, list, fetch and
// delete, with List ordered oldest first.
type Store interface {
	Save(ctx context.Context, profile *CardProfile) error
	List(ctx context.Context) ([]*CardProfile, error)
	Get(ctx context.Context, id string) (*CardProfile, error)
	Delete(ctx context.Context, id string) error
}
