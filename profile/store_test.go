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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emv "github.com/magsp00f/go-emv"
)

func testCard() *emv.CardData {
	return emv.NewCardData(map[string]string{
		"82": "2000",
		"57": "4154904674973556D29022010000820083001F",
		"5A": "4154904674973556",
	}, []string{emv.AIDVisa}, emv.AIDVisa, []emv.ApduLogEntry{
		{Command: "00A4", Response: "9000", StatusWord: "9000"},
	})
}

func TestNewCardProfile(t *testing.T) {
	t.Parallel()

	p := NewCardProfile(testCard(), "")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "VISA 415490******3556", p.Label)
	assert.False(t, p.CreatedAt.IsZero())

	labelled := NewCardProfile(testCard(), "office badge test")
	assert.Equal(t, "office badge test", labelled.Label)
	assert.NotEqual(t, p.ID, labelled.ID)
}

// storeUnderTest exercises the Store contract shared by both backends.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	first := NewCardProfile(testCard(), "first")
	second := NewCardProfile(testCard(), "second")
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Label)
	assert.Equal(t, "second", list[1].Label)

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Label)
	require.NotNil(t, got.Card)
	assert.Equal(t, "4154904674973556", got.Card.PAN)
	assert.Equal(t, "2000", got.Card.Tags["82"])
	require.Len(t, got.Card.APDULog, 1)
	assert.Equal(t, "9000", got.Card.APDULog[0].StatusWord)

	// Upsert: saving the same ID replaces the label
	first.Label = "renamed"
	require.NoError(t, store.Save(ctx, first))
	got, err = store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Label)

	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, store.Delete(ctx, first.ID))
	_, err = store.Get(ctx, first.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, first.ID), ErrNotFound)

	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Label)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	storeUnderTest(t, NewMemoryStore())
}

func TestMemoryStore_SaveMissingID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	require.Error(t, store.Save(context.Background(), &CardProfile{}))
	require.Error(t, store.Save(context.Background(), nil))
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	storeUnderTest(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profiles.db")

	store, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)

	p := NewCardProfile(testCard(), "persisted")
	require.NoError(t, store.Save(ctx, p))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Label)
	assert.Equal(t, "4154904674973556", got.Card.PAN)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Millisecond)
}
