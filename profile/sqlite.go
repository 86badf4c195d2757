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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // cgo-free sqlite driver

	emv "github.com/magsp00f/go-emv"
)

const schema = `
CREATE TABLE IF NOT EXISTS card_profiles (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	card       BLOB NOT NULL
);
`

// SQLiteStore is a Store backed by a local SQLite database. Card data is
// stored as a JSON blob; identity and ordering live in real columns.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the profile database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create profile schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close profile db: %w", err)
	}
	return nil
}

// Save implements Store. Saving an existing ID overwrites it.
func (s *SQLiteStore) Save(ctx context.Context, p *CardProfile) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("save profile: missing id")
	}
	blob, err := json.Marshal(p.Card)
	if err != nil {
		return fmt.Errorf("encode card data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO card_profiles (id, label, created_at, card) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET label=excluded.label, card=excluded.card`,
		p.ID, p.Label, p.CreatedAt.UTC().Format(time.RFC3339Nano), blob)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.ID, err)
	}
	return nil
}

// List implements Store, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*CardProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, created_at, card FROM card_profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CardProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*CardProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, created_at, card FROM card_profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, err
}

// Delete implements Store. Deleting an absent ID reports ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM card_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*CardProfile, error) {
	var (
		p       CardProfile
		created string
		blob    []byte
	)
	if err := row.Scan(&p.ID, &p.Label, &created, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse profile timestamp: %w", err)
	}
	p.CreatedAt = ts

	var card emv.CardData
	if err := json.Unmarshal(blob, &card); err != nil {
		return nil, fmt.Errorf("decode card data: %w", err)
	}
	p.Card = &card
	return &p, nil
}
