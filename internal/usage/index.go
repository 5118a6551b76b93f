// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/clashops/internal/metrics"
)

// Row is one deck in the queryable snapshot.
type Row struct {
	DeckID    int       `json:"deck_id"`
	Cards     []string  `json:"cards"`
	Score     int       `json:"score"`
	LastEntry time.Time `json:"last_entry"`
}

// Query filters DeckIndex.Top.
type Query struct {
	// Card keeps decks containing this card, compared case-insensitively.
	Card  string
	Limit int
}

// MaxLimit caps Query.Limit.
const MaxLimit = 500

// DeckIndex keeps the latest snapshot in an in-memory DuckDB table.
type DeckIndex struct {
	db *sql.DB
}

var _ Publisher = (*DeckIndex)(nil)

const createDecks = `CREATE TABLE IF NOT EXISTS decks (
	deck_id    INTEGER PRIMARY KEY,
	cards      VARCHAR NOT NULL,
	score      INTEGER NOT NULL,
	last_entry TIMESTAMP NOT NULL
)`

// OpenDeckIndex opens an in-memory DuckDB database.
func OpenDeckIndex() (*DeckIndex, error) {
	db, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("open deck index: %w", err)
	}
	// One connection: an in-memory database is private to its connection
	// pool, and writes are rare.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createDecks); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create decks table: %w", err)
	}
	return &DeckIndex{db: db}, nil
}

// Publish replaces the table contents with snap.
func (x *DeckIndex) Publish(ctx context.Context, snap *Snapshot) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("publish", time.Since(start), err) }()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM decks"); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO decks (deck_id, cards, score, last_entry) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	defer stmt.Close()

	for _, c := range snap.Counters {
		if _, err = stmt.ExecContext(ctx, c.DeckID, strings.Join(c.Cards, CardSeparator), c.Score, c.LastEntry.UTC()); err != nil {
			return fmt.Errorf("publish index: deck %d: %w", c.DeckID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

// LoadCSV replaces the table contents with a previously published CSV
// artifact. A missing file leaves the index empty.
func (x *DeckIndex) LoadCSV(ctx context.Context, path string) (n int, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("load_csv", time.Since(start), err) }()

	if _, err = os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, "DELETE FROM decks"); err != nil {
		return 0, err
	}
	// Table function arguments cannot be bound parameters.
	res, err := tx.ExecContext(ctx, `INSERT INTO decks
		SELECT deck_id, cards, score, last_entry
		FROM read_csv(`+sqlString(path)+`, header = true,
			timestampformat = '%Y-%m-%dT%H:%M:%SZ',
			columns = {'deck_id': 'INTEGER', 'cards': 'VARCHAR', 'score': 'INTEGER', 'last_entry': 'TIMESTAMP'})`)
	if err != nil {
		return 0, fmt.Errorf("load snapshot csv: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	return int(rows), nil
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Top returns the highest scoring decks matching q.
func (x *DeckIndex) Top(ctx context.Context, q Query) (out []Row, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("top", time.Since(start), err) }()

	if q.Limit <= 0 || q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	card := strings.TrimSpace(q.Card)
	rows, err := x.db.QueryContext(ctx, `SELECT deck_id, cards, score, last_entry
		FROM decks
		WHERE ? = '' OR list_contains(string_split(lower(cards), ?), lower(?))
		ORDER BY score DESC, deck_id ASC
		LIMIT ?`, card, CardSeparator, card, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query decks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Row
		var cards string
		if err := rows.Scan(&r.DeckID, &cards, &r.Score, &r.LastEntry); err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		r.Cards = strings.Split(cards, CardSeparator)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of decks in the index.
func (x *DeckIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, "SELECT count(*) FROM decks").Scan(&n)
	return n, err
}

// Close releases the database.
func (x *DeckIndex) Close() error {
	return x.db.Close()
}
