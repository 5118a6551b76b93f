// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SnapshotFile is the artifact name inside the snapshot directory.
const SnapshotFile = "decks.csv"

// CardSeparator joins card names in the CSV cards column.
const CardSeparator = "; "

// Publisher receives each new snapshot. Publishing replaces the previous
// snapshot as a whole.
type Publisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// WriteCSV writes snap as deck_id,cards,score,last_entry.
func WriteCSV(w io.Writer, snap *Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"deck_id", "cards", "score", "last_entry"}); err != nil {
		return err
	}
	for _, c := range snap.Counters {
		err := cw.Write([]string{
			strconv.Itoa(c.DeckID),
			strings.Join(c.Cards, CardSeparator),
			strconv.Itoa(c.Score),
			c.LastEntry.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVPublisher writes the snapshot to Dir/decks.csv, replacing the old file
// with a rename so readers never see a partial snapshot.
type CSVPublisher struct {
	Dir string
}

// Path returns the artifact path.
func (p *CSVPublisher) Path() string {
	return filepath.Join(p.Dir, SnapshotFile)
}

// Publish implements Publisher.
func (p *CSVPublisher) Publish(_ context.Context, snap *Snapshot) (err error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(p.Dir, ".decks-*.csv")
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, snap); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("publish snapshot: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("publish snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	if err = os.Rename(tmp.Name(), p.Path()); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// LastRun reports the modification time of the published artifact, so a
// refresh schedule can tell whether a run date passed while the process was
// down. A missing artifact gives the zero time.
func (p *CSVPublisher) LastRun(context.Context) (time.Time, error) {
	info, err := os.Stat(p.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// RecordRun is a no-op: Publish already moved the artifact's mtime.
func (p *CSVPublisher) RecordRun(context.Context, time.Time) error {
	return nil
}
