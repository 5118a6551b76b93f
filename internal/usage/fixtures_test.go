// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const (
	hogDeck      = "Hog Rider, Musketeer, Ice Spirit, Skeletons, Cannon, Fireball, The Log, Ice Golem"
	hogShuffled  = "[ice golem, The Log, Fireball, Cannon, Skeletons, Ice Spirit, Musketeer, HOG RIDER]"
	baitDeck     = "Goblin Barrel, Princess, Knight, Inferno Tower, Rocket, The Log, Ice Spirit, Goblin Gang"
	beatdownDeck = "Golem, Night Witch, Baby Dragon, Lumberjack, Tornado, Lightning, Barbarian Barrel, Mega Minion"
)

var t0 = time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

// sampleObservations folds to hog=3, bait=2, beatdown=1 with one skip.
func sampleObservations() []Observation {
	return []Observation{
		{Deck: hogDeck, SeenAt: at(0)},
		{Deck: baitDeck, SeenAt: at(1)},
		{Deck: hogShuffled, SeenAt: at(2)},
		{Deck: beatdownDeck, SeenAt: at(3)},
		{Deck: baitDeck, SeenAt: at(4)},
		{Deck: "Hog Rider", SeenAt: at(4), Source: "#BROKEN"},
		{Deck: hogDeck, SeenAt: at(5)},
	}
}

func testLogger() zerolog.Logger { return zerolog.Nop() }

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := Aggregate(sampleObservations(), 8, testLogger())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return snap
}
