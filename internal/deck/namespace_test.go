// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package deck

import "testing"

func TestCardNamespace(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Goblin Barrel":    "goblin_barrel",
		"[Mega Knight]":    "mega_knight",
		"X-Bow":            "x-bow",
		"[Mini P.E.K.K.A]": "mini_pekka",
		"P.E.K.K.A":        "pekka",
		" The Log ":        "the_log",
	}
	for in, want := range tests {
		if got := CardNamespace(in); got != want {
			t.Errorf("CardNamespace(%q) = %q, want %q", in, got, want)
		}
	}

	if got := EvolutionNamespace("Knight"); got != "evolution_knight" {
		t.Errorf("EvolutionNamespace = %q", got)
	}
}
