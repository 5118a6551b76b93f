// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package deck

import "strings"

// TowerTroops are the knowledge namespaces consulted for every optimization,
// independent of the deck's cards.
var TowerTroops = []string{"tower_princess", "cannoneer", "dagger_duchess", "royal_chef"}

var namespaceOverrides = map[string]string{
	"X-Bow":          "x-bow",
	"Mini P.E.K.K.A": "mini_pekka",
	"P.E.K.K.A":      "pekka",
}

// CardNamespace maps a card name to its knowledge namespace, e.g.
// "Goblin Barrel" -> "goblin_barrel".
func CardNamespace(card string) string {
	bare := strings.TrimSpace(strings.NewReplacer("[", "", "]", "").Replace(card))
	if ns, ok := namespaceOverrides[bare]; ok {
		return ns
	}
	return strings.ReplaceAll(strings.ToLower(bare), " ", "_")
}

// EvolutionNamespace is the namespace holding a card's evolution notes.
func EvolutionNamespace(card string) string {
	return "evolution_" + CardNamespace(card)
}
