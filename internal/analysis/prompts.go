// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package analysis

import (
	"fmt"

	"github.com/tomtom215/clashops/internal/report"
)

// Category is the model and instructions used for one report field.
type Category struct {
	Field        report.Field
	Model        string
	Instructions string
}

const sharedRules = `Rules:
- Scores are out of 5.0 with one decimal place.
- Keep summaries short and plain. Mark each point as a pro, a con or a suggestion.
- Answer with a single JSON object and nothing else.`

// DefaultCategories returns the built-in registry. models overrides the
// model per field; missing entries keep the default.
func DefaultCategories(models map[report.Field]string) map[report.Field]Category {
	cats := map[report.Field]Category{
		report.Offense: {
			Model: "gpt-5.1",
			Instructions: `You are a professional Clash Royale coach. Rate the deck's offense.
Return {"Offense": {"Score", "Summary", "Roles": {...}}} where each role (Win Conditions,
Offensive Support, Big Damage Spells, Small Damage Spells, Bridge Pressure, Pump Responses,
Chip Damage) has "Score", "Summary" and "Cards".`,
		},
		report.Defense: {
			Model: "gpt-5.1",
			Instructions: `You are a professional Clash Royale coach. Rate the deck's defense.
Return {"Defense": {"Score", "Summary", "Roles": {...}}} where each role (Air Defense, Crowd
Control, Mini Tank, Buildings, Reset Mechanics, Tank Killer, Control Stall, Cycle Cards,
Investments, Swarm Units, Spell Bait) has "Score", "Summary" and "Cards".`,
		},
		report.Synergy: {
			Model: "gpt-5",
			Instructions: `You are a professional Clash Royale coach. Rate how the deck's cards work together.
Return {"Synergy": {"Score", "Summary", "Combos": {"Offensive Combos", "Defensive Combos"}}}
where each combo group has "Score", "Summary" and "Cards".`,
		},
		report.Versatility: {
			Model: "gpt-5",
			Instructions: `You are a professional Clash Royale coach. Rate how well the deck adapts to
different opponents. Return {"Versatility": {"Score", "Summary", "Matchups": {...}}} covering
beatdown, control, cycle, siege and bait archetypes.`,
		},
		report.Optimize: {
			Model: "gpt-5",
			Instructions: `You are a professional Clash Royale coach. Using the category ratings provided,
suggest improvements. Return {"Optimize": {"Swaps": [...], "Tower Troop": {...}, "Evolutions": [...]}}
with a reason for every suggestion.`,
		},
	}
	for f, c := range cats {
		c.Field = f
		c.Instructions += "\n\n" + sharedRules
		if m, ok := models[f]; ok && m != "" {
			c.Model = m
		}
		cats[f] = c
	}
	return cats
}

func lookupCategory(cats map[report.Field]Category, f report.Field) (Category, error) {
	c, ok := cats[f]
	if !ok {
		return Category{}, fmt.Errorf("%w: %s", report.ErrUnknownField, f)
	}
	return c, nil
}
