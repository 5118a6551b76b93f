// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"fmt"
	"strings"
)

// Field is a report category stored as one record field.
type Field string

const (
	Offense     Field = "Offense"
	Defense     Field = "Defense"
	Synergy     Field = "Synergy"
	Versatility Field = "Versatility"
	Optimize    Field = "Optimize"
)

// Fields lists every category in display order.
var Fields = []Field{Offense, Defense, Synergy, Versatility, Optimize}

// Sentinel values stored in a field that has no result.
const (
	AbsentValue  = "no"
	PendingValue = "loading"
)

// State is the lifecycle state of one field.
type State int

const (
	Absent State = iota
	Pending
	Ready
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Classify maps a stored value to its state. A missing field (empty string)
// is Absent.
func Classify(value string) State {
	switch value {
	case "", AbsentValue:
		return Absent
	case PendingValue:
		return Pending
	default:
		return Ready
	}
}

// Class selects the wait deadline for a field.
type Class int

const (
	ClassShort Class = iota
	ClassLong
)

func (c Class) String() string {
	if c == ClassLong {
		return "long"
	}
	return "short"
}

// ClassOf returns the deadline class of f. Optimize pulls in tower troop and
// evolution knowledge on top of the deck's cards and gets the long class.
func ClassOf(f Field) Class {
	if f == Optimize {
		return ClassLong
	}
	return ClassShort
}

// ParseField accepts a category name in any case ("offense", "OPTIMIZE").
func ParseField(name string) (Field, error) {
	name = strings.TrimSpace(name)
	for _, f := range Fields {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// InitialFields returns the field map for a new record: every category Absent.
func InitialFields() map[string]string {
	m := make(map[string]string, len(Fields))
	for _, f := range Fields {
		m[string(f)] = AbsentValue
	}
	return m
}
