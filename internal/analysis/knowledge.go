// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package analysis

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Passage is one retrieved note.
type Passage struct {
	Namespace string
	Text      string
}

// KnowledgeBase holds card notes grouped by namespace. It is read-only after
// loading and safe for concurrent use.
type KnowledgeBase struct {
	notes map[string][]string
}

type knowledgeFile struct {
	Namespaces map[string][]string `yaml:"namespaces"`
}

// NewKnowledgeBase wraps notes. A nil map gives an empty knowledge base.
func NewKnowledgeBase(notes map[string][]string) *KnowledgeBase {
	kb := &KnowledgeBase{notes: make(map[string][]string, len(notes))}
	for ns, list := range notes {
		ns = strings.ToLower(strings.TrimSpace(ns))
		for _, n := range list {
			if n = strings.TrimSpace(n); n != "" {
				kb.notes[ns] = append(kb.notes[ns], n)
			}
		}
	}
	return kb
}

// ParseKnowledge reads the YAML knowledge format:
//
//	namespaces:
//	  hog_rider:
//	    - Fast building-targeting win condition.
func ParseKnowledge(r io.Reader) (*KnowledgeBase, error) {
	var f knowledgeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse knowledge: %w", err)
	}
	return NewKnowledgeBase(f.Namespaces), nil
}

// LoadKnowledge reads a knowledge file. An empty path yields an empty base.
func LoadKnowledge(path string) (*KnowledgeBase, error) {
	if path == "" {
		return NewKnowledgeBase(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge file: %w", err)
	}
	defer f.Close()
	return ParseKnowledge(f)
}

// Len returns the number of namespaces.
func (kb *KnowledgeBase) Len() int { return len(kb.notes) }

// Retrieve returns up to k notes from each namespace, in the order the
// namespaces are given. Repeated namespaces are consulted once.
func (kb *KnowledgeBase) Retrieve(namespaces []string, k int) []Passage {
	seen := make(map[string]bool, len(namespaces))
	var out []Passage
	for _, ns := range namespaces {
		if seen[ns] {
			continue
		}
		seen[ns] = true
		notes := kb.notes[ns]
		if k > 0 && len(notes) > k {
			notes = notes[:k]
		}
		for _, n := range notes {
			out = append(out, Passage{Namespace: ns, Text: n})
		}
	}
	return out
}
