// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/report"
)

type fakeChat struct {
	got []Completion
	out string
	err error
}

func (f *fakeChat) Complete(_ context.Context, c Completion) (string, error) {
	f.got = append(f.got, c)
	return f.out, f.err
}

const hogDeck = "Hog Rider, Musketeer, Ice Spirit, Skeletons, Cannon, Fireball, The Log, Ice Golem"

func testKnowledge(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb, err := LoadKnowledge("testdata/knowledge.yaml")
	if err != nil {
		t.Fatalf("LoadKnowledge: %v", err)
	}
	return kb
}

func TestAnalyzeCategory(t *testing.T) {
	chat := &fakeChat{out: `{"Offense":{}}`}
	a := NewAnalyzer(chat, testKnowledge(t), AnalyzerConfig{TopK: 1, Models: map[report.Field]string{report.Offense: "custom-model"}})

	out, err := a.Analyze(context.Background(), report.Request{
		RowID: hogDeck,
		Cards: deck.Members(hogDeck),
		Field: report.Offense,
	})
	if err != nil || out != `{"Offense":{}}` {
		t.Fatalf("Analyze = %q, %v", out, err)
	}

	c := chat.got[0]
	if c.Model != "custom-model" || c.User != hogDeck {
		t.Errorf("completion = %+v", c)
	}
	if !strings.Contains(c.System, "[hog_rider] Fast building-targeting") {
		t.Errorf("system prompt lacks card notes:\n%s", c.System)
	}
	if strings.Contains(c.System, "Punishes slow") {
		t.Error("TopK=1 should keep only the first note per namespace")
	}
	if strings.Contains(c.System, "tower_princess") {
		t.Error("regular categories do not consult tower troops")
	}
}

func TestAnalyzeOptimize(t *testing.T) {
	chat := &fakeChat{out: `{"Optimize":{}}`}
	a := NewAnalyzer(chat, testKnowledge(t), AnalyzerConfig{})

	_, err := a.Analyze(context.Background(), report.Request{
		RowID:    hogDeck,
		Cards:    deck.Members(hogDeck),
		Field:    report.Optimize,
		Siblings: map[report.Field]string{report.Offense: `{"Score":4.0}`},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	c := chat.got[0]
	for _, want := range []string{"[tower_princess]", "[cannoneer]", "[evolution_musketeer]"} {
		if !strings.Contains(c.System, want) {
			t.Errorf("system prompt lacks %s", want)
		}
	}
	if strings.Contains(c.System, "[hog_rider]") {
		t.Error("optimize should use evolution namespaces, not card namespaces")
	}

	var in struct {
		Deck    string            `json:"Deck Analyzed"`
		Ratings map[string]string `json:"Ratings"`
	}
	if err := json.Unmarshal([]byte(c.User), &in); err != nil {
		t.Fatalf("user prompt is not JSON: %v", err)
	}
	if in.Deck != hogDeck || in.Ratings["Offense"] != `{"Score":4.0}` {
		t.Errorf("optimize input = %+v", in)
	}
}

func TestAnalyzeWrapsClientError(t *testing.T) {
	boom := errors.New("upstream down")
	a := NewAnalyzer(&fakeChat{err: boom}, nil, AnalyzerConfig{})
	_, err := a.Analyze(context.Background(), report.Request{RowID: hogDeck, Field: report.Defense})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped upstream error, got %v", err)
	}

	_, err = a.Analyze(context.Background(), report.Request{RowID: hogDeck, Field: report.Field("Tempo")})
	if !errors.Is(err, report.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestNamespaces(t *testing.T) {
	cards := []string{"X-Bow", "Mini P.E.K.K.A", "Goblin Barrel"}
	got := Namespaces(report.Request{Field: report.Synergy, Cards: cards})
	want := []string{"x-bow", "mini_pekka", "goblin_barrel"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Namespaces = %v, want %v", got, want)
	}

	got = Namespaces(report.Request{Field: report.Optimize, Cards: cards})
	if len(got) != len(deck.TowerTroops)+len(cards) || got[len(got)-1] != "evolution_goblin_barrel" {
		t.Errorf("optimize namespaces = %v", got)
	}
}

func TestKnowledgeRetrieve(t *testing.T) {
	kb := NewKnowledgeBase(map[string][]string{
		" Hog_Rider ": {"a", " ", "b", "c"},
		"cannon":      {"d"},
	})
	if kb.Len() != 2 {
		t.Fatalf("Len = %d", kb.Len())
	}
	got := kb.Retrieve([]string{"hog_rider", "missing", "cannon", "hog_rider"}, 2)
	if len(got) != 3 || got[0].Text != "a" || got[1].Text != "b" || got[2].Namespace != "cannon" {
		t.Errorf("Retrieve = %+v", got)
	}
}

func TestParseKnowledgeRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseKnowledge(strings.NewReader("cards:\n  x: [y]\n")); err == nil {
		t.Error("expected error for unknown top-level key")
	}
	kb, err := ParseKnowledge(strings.NewReader(""))
	if err != nil || kb.Len() != 0 {
		t.Errorf("empty file = %v, %v", kb, err)
	}
	if _, err := LoadKnowledge("testdata/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
