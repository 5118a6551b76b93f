// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/report"
)

var completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "clashops_analysis_completion_duration_seconds",
	Help:    "Duration of analysis completions, by category and outcome",
	Buckets: []float64{1, 5, 10, 20, 40, 60, 120, 300},
}, []string{"category", "outcome"})

// AnalyzerConfig configures Analyzer.
type AnalyzerConfig struct {
	// TopK limits the notes taken from each namespace.
	TopK      int
	MaxTokens int
	Models    map[report.Field]string
}

// Analyzer implements report.Analyzer on top of a ChatClient.
type Analyzer struct {
	client     ChatClient
	knowledge  *KnowledgeBase
	categories map[report.Field]Category
	cfg        AnalyzerConfig
}

var _ report.Analyzer = (*Analyzer)(nil)

// NewAnalyzer builds an analyzer. kb may be nil.
func NewAnalyzer(client ChatClient, kb *KnowledgeBase, cfg AnalyzerConfig) *Analyzer {
	if kb == nil {
		kb = NewKnowledgeBase(nil)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Analyzer{
		client:     client,
		knowledge:  kb,
		categories: DefaultCategories(cfg.Models),
		cfg:        cfg,
	}
}

// Analyze implements report.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, req report.Request) (string, error) {
	cat, err := lookupCategory(a.categories, req.Field)
	if err != nil {
		return "", err
	}

	user, err := a.userPrompt(req)
	if err != nil {
		return "", err
	}
	comp := Completion{
		Model:     cat.Model,
		System:    a.systemPrompt(cat, a.knowledge.Retrieve(Namespaces(req), a.cfg.TopK)),
		User:      user,
		MaxTokens: a.cfg.MaxTokens,
	}

	start := time.Now()
	out, err := a.client.Complete(ctx, comp)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	completionDuration.WithLabelValues(string(req.Field), outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", fmt.Errorf("analyze %s: %w", req.Field, err)
	}
	logging.Ctx(ctx).Debug().
		Str("field", string(req.Field)).
		Str("model", cat.Model).
		Dur("took", time.Since(start)).
		Msg("Completion received")
	return out, nil
}

// Namespaces lists the knowledge namespaces consulted for req.
func Namespaces(req report.Request) []string {
	var ns []string
	if req.Field == report.Optimize {
		ns = append(ns, deck.TowerTroops...)
		for _, c := range req.Cards {
			ns = append(ns, deck.EvolutionNamespace(c))
		}
		return ns
	}
	for _, c := range req.Cards {
		ns = append(ns, deck.CardNamespace(c))
	}
	return ns
}

func (a *Analyzer) systemPrompt(cat Category, passages []Passage) string {
	var b strings.Builder
	b.WriteString(cat.Instructions)
	if len(passages) > 0 {
		b.WriteString("\n\nContext:\n")
		for _, p := range passages {
			fmt.Fprintf(&b, "[%s] %s\n", p.Namespace, p.Text)
		}
	}
	return b.String()
}

// userPrompt is the deck itself, plus the other categories' ratings for
// Optimize.
func (a *Analyzer) userPrompt(req report.Request) (string, error) {
	if req.Field != report.Optimize {
		return req.RowID, nil
	}
	in := struct {
		Deck    string            `json:"Deck Analyzed"`
		Ratings map[string]string `json:"Ratings,omitempty"`
	}{Deck: req.RowID, Ratings: make(map[string]string, len(req.Siblings))}
	for f, v := range req.Siblings {
		in.Ratings[string(f)] = v
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode optimize input: %w", err)
	}
	return string(b), nil
}
