// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package report

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/store"
)

// Request is what an Analyzer receives for one field.
type Request struct {
	RowID        string
	CanonicalKey string
	Cards        []string
	Field        Field

	// Siblings holds the Ready values of the record's other fields as they
	// were when the request was resolved.
	Siblings map[Field]string
}

// Analyzer produces the analysis text for one field of one deck.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req Request) (string, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// CreateStatus is the outcome of CreateRecord.
type CreateStatus int

const (
	Created CreateStatus = iota + 1
	AlreadyExists
)

func (s CreateStatus) String() string {
	switch s {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// CreateResult describes the record a CreateRecord call ended up with.
type CreateResult struct {
	Status       CreateStatus
	RowID        string
	CanonicalKey string
}

// View is a read-only snapshot of a record.
type View struct {
	RowID        string
	CanonicalKey string
	States       map[Field]State
	Values       map[Field]string
}

// ServiceConfig configures Service.
type ServiceConfig struct {
	Partition string
	DeckSize  int
}

// Service is the caller-facing surface of the report cache.
type Service struct {
	store    store.Store
	resolver Resolver
	engine   *Engine
	analyzer Analyzer
	notifier events.Notifier
	cfg      ServiceConfig
}

// NewService wires the cache together. notifier may be nil.
func NewService(st store.Store, resolver Resolver, engine *Engine, analyzer Analyzer, cfg ServiceConfig, notifier events.Notifier) *Service {
	if cfg.Partition == "" {
		cfg.Partition = store.DefaultPartition
	}
	if cfg.DeckSize <= 0 {
		cfg.DeckSize = deck.Size
	}
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Service{store: st, resolver: resolver, engine: engine, analyzer: analyzer, notifier: notifier, cfg: cfg}
}

// CreateRecord stores a new record for raw with every field Absent. If a
// record with the same cards exists, its row ID is returned with
// AlreadyExists. Malformed decks return a *deck.ValidationError.
func (s *Service) CreateRecord(ctx context.Context, raw string) (CreateResult, error) {
	canonical, err := deck.CanonicalizeValidated(raw, s.cfg.DeckSize)
	if err != nil {
		return CreateResult{}, err
	}
	row := strings.TrimSpace(raw)

	if _, existing, found, err := s.resolver.FindByIdentity(ctx, raw); err != nil {
		return CreateResult{}, err
	} else if found {
		return CreateResult{Status: AlreadyExists, RowID: existing, CanonicalKey: canonical}, nil
	}

	rec := &store.Record{
		Partition:    s.cfg.Partition,
		RowID:        row,
		CanonicalKey: canonical,
		Fields:       InitialFields(),
	}
	err = s.store.CreateIfAbsent(ctx, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent create of the same deck.
		existing := row
		if _, r, found, ferr := s.resolver.FindByIdentity(ctx, raw); ferr == nil && found {
			existing = r
		}
		return CreateResult{Status: AlreadyExists, RowID: existing, CanonicalKey: canonical}, nil
	}
	if err != nil {
		return CreateResult{}, &StoreError{Op: "create", Err: err}
	}

	logging.Ctx(ctx).Info().Str("row", row).Str("canonical", canonical).Msg("Report created")
	ev := events.New(events.ReportCreated)
	ev.RowID = row
	s.notifier.Notify(ctx, ev)

	return CreateResult{Status: Created, RowID: row, CanonicalKey: canonical}, nil
}

// Lookup returns the record for raw, or ErrNotFound.
func (s *Service) Lookup(ctx context.Context, raw string) (*View, error) {
	if _, err := deck.CanonicalizeValidated(raw, s.cfg.DeckSize); err != nil {
		return nil, err
	}
	rec, _, found, err := s.resolver.FindByIdentity(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	v := &View{
		RowID:        rec.RowID,
		CanonicalKey: rec.CanonicalKey,
		States:       make(map[Field]State, len(Fields)),
		Values:       make(map[Field]string),
	}
	for _, f := range Fields {
		value := rec.Fields[string(f)]
		v.States[f] = Classify(value)
		if v.States[f] == Ready {
			v.Values[f] = value
		}
	}
	return v, nil
}

// ResolveField returns the analysis for field of the deck raw, computing it
// through the Analyzer when needed.
func (s *Service) ResolveField(ctx context.Context, raw string, field Field) (string, error) {
	if _, err := deck.CanonicalizeValidated(raw, s.cfg.DeckSize); err != nil {
		return "", err
	}
	if _, err := ParseField(string(field)); err != nil {
		return "", err
	}

	rec, row, found, err := s.resolver.FindByIdentity(ctx, raw)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}

	req := Request{
		RowID:        row,
		CanonicalKey: rec.CanonicalKey,
		Cards:        deck.Members(row),
		Field:        field,
		Siblings:     make(map[Field]string),
	}
	for _, f := range Fields {
		if f == field {
			continue
		}
		if v := rec.Fields[string(f)]; Classify(v) == Ready {
			req.Siblings[f] = v
		}
	}

	return s.engine.Resolve(ctx, row, field, func(cctx context.Context) (string, error) {
		return s.analyzer.Analyze(cctx, req)
	})
}

// ForceReset clears a stuck Pending field of raw. It returns the state the
// field was in; only Pending fields are changed.
func (s *Service) ForceReset(ctx context.Context, raw string, field Field) (State, error) {
	if _, err := deck.CanonicalizeValidated(raw, s.cfg.DeckSize); err != nil {
		return Absent, err
	}
	_, row, found, err := s.resolver.FindByIdentity(ctx, raw)
	if err != nil {
		return Absent, err
	}
	if !found {
		return Absent, ErrNotFound
	}
	return s.engine.Reset(ctx, row, field)
}
