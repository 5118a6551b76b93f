// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/clashops/internal/breaker"
)

// fakeRoyale serves a tiny Clash Royale API: two clans, three players each.
type fakeRoyale struct {
	mu       sync.Mutex
	paths    []string
	limited  atomic.Int32 // remaining 429 answers for the first player
	noClans  bool
	badToken bool
}

func (f *fakeRoyale) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer royale-key" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasPrefix(r.URL.Path, "/locations/57000006/rankings/clans"):
		if r.URL.Query().Get("limit") != "10" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.noClans {
			fmt.Fprint(w, `{"items":[]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"tag":"#C1","name":"Alpha"},{"tag":"#C2","name":"Beta"}]}`)
	case r.URL.Path == "/clans/#C1":
		fmt.Fprint(w, `{"memberList":[{"tag":"#P1"},{"tag":"#P2"},{"tag":""}]}`)
	case r.URL.Path == "/clans/#C2":
		fmt.Fprint(w, `{"memberList":[{"tag":"#P3"},{"tag":"#GONE"}]}`)
	case r.URL.Path == "/players/#P1":
		if f.limited.Load() > 0 {
			f.limited.Add(-1)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, playerJSON(hogDeck))
	case r.URL.Path == "/players/#P2":
		fmt.Fprint(w, playerJSON(baitDeck))
	case r.URL.Path == "/players/#P3":
		fmt.Fprint(w, playerJSON(hogShuffled))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func playerJSON(raw string) string {
	var cards []string
	for _, c := range strings.Split(strings.Trim(raw, "[]"), ",") {
		cards = append(cards, fmt.Sprintf(`{"name":%q}`, strings.TrimSpace(c)))
	}
	return `{"tag":"#X","currentDeck":[` + strings.Join(cards, ",") + `]}`
}

func newTestCrawler(t *testing.T, url string) *Crawler {
	t.Helper()
	cfg := DefaultCrawlerConfig()
	cfg.BaseURL = url
	cfg.APIKey = "royale-key"
	cfg.PlayerDelay = time.Millisecond
	cfg.RateLimitWait = 5 * time.Millisecond
	cfg.MaxAttempts = 3
	cfg.Breaker = breaker.Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, MinRequests: 100, FailureRatio: 1}
	c, err := NewCrawler(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	return c
}

func TestCrawlerObservations(t *testing.T) {
	fake := &fakeRoyale{}
	fake.limited.Store(2)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	obs, err := newTestCrawler(t, srv.URL).Observations(context.Background())
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("got %d observations: %+v", len(obs), obs)
	}
	// Clan order is preserved regardless of which finished first.
	if obs[0].Source != "#P1" || obs[1].Source != "#P2" || obs[2].Source != "#P3" {
		t.Errorf("sources = %s %s %s", obs[0].Source, obs[1].Source, obs[2].Source)
	}
	if obs[0].Deck != hogDeck {
		t.Errorf("deck = %q", obs[0].Deck)
	}

	snap, err := Aggregate(obs, 8, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Counters[0].Score != 2 {
		t.Errorf("hog deck score = %d, want 2", snap.Counters[0].Score)
	}
}

func TestCrawlerGivesUpAfterRepeatedRateLimits(t *testing.T) {
	fake := &fakeRoyale{}
	fake.limited.Store(100)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	obs, err := newTestCrawler(t, srv.URL).Observations(context.Background())
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	for _, o := range obs {
		if o.Source == "#P1" {
			t.Error("rate limited player should be skipped")
		}
	}
	if len(obs) != 2 {
		t.Errorf("got %d observations, want 2", len(obs))
	}
}

func TestCrawlerNoWaitAfterLastAttempt(t *testing.T) {
	fake := &fakeRoyale{}
	fake.limited.Store(100)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestCrawler(t, srv.URL)
	c.cfg.MaxAttempts = 1
	c.cfg.RateLimitWait = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obs, err := c.Observations(ctx)
	if err != nil {
		t.Fatalf("Observations: %v (waited after the final 429)", err)
	}
	if len(obs) != 2 {
		t.Errorf("got %d observations, want 2", len(obs))
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	var hits int
	for _, p := range fake.paths {
		if p == "/players/#P1" {
			hits++
		}
	}
	if hits != 1 {
		t.Errorf("rate limited player fetched %d times, want 1", hits)
	}
}

func TestCrawlerNoClans(t *testing.T) {
	srv := httptest.NewServer(&fakeRoyale{noClans: true})
	defer srv.Close()

	_, err := newTestCrawler(t, srv.URL).Observations(context.Background())
	if !errors.Is(err, ErrNoClans) {
		t.Fatalf("expected ErrNoClans, got %v", err)
	}
}

func TestCrawlerUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestCrawler(t, srv.URL).Observations(context.Background())
	if err == nil || !strings.HasPrefix(err.Error(), "crawl:") {
		t.Fatalf("expected crawl error, got %v", err)
	}
}

func TestCrawlerHonoursContext(t *testing.T) {
	fake := &fakeRoyale{}
	fake.limited.Store(100)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestCrawler(t, srv.URL)
	c.cfg.RateLimitWait = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Observations(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("crawler ignored cancellation")
	}
}

func TestNewCrawlerRequiresKey(t *testing.T) {
	if _, err := NewCrawler(CrawlerConfig{}, testLogger()); err == nil {
		t.Error("expected error without API key")
	}
}
