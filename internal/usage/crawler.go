// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package usage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/clashops/internal/breaker"
)

// Crawler errors.
var (
	ErrNoClans     = errors.New("crawl: no clans found")
	ErrRateLimited = errors.New("crawl: rate limited")
)

// CrawlerConfig configures the Clash Royale API crawler.
type CrawlerConfig struct {
	BaseURL    string
	APIKey     string
	LocationID int
	TopClans   int

	// PlayerDelay spaces player requests across all workers.
	PlayerDelay time.Duration
	// RateLimitWait is slept after an HTTP 429 before retrying.
	RateLimitWait time.Duration
	// MaxAttempts bounds retries of one request after 429s.
	MaxAttempts int
	// Concurrency is the number of clans crawled at once.
	Concurrency int

	Timeout time.Duration
	Breaker breaker.Config
}

// DefaultCrawlerConfig returns the public API defaults.
func DefaultCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{
		BaseURL:       "https://api.clashroyale.com/v1",
		LocationID:    57000006,
		TopClans:      10,
		PlayerDelay:   200 * time.Millisecond,
		RateLimitWait: 5 * time.Second,
		MaxAttempts:   5,
		Concurrency:   2,
		Timeout:       30 * time.Second,
		Breaker:       breaker.DefaultConfig(),
	}
}

// Source yields one batch of observations per call.
type Source interface {
	Observations(ctx context.Context) ([]Observation, error)
}

// Crawler reads current decks of top clan members.
type Crawler struct {
	cfg     CrawlerConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker.Breaker[[]byte]
	log     zerolog.Logger
	now     func() time.Time
}

var _ Source = (*Crawler)(nil)

// NewCrawler builds a crawler.
func NewCrawler(cfg CrawlerConfig, log zerolog.Logger) (*Crawler, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("crawl: missing API key")
	}
	def := DefaultCrawlerConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TopClans <= 0 {
		cfg.TopClans = def.TopClans
	}
	if cfg.LocationID == 0 {
		cfg.LocationID = def.LocationID
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	limit := rate.Inf
	if cfg.PlayerDelay > 0 {
		limit = rate.Every(cfg.PlayerDelay)
	}
	return &Crawler{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker.New[[]byte]("clash-royale-api", cfg.Breaker, isBenign),
		log:     log,
		now:     time.Now,
	}, nil
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d from %s", e.code, e.url) }

// isBenign reports errors that say nothing about the API's health: unknown
// tags and rate limiting.
func isBenign(err error) bool {
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return true
	}
	return errors.Is(err, ErrRateLimited)
}

type clanRanking struct {
	Items []struct {
		Tag  string `json:"tag"`
		Name string `json:"name"`
	} `json:"items"`
}

type clan struct {
	MemberList []struct {
		Tag string `json:"tag"`
	} `json:"memberList"`
}

type player struct {
	Tag         string `json:"tag"`
	CurrentDeck []struct {
		Name string `json:"name"`
	} `json:"currentDeck"`
}

// Observations crawls every top clan. Clans are fetched concurrently and
// their results concatenated in ranking order.
func (c *Crawler) Observations(ctx context.Context) ([]Observation, error) {
	var ranking clanRanking
	path := fmt.Sprintf("/locations/%d/rankings/clans?limit=%d", c.cfg.LocationID, c.cfg.TopClans)
	if err := c.getJSON(ctx, path, &ranking); err != nil {
		return nil, fmt.Errorf("crawl: top clans: %w", err)
	}
	if len(ranking.Items) == 0 {
		return nil, ErrNoClans
	}
	c.log.Info().Int("clans", len(ranking.Items)).Msg("Crawling top clans")

	perClan := make([][]Observation, len(ranking.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, cl := range ranking.Items {
		g.Go(func() error {
			obs, err := c.crawlClan(gctx, cl.Tag)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Warn().Err(err).Str("clan", cl.Name).Msg("Skipping clan")
				return nil
			}
			perClan[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Observation
	for _, obs := range perClan {
		out = append(out, obs...)
	}
	return out, nil
}

func (c *Crawler) crawlClan(ctx context.Context, tag string) ([]Observation, error) {
	var cl clan
	if err := c.getJSON(ctx, "/clans/"+url.PathEscape(tag), &cl); err != nil {
		return nil, err
	}

	var out []Observation
	for _, m := range cl.MemberList {
		if m.Tag == "" {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		var p player
		if err := c.getJSON(ctx, "/players/"+url.PathEscape(m.Tag), &p); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.log.Debug().Err(err).Str("player", m.Tag).Msg("Could not fetch player")
			continue
		}
		names := make([]string, 0, len(p.CurrentDeck))
		for _, card := range p.CurrentDeck {
			names = append(names, card.Name)
		}
		out = append(out, Observation{Deck: strings.Join(names, ", "), SeenAt: c.now(), Source: m.Tag})
	}
	return out, nil
}

// getJSON fetches path through the breaker, retrying after 429s.
func (c *Crawler) getJSON(ctx context.Context, path string, out any) error {
	var body []byte
	var err error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		body, err = c.breaker.Execute(func() ([]byte, error) { return c.get(ctx, path) })
		if !errors.Is(err, ErrRateLimited) || attempt == c.cfg.MaxAttempts {
			break
		}
		c.log.Debug().Str("path", path).Int("attempt", attempt).Msg("Rate limited, backing off")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RateLimitWait):
		}
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Crawler) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode, url: path}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
