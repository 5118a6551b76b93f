// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tomtom215/clashops/internal/deck"
	"github.com/tomtom215/clashops/internal/logging"
)

// RedisConfig configures the shared store.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// Hash layout for one record at <prefix>rec:<partition>:<b64 row>:
//
//	_row, _canonical -> identity
//	f:<field>        -> field value
//
// <prefix>rows:<partition> is a set of rows, <prefix>idx:<partition> a hash
// from folded canonical key to row.
const (
	redisRowField       = "_row"
	redisCanonicalField = "_canonical"
	redisFieldPrefix    = "f:"
)

// KEYS: rec, rows, idx. ARGV: row, folded, canonical, then field/value pairs.
var createScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then return 1 end
if ARGV[2] ~= "" and redis.call("HEXISTS", KEYS[3], ARGV[2]) == 1 then return 1 end
redis.call("HSET", KEYS[1], "_row", ARGV[1], "_canonical", ARGV[3])
for i = 4, #ARGV, 2 do redis.call("HSET", KEYS[1], ARGV[i], ARGV[i+1]) end
redis.call("SADD", KEYS[2], ARGV[1])
if ARGV[2] ~= "" then redis.call("HSET", KEYS[3], ARGV[2], ARGV[1]) end
return 0
`)

// KEYS: rec. ARGV: field/value pairs.
var mergeScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then return 0 end
for i = 1, #ARGV, 2 do redis.call("HSET", KEYS[1], ARGV[i], ARGV[i+1]) end
return 1
`)

// KEYS: rec. ARGV: field, old, new.
var swapScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then return -1 end
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if cur == false then cur = "" end
if cur ~= ARGV[2] then return 0 end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
return 1
`)

// KEYS: rec, rows, idx. ARGV: row.
var deleteScript = goredis.NewScript(`
local canonical = redis.call("HGET", KEYS[1], "_canonical")
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if canonical and canonical ~= "" then
  local folded = ARGV[2]
  if redis.call("HGET", KEYS[3], folded) == ARGV[1] then redis.call("HDEL", KEYS[3], folded) end
end
return 1
`)

// RedisStore keeps each record in a Redis hash. Every mutation is a Lua
// script, so each call is atomic on the server.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
}

// OpenRedis connects and pings.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logging.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Report store connected to Redis")
	return &RedisStore{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) recKey(partition, row string) string {
	return s.prefix + "rec:" + partition + ":" + base64.RawURLEncoding.EncodeToString([]byte(row))
}

func (s *RedisStore) rowsKey(partition string) string { return s.prefix + "rows:" + partition }
func (s *RedisStore) idxKey(partition string) string  { return s.prefix + "idx:" + partition }

func (s *RedisStore) Get(ctx context.Context, partition, row string) (rec *Record, err error) {
	defer observe(backendRedis, opGet, time.Now(), &err)

	if err := checkKey(partition, row); err != nil {
		return nil, err
	}
	return s.load(ctx, partition, row)
}

func (s *RedisStore) load(ctx context.Context, partition, row string) (*Record, error) {
	h, err := s.rdb.HGetAll(ctx, s.recKey(partition, row)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return decodeHash(partition, h), nil
}

func decodeHash(partition string, h map[string]string) *Record {
	rec := &Record{
		Partition:    partition,
		RowID:        h[redisRowField],
		CanonicalKey: h[redisCanonicalField],
		Fields:       make(map[string]string, len(h)),
	}
	for k, v := range h {
		if name, ok := strings.CutPrefix(k, redisFieldPrefix); ok {
			rec.Fields[name] = v
		}
	}
	return rec
}

func fieldArgs(args []any, fields map[string]string) []any {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		args = append(args, redisFieldPrefix+k, fields[k])
	}
	return args
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, rec *Record) (err error) {
	defer observe(backendRedis, opCreate, time.Now(), &err)

	if err := checkKey(rec.Partition, rec.RowID); err != nil {
		return err
	}
	keys := []string{s.recKey(rec.Partition, rec.RowID), s.rowsKey(rec.Partition), s.idxKey(rec.Partition)}
	args := fieldArgs([]any{rec.RowID, deck.Fold(rec.CanonicalKey), rec.CanonicalKey}, rec.Fields)

	res, err := createScript.Run(ctx, s.rdb, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("redis create: %w", err)
	}
	if res == 1 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) MergeUpdate(ctx context.Context, partition, row string, delta map[string]string) (err error) {
	defer observe(backendRedis, opMerge, time.Now(), &err)

	if err := checkKey(partition, row); err != nil {
		return err
	}
	if len(delta) == 0 {
		_, err := s.Get(ctx, partition, row)
		return err
	}
	res, err := mergeScript.Run(ctx, s.rdb, []string{s.recKey(partition, row)}, fieldArgs(nil, delta)...).Int()
	if err != nil {
		return fmt.Errorf("redis merge: %w", err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, partition, row, field, oldValue, newValue string) (swapped bool, err error) {
	defer observe(backendRedis, opSwap, time.Now(), &err)

	if err := checkKey(partition, row, field); err != nil {
		return false, err
	}
	res, err := swapScript.Run(ctx, s.rdb, []string{s.recKey(partition, row)}, redisFieldPrefix+field, oldValue, newValue).Int()
	if err != nil {
		return false, fmt.Errorf("redis swap: %w", err)
	}
	if res < 0 {
		return false, ErrNotFound
	}
	return res == 1, nil
}

func (s *RedisStore) LookupCanonical(ctx context.Context, partition, foldedKey string) (*Record, error) {
	row, err := s.rdb.HGet(ctx, s.idxKey(partition), foldedKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis index lookup: %w", err)
	}
	return s.load(ctx, partition, row)
}

func (s *RedisStore) Scan(ctx context.Context, partition string, fn func(*Record) bool) (err error) {
	defer observe(backendRedis, opScan, time.Now(), &err)

	var cursor uint64
	var rows []string
	for {
		batch, next, err := s.rdb.SScan(ctx, s.rowsKey(partition), cursor, "", 100).Result()
		if err != nil {
			return fmt.Errorf("redis sscan: %w", err)
		}
		rows = append(rows, batch...)
		if cursor = next; cursor == 0 {
			break
		}
	}
	sort.Strings(rows)

	for _, row := range rows {
		rec, err := s.load(ctx, partition, row)
		if errors.Is(err, ErrNotFound) {
			// Deleted since the SSCAN.
			continue
		}
		if err != nil {
			return err
		}
		if !fn(rec) {
			return nil
		}
	}
	return nil
}

func (s *RedisStore) DeleteBatch(ctx context.Context, partition string, rows []string) (deleted int, err error) {
	defer observe(backendRedis, opDelete, time.Now(), &err)

	var errs []error
	for _, row := range rows {
		if kerr := checkKey(partition, row); kerr != nil {
			errs = append(errs, &RowError{Row: row, Err: kerr})
			continue
		}
		canonical, herr := s.rdb.HGet(ctx, s.recKey(partition, row), redisCanonicalField).Result()
		if herr != nil && !errors.Is(herr, goredis.Nil) {
			errs = append(errs, &RowError{Row: row, Err: herr})
			continue
		}
		keys := []string{s.recKey(partition, row), s.rowsKey(partition), s.idxKey(partition)}
		if rerr := deleteScript.Run(ctx, s.rdb, keys, row, deck.Fold(canonical)).Err(); rerr != nil {
			errs = append(errs, &RowError{Row: row, Err: rerr})
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
