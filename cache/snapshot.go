// Package cache keeps short-lived copies of the post snapshot and the
// influencer roster in Redis so concurrent feed requests share one load.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"masterboxer.com/vibe-feed/models"
)

const (
	SnapshotKey = "vibes:feed:snapshot"
	RosterKey   = "vibes:feed:roster"

	defaultDialTimeout = 5 * time.Second
	defaultLoadTimeout = 30 * time.Second
)

// genKey counts invalidations of key. A load only publishes its result when
// the count is unchanged from when it started.
func genKey(key string) string {
	return key + ":gen"
}

// Hooks observe cache traffic per key.
type Hooks struct {
	OnHit   func(key string)
	OnMiss  func(key string)
	OnError func(key string)
}

var errStale = errors.New("cache invalidated during load")

type Cache struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
	hooks  Hooks
	sf     singleflight.Group
}

// NewClient connects to a single Redis node. An empty addr disables caching.
func NewClient(ctx context.Context, addr, password string) (goredis.UniversalClient, error) {
	if addr == "" {
		return nil, nil
	}
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        []string{addr},
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultDialTimeout,
		WriteTimeout: defaultDialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New wraps client. A nil client makes every read go straight to the loader.
func New(client goredis.UniversalClient, ttl time.Duration, logger *logrus.Logger, hooks Hooks) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cache{client: client, ttl: ttl, logger: logger, hooks: hooks}
}

// Posts returns the cached snapshot or loads, stores and returns a fresh one.
func (c *Cache) Posts(ctx context.Context, load func(context.Context) ([]models.Post, error)) ([]models.Post, error) {
	return fetch(ctx, c, SnapshotKey, load)
}

// Roster returns the cached influencer roster.
func (c *Cache) Roster(ctx context.Context, load func(context.Context) ([]models.UserSummary, error)) ([]models.UserSummary, error) {
	return fetch(ctx, c, RosterKey, load)
}

// Invalidate drops the snapshot after a write so the next feed sees it.
// Loads already in flight are not allowed to write their result back.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	if len(keys) == 0 {
		keys = []string{SnapshotKey}
	}
	for _, key := range keys {
		c.sf.Forget(key)
	}
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, genKey(key))
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate %v: %w", keys, err)
	}
	return nil
}

func fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if c.client == nil || c.ttl <= 0 {
		return load(ctx)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			c.hit(key)
			return v, nil
		}
		c.logger.WithField("key", key).Warn("Discarding undecodable cache entry")
	case errors.Is(err, goredis.Nil):
	default:
		c.fail(key)
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed, loading from store")
	}
	c.miss(key)

	res, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Shared by every waiter, so one caller going away must not cancel it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultLoadTimeout)
		defer cancel()

		gen, gerr := c.client.Get(loadCtx, genKey(key)).Int64()
		if gerr != nil && !errors.Is(gerr, goredis.Nil) {
			c.fail(key)
			c.logger.WithError(gerr).WithField("key", key).Warn("Cache generation read failed")
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if gerr == nil || errors.Is(gerr, goredis.Nil) {
			c.store(loadCtx, key, gen, v)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// store writes v under key unless key was invalidated after gen was read.
func (c *Cache) store(ctx context.Context, key string, gen int64, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	err = c.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, genKey(key)).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if current != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, genKey(key))
	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, goredis.TxFailedErr):
		c.logger.WithField("key", key).Debug("Skipping cache write for invalidated load")
	default:
		c.fail(key)
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (c *Cache) hit(key string) {
	if c.hooks.OnHit != nil {
		c.hooks.OnHit(key)
	}
}

func (c *Cache) miss(key string) {
	if c.hooks.OnMiss != nil {
		c.hooks.OnMiss(key)
	}
}

func (c *Cache) fail(key string) {
	if c.hooks.OnError != nil {
		c.hooks.OnError(key)
	}
}
