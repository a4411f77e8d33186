package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pubshark/backend/internal/models"
)

const FeedKey = "pubshark:notifications:feed"

// Feed caches the shared part of the notification feed, before per-reader
// cursors and read flags are applied.
type Feed interface {
	// Get reports a miss as (nil, false, nil).
	Get(ctx context.Context) ([]models.FeedItem, bool, error)
	Set(ctx context.Context, items []models.FeedItem) error
	Invalidate(ctx context.Context) error
}

type RedisFeed struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisFeed(rdb *redis.Client, ttl time.Duration) *RedisFeed {
	return &RedisFeed{rdb: rdb, ttl: ttl}
}

func (f *RedisFeed) Get(ctx context.Context) ([]models.FeedItem, bool, error) {
	raw, err := f.rdb.Get(ctx, FeedKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var items []models.FeedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (f *RedisFeed) Set(ctx context.Context, items []models.FeedItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return f.rdb.Set(ctx, FeedKey, raw, f.ttl).Err()
}

func (f *RedisFeed) Invalidate(ctx context.Context) error {
	return f.rdb.Del(ctx, FeedKey).Err()
}

// Nop is used when redis is disabled.
type Nop struct{}

func (Nop) Get(context.Context) ([]models.FeedItem, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, []models.FeedItem) error         { return nil }
func (Nop) Invalidate(context.Context) error                    { return nil }
