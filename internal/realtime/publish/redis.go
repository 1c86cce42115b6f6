// Package publish forwards accepted quotes to external brokers.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/quoteboard/internal/realtime/feed"
	"github.com/wonny/quoteboard/pkg/logger"
	"github.com/wonny/quoteboard/pkg/redis"
)

// Broadcaster is the pub/sub half of *redis.Client
type Broadcaster interface {
	Publish(ctx context.Context, channel string, value interface{}) error
}

// Store is the key/value half of *redis.Cache
type Store interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RedisPublisher publishes every update on a channel and keeps the latest
// stock state and ranking in keys that expire after ttl.
type RedisPublisher struct {
	pub     Broadcaster
	store   Store
	channel string
	ttl     time.Duration
	logger  *logger.Logger
}

// NewRedisPublisher creates a publisher writing to channel
func NewRedisPublisher(pub Broadcaster, store Store, channel string, ttl time.Duration, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		pub:     pub,
		store:   store,
		channel: channel,
		ttl:     ttl,
		logger:  log.WithComponent("redis-publisher"),
	}
}

// Name implements feed.Publisher
func (p *RedisPublisher) Name() string {
	return "redis"
}

// Publish implements feed.Publisher
func (p *RedisPublisher) Publish(ctx context.Context, u feed.Update) error {
	if err := p.pub.Publish(ctx, p.channel, u); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}

	if err := p.store.Set(ctx, redis.StockKey(u.Stock.Symbol), u.Stock, p.ttl); err != nil {
		return fmt.Errorf("redis set stock %s: %w", u.Stock.Symbol, err)
	}

	if err := p.store.Set(ctx, redis.RankingKey(string(u.SortMode)), u.Ranking, p.ttl); err != nil {
		return fmt.Errorf("redis set ranking %s: %w", u.SortMode, err)
	}

	p.logger.WithField("symbol", u.Stock.Symbol).Debug("Published to redis")
	return nil
}
