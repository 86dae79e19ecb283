// Package redis notifies subscribers of new forecasts over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/marweda/water-level-forecast/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// client is the subset of *goredis.Client used by the publisher.
type client interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Close() error
}

// LatestKey is the key holding the most recent forecast of a gauge.
func LatestKey(entityID string) string {
	return "hydro:forecast:" + entityID
}

// Publisher announces forecast results on a channel and keeps the latest
// result per gauge under LatestKey. It implements pipeline.Sink.
type Publisher struct {
	client  client
	channel string
	logger  *slog.Logger
}

// NewPublisher connects to the Redis server at url and verifies it responds.
func NewPublisher(ctx context.Context, url, channel string, logger *slog.Logger) (*Publisher, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	c := goredis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Publisher{client: c, channel: channel, logger: logger}, nil
}

// Name identifies the sink in metrics and logs.
func (p *Publisher) Name() string { return "redis" }

// LoadForecast stores res as the gauge's latest forecast, then publishes it.
func (p *Publisher) LoadForecast(ctx context.Context, res domain.ForecastResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("serialize forecast: %w", err)
	}
	if err := p.client.Set(ctx, LatestKey(res.EntityID), data, 0).Err(); err != nil {
		return fmt.Errorf("store latest forecast %s: %w", res.EntityID, err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return fmt.Errorf("publish forecast %s: %w", res.EntityID, err)
	}
	p.logger.Debug("forecast published", "entity_id", res.EntityID, "channel", p.channel, "receivers", receivers)
	return nil
}

// LoadSeries is a no-op; only forecasts are announced.
func (p *Publisher) LoadSeries(context.Context, domain.TimeSeries) error { return nil }

func (p *Publisher) Close() error {
	return p.client.Close()
}
