package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus distributes changes over a Redis pub/sub channel so every API
// replica can push to the clients it holds.
type RedisBus struct {
	logger  zerolog.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to addr and verifies the connection.
func NewRedisBus(ctx context.Context, addr, channel string, logger zerolog.Logger) (*RedisBus, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBusWithClient(rdb, channel, logger), nil
}

// NewRedisBusWithClient wraps an existing client.
func NewRedisBusWithClient(rdb *goredis.Client, channel string, logger zerolog.Logger) *RedisBus {
	if strings.TrimSpace(channel) == "" {
		channel = "ecotrack:footprint"
	}
	return &RedisBus{
		logger:  logger.With().Str("component", "redis_bus").Logger(),
		rdb:     rdb,
		channel: channel,
	}
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, change Change) error {
	raw, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder implements Bus. The subscription is confirmed before it
// returns; messages are then delivered on a background goroutine until ctx ends.
func (b *RedisBus) StartForwarder(ctx context.Context, onChange func(Change)) error {
	if onChange == nil {
		return errors.New("onChange callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(m.Payload), &change); err != nil || change.OwnerID == "" {
					b.logger.Warn().Err(err).Msg("bad footprint change payload")
					continue
				}
				onChange(change)
			}
		}
	}()
	return nil
}

// Close implements Bus.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
