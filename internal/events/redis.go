package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/recoagua/backend/internal/logger"
)

type redisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher connects to addr and verifies it with a PING.
func NewRedisPublisher(log *logger.Logger, addr, channel string) (Publisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel = strings.TrimSpace(channel); channel == "" {
		channel = "gamification"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisPublisher{
		log:     log.With("service", "RedisEventPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, evt Event) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *redisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
