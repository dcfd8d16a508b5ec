package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis stream sink.
type RedisConfig struct {
	Addr        string
	Password    string
	Stream      string
	MaxLen      int64
	DialTimeout time.Duration
}

// RedisSink appends events to a capped Redis stream for downstream consumers.
type RedisSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "avatar:session-events"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 10000
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{addr},
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
		MaxRetries:  2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisSink{client: client, stream: stream, maxLen: cfg.MaxLen}, nil
}

func (s *RedisSink) Publish(ctx context.Context, e Event) error {
	values, err := streamValues(e)
	if err != nil {
		return err
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

func streamValues(e Event) (map[string]any, error) {
	detail := "{}"
	if len(e.Detail) > 0 {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return nil, fmt.Errorf("marshal event detail: %w", err)
		}
		detail = string(raw)
	}
	return map[string]any{
		"id":         e.ID,
		"type":       string(e.Type),
		"session_id": e.SessionID,
		"at":         e.At.Format(time.RFC3339Nano),
		"detail":     detail,
	}, nil
}
