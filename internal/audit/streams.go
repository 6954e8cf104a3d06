package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iago/factory-ops-back/internal/domain"
)

type StreamsConfig struct {
	Addr       string
	Password   string
	DB         int
	Stream     string
	MaxEntries int64
}

// RedisStreamLog keeps the audit trail in a capped Redis stream.
type RedisStreamLog struct {
	client     *redis.Client
	stream     string
	maxEntries int64
}

func NewRedisStreamLog(ctx context.Context, cfg StreamsConfig) (*RedisStreamLog, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "factory_audit"
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStreamLog{
		client:     client,
		stream:     cfg.Stream,
		maxEntries: cfg.MaxEntries,
	}, nil
}

func (l *RedisStreamLog) Close() error {
	return l.client.Close()
}

func (l *RedisStreamLog) Append(ctx context.Context, event domain.AuditEvent) error {
	event = stamp(event, time.Now())
	_, err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		MaxLen: l.maxEntries,
		Approx: true,
		Values: map[string]any{
			"id":     event.ID,
			"time":   event.Time.Format(time.RFC3339Nano),
			"module": string(event.Module),
			"action": string(event.Action),
			"target": event.Target,
			"detail": event.Detail,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (l *RedisStreamLog) Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = int(l.maxEntries)
	}
	messages, err := l.client.XRevRangeN(ctx, l.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit stream: %w", err)
	}

	items := make([]domain.AuditEvent, 0, len(messages))
	for _, message := range messages {
		event, parseErr := parseStreamEvent(message)
		if parseErr != nil {
			// malformed entries are skipped
			continue
		}
		items = append(items, event)
	}
	return items, nil
}

func parseStreamEvent(item redis.XMessage) (domain.AuditEvent, error) {
	getString := func(key string) string {
		switch casted := item.Values[key].(type) {
		case string:
			return casted
		case []byte:
			return string(casted)
		case nil:
			return ""
		default:
			return fmt.Sprintf("%v", casted)
		}
	}

	recordedAt, err := time.Parse(time.RFC3339Nano, getString("time"))
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("invalid time: %w", err)
	}
	id := getString("id")
	if id == "" {
		id = item.ID
	}

	return domain.AuditEvent{
		ID:     id,
		Time:   recordedAt.UTC(),
		Module: domain.AuditModule(getString("module")),
		Action: domain.AuditAction(getString("action")),
		Target: getString("target"),
		Detail: getString("detail"),
	}, nil
}
