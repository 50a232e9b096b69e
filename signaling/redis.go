package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// RedisAdapter stores each log as a Redis list (RPUSH/LRANGE) keyed by
// "meshlink:signal:{roomID|channelID}", so the log survives across
// processes and machines. Transient Redis failures trip a circuit breaker
// so a pull loop degrades to TransientSignalingFailure quickly instead of
// blocking on a dead connection, mirroring RoseWrightdev's bus.Service.
type RedisAdapter struct {
	client    *redis.Client
	cb        *gobreaker.CircuitBreaker
	rtcConfig RTCConfig
	keyPrefix string
}

var _ Adapter = (*RedisAdapter)(nil)

// RedisAdapterOptions configures NewRedisAdapter.
type RedisAdapterOptions struct {
	Addr      string
	Password  string
	DB        int
	RTCConfig RTCConfig
	// KeyPrefix namespaces all Redis keys this adapter touches. Defaults to
	// "meshlink:signal".
	KeyPrefix string
}

// NewRedisAdapter connects to Redis and verifies connectivity with PING.
func NewRedisAdapter(opts RedisAdapterOptions) (*RedisAdapter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("signaling: redis adapter: %w", err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "meshlink:signal"
	}

	cfg := opts.RTCConfig
	if len(cfg.ICEServers) == 0 {
		cfg = DefaultRTCConfig()
	}

	st := gobreaker.Settings{
		Name:        "meshlink-redis-signaling",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
	}

	return &RedisAdapter{
		client:    client,
		cb:        gobreaker.NewCircuitBreaker(st),
		rtcConfig: cfg,
		keyPrefix: prefix,
	}, nil
}

func (r *RedisAdapter) listKey(key string) string {
	return r.keyPrefix + ":" + key
}

func (r *RedisAdapter) Push(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("signaling: marshal event: %w", err)
	}

	_, err = r.cb.Execute(func() (any, error) {
		return nil, r.client.RPush(ctx, r.listKey(event.Key()), data).Err()
	})
	if err != nil {
		return translateRedisErr(err)
	}
	return nil
}

func (r *RedisAdapter) Pull(ctx context.Context, query PullQuery) ([]Event, error) {
	key := query.RoomID
	if key == "" {
		key = query.ChannelID
	}

	res, err := r.cb.Execute(func() (any, error) {
		return r.client.LRange(ctx, r.listKey(key), int64(query.OffsetIndex), -1).Result()
	})
	if err != nil {
		return nil, translateRedisErr(err)
	}

	raw := res.([]string)
	events := make([]Event, 0, len(raw))
	for i, s := range raw {
		var e Event
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			// MalformedEvent: a zero Event stays in this slot so the
			// caller's cursor still moves past it; it fails Validate there,
			// and the caller logs and skips it. Pull itself returns no error.
			e.Index = query.OffsetIndex + i
			events = append(events, e)
			continue
		}
		e.Index = query.OffsetIndex + i
		events = append(events, e)
	}
	return events, nil
}

func (r *RedisAdapter) Close() error {
	return r.client.Close()
}

func (r *RedisAdapter) RTCConfiguration() RTCConfig {
	return r.rtcConfig
}

func translateRedisErr(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("%w: %w", ErrTransientSignalingFailure, err)
	}
	return fmt.Errorf("%w: %v", ErrTransientSignalingFailure, err)
}
