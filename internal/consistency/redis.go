package consistency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/koustreak/dbroute/internal/errs"
)

// DefaultRedisPrefix namespaces mutation markers in Redis.
const DefaultRedisPrefix = "dbroute:mut:"

// NewRedisClient parses url and pings the server before returning.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfigInvalid, "parse redis url", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "redis ping failed", err)
	}
	return client, nil
}

// RedisTracker shares mutation markers across processes. Each marker is a
// key with a PX expiry equal to the window; its presence is what matters.
type RedisTracker struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisTracker.
type RedisOption func(*RedisTracker)

// WithPrefix overrides DefaultRedisPrefix.
func WithPrefix(prefix string) RedisOption {
	return func(t *RedisTracker) { t.prefix = prefix }
}

// NewRedisTracker builds a tracker on client. The client lifecycle is
// managed by the caller.
func NewRedisTracker(client redis.Cmdable, ttl time.Duration, opts ...RedisOption) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &RedisTracker{client: client, ttl: ttl, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *RedisTracker) MarkMutation(ctx context.Context, key string) error {
	if err := t.client.Set(ctx, t.prefix+key, "1", t.ttl).Err(); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "record mutation", err)
	}
	return nil
}

func (t *RedisTracker) RecentMutation(ctx context.Context, key string) (bool, error) {
	_, ok, err := t.Expiry(ctx, key)
	return ok, err
}

// Expiry returns when key's window closes.
func (t *RedisTracker) Expiry(ctx context.Context, key string) (time.Time, bool, error) {
	ttl, err := t.client.PTTL(ctx, t.prefix+key).Result()
	if err != nil {
		return time.Time{}, false, errs.Wrap(errs.ErrKindConnectionFailed, "lookup mutation", err)
	}
	// -2 missing, -1 no expiry; markers are always written with one.
	if ttl <= 0 {
		return time.Time{}, false, nil
	}
	return time.Now().Add(ttl), true, nil
}
