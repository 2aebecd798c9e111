package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "robotbridge:commands"

// Redis keeps the newest records in a capped list. A nil *Redis is a no-op.
type Redis struct {
	client *redis.Client
	key    string
	size   int64
}

var _ BatchJournal = (*Redis)(nil)

// NewRedis connects to addr, which is either host:port or a redis:// URL.
func NewRedis(addr, password string, size int) (*Redis, error) {
	opts := &redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		if password != "" {
			parsed.Password = password
		}
		parsed.DialTimeout, parsed.ReadTimeout, parsed.WriteTimeout = opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout
		opts = parsed
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if size <= 0 {
		size = DefaultSize
	}
	return &Redis{client: rdb, key: DefaultRedisKey, size: int64(size)}, nil
}

// WithKey returns a copy writing to a different list, used to isolate tests.
func (r *Redis) WithKey(key string) *Redis {
	clone := *r
	clone.key = key
	return &clone
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	return r.SaveBatch(ctx, []Record{rec})
}

func (r *Redis) SaveBatch(ctx context.Context, batch []Record) error {
	if r == nil || r.client == nil || len(batch) == 0 {
		return nil
	}
	values := make([]any, 0, len(batch))
	for _, rec := range batch {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		values = append(values, b)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, values...)
	pipe.LTrim(ctx, r.key, 0, r.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis journal write: %w", err)
	}
	return nil
}

func (r *Redis) Recent(ctx context.Context, n int) ([]Record, error) {
	if r == nil || r.client == nil {
		return []Record{}, nil
	}
	if n <= 0 || int64(n) > r.size {
		n = int(r.size)
	}
	raw, err := r.client.LRange(ctx, r.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis journal read: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, s := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Clear removes the list.
func (r *Redis) Clear(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
