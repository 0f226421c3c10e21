package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/alnah/go-msgenhance/internal/yamlutil"
)

// DefaultRedisKey is the hash holding plugin settings.
const DefaultRedisKey = "msgenhance:settings"

// StaticSource serves a fixed settings object.
type StaticSource map[string]any

// Fetch returns a copy of the map.
func (s StaticSource) Fetch(ctx context.Context) (map[string]any, error) {
	return maps.Clone(map[string]any(s)), nil
}

// FileSource reads settings from a YAML file on every fetch.
type FileSource struct {
	Path string
}

// Fetch reads and parses the file.
func (f FileSource) Fetch(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path) // #nosec G304 -- settings path is user-provided
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettings, err)
	}
	defer file.Close()

	m, err := yamlutil.ReadMap(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSettings, f.Path, err)
	}
	return m, nil
}

// RedisSource reads settings from a Redis hash.
type RedisSource struct {
	client redis.UniversalClient
	key    string
}

// NewRedisSource creates a RedisSource reading hash key. An empty key
// means DefaultRedisKey.
func NewRedisSource(client redis.UniversalClient, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// Fetch reads every field of the hash. Hash values are strings; those that
// parse as booleans are returned as booleans.
func (r *RedisSource) Fetch(ctx context.Context) (map[string]any, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: redis %s: %v", ErrSettings, r.key, err)
	}

	// Hash fields are strings; only the exact literals become booleans, so
	// "0" or "FALSE" stay strings and count as enabled.
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		switch v {
		case "true":
			m[k] = true
		case "false":
			m[k] = false
		default:
			m[k] = v
		}
	}
	return m, nil
}

// Compile-time interface checks.
var (
	_ Source = StaticSource(nil)
	_ Source = FileSource{}
	_ Source = (*RedisSource)(nil)
)
