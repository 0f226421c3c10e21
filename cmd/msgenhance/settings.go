package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	msgenhance "github.com/alnah/go-msgenhance"
	"github.com/alnah/go-msgenhance/internal/config"
	"github.com/alnah/go-msgenhance/internal/hints"
	"github.com/alnah/go-msgenhance/internal/settings"
)

// redisPingTimeout bounds the startup reachability check.
const redisPingTimeout = 2 * time.Second

// buildSettingsSource picks the settings source by precedence: Redis, then
// the --settings file, then the config file's settings map. The returned
// close func releases the Redis client, if any.
func buildSettingsSource(ctx context.Context, f *renderFlags, cfg *config.Config, log zerolog.Logger) (msgenhance.SettingsSource, func() error) {
	var src msgenhance.SettingsSource
	closeFn := func() error { return nil }

	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("settings store unreachable, using defaults" + hints.ForRedis(cfg.Redis.Addr))
		}
		cancel()
		src = msgenhance.RedisSettings(client, cfg.Redis.Key)
		closeFn = client.Close
		log.Debug().Str("addr", cfg.Redis.Addr).Msg("settings from redis")
	case f.settings.file != "":
		src = msgenhance.FileSettings(f.settings.file)
		log.Debug().Str("path", f.settings.file).Msg("settings from file")
	default:
		src = msgenhance.StaticSettings(cfg.Settings)
	}

	if f.settings.lang != "" {
		src = withLanguage(src, f.settings.lang)
	}
	return src, closeFn
}

// withLanguage forces the language setting on every fetch.
func withLanguage(src msgenhance.SettingsSource, lang string) msgenhance.SettingsSource {
	return settings.SourceFunc(func(ctx context.Context) (map[string]any, error) {
		m, err := src.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]any{}
		}
		m[settings.KeyLanguage] = lang
		return m, nil
	})
}
