package ximilar

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/ximilar-client/pkg/cache"
	"github.com/Sternrassler/ximilar-client/pkg/config"
)

// FromEnv creates an App from a loaded configuration. When cfg.Workspace is
// set the returned app works with that workspace, looked up by name. When
// cfg.RedisURL is set the cache lives in Redis and Close releases the
// connection.
func FromEnv(ctx context.Context, cfg config.Config) (*App, error) {
	if cfg.Token == "" && cfg.JWT == "" {
		return nil, config.ErrNoCredentials
	}

	opts := Options{
		Token:     cfg.Token,
		JWT:       cfg.JWT,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		ProxyURL:  cfg.ProxyURL,
		Debug:     cfg.Debug,
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		opts.Cache = cache.NewRedisStore(redisClient)
	}

	app, err := New(opts)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, err
	}
	if redisClient != nil {
		app.closers = append(app.closers, redisClient)
	}

	if cfg.Workspace == "" {
		return app, nil
	}

	scoped, err := app.WorkspaceByName(ctx, cfg.Workspace)
	if err != nil {
		app.Close()
		return nil, err
	}
	scoped.closers = app.closers
	return scoped, nil
}
