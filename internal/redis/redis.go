// Package redis manages the optional Redis connection used to back
// the session store.
//
// Graceful fallback: if Redis is unconfigured or unreachable, Connect
// reports failure and the caller keeps working with in-memory state.
package redis

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zomco/hubot-heyodo/internal/config"
)

// Connect opens a Redis connection from config. Returns nil when the
// URL is unset or the server cannot be reached.
func Connect(cfg config.RedisConfig) *redis.Client {
	if cfg.URL == "" {
		return nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Printf("[Redis] invalid URL: %v", err)
		return nil
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[Redis] connection failed: %v", err)
		client.Close()
		return nil
	}

	log.Println("[Redis] connected")
	return client
}
