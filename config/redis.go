package config

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ConnectRedis establishes connection to Redis. It returns nil when no
// address is configured or the server does not answer, in which case payout
// locks stay in process.
func ConnectRedis(cfg *Config, log *logrus.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, payout locks are process-local")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis connection failed, payout locks are process-local")
		client.Close()
		return nil
	}

	log.WithField("addr", cfg.RedisAddr).Info("connected to Redis")
	return client
}
