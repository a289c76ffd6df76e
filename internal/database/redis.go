package database

import (
	"context"
	"log"

	"github.com/bvabank/backend/internal/config"
	"github.com/go-redis/redis/v8"
)

// InitRedis initializes Redis client with config. It returns nil when Redis is unreachable;
// callers then run without token revocation and login throttling.
func InitRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection failed, continuing without Redis: %v", err)
		rdb.Close()
		return nil
	}

	log.Println("Redis connection established")
	return rdb
}
