package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	pkgredis "github.com/akeren/waitlist-api/pkg/redis"
	"github.com/caarlos0/env/v11"
	"github.com/go-redis/redis/v8"
)

// Cache is the string key/value store used for waitlist stats and the
// distributed rate limiter.
type Cache interface {
	// Get returns ("", nil) when a key is not found.
	Get(ctx context.Context, key string) (string, error)
	// Set uses ttl=0 for no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

type RedisClientProvider interface {
	GetClient() *redis.Client
}

type CacheConfig struct {
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

var ErrCacheNotConfigured = errors.New("cache host is not configured")

func NewCacheConfig() (*CacheConfig, error) {
	cfg := &CacheConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse cache config: %w", err)
	}

	cfg.Host = sanitizeEnv(cfg.Host)
	cfg.Password = sanitizeEnv(cfg.Password)

	return cfg, nil
}

func (cc *CacheConfig) IsConfigured() bool {
	return cc != nil && cc.Host != ""
}

func (cc *CacheConfig) NewCache(logger *log.Logger) (Cache, error) {
	if !cc.IsConfigured() {
		return nil, ErrCacheNotConfigured
	}

	cache, err := pkgredis.NewRedisCache(&pkgredis.Config{
		Host:     cc.Host,
		Port:     cc.Port,
		Password: cc.Password,
		DB:       cc.DB,
	})
	if err != nil {
		logger.Error("Failed to connect to Redis", "addr", cc.Host+":"+cc.Port, "error", err)
		return nil, err
	}

	logger.Info("Redis connected", "host", cc.Host, "db", cc.DB)
	return cache, nil
}

// NewCacheOrNil never fails: stats go uncached and rate limits stay
// in-process when Redis is absent or unreachable.
func (cc *CacheConfig) NewCacheOrNil(logger *log.Logger) Cache {
	if !cc.IsConfigured() {
		logger.Info("Redis is not configured; stats caching disabled and rate limits are per-process")
		return nil
	}

	cache, err := cc.NewCache(logger)
	if err != nil {
		return nil
	}

	return cache
}

func GetRedisClient(cache Cache) *redis.Client {
	if cache == nil {
		return nil
	}

	if provider, ok := cache.(RedisClientProvider); ok {
		return provider.GetClient()
	}

	return nil
}

func CloseCache(cache Cache, logger *log.Logger) {
	if cache == nil {
		return
	}

	if err := cache.Close(); err != nil {
		logger.Error("Failed to close Redis connection", "error", err)
		return
	}

	logger.Info("Redis connection closed")
}
