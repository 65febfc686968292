// Package cache хранит JSON-снимки данных групповых комнат в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chat_backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Cache - кэш с явными операциями чтения, записи и точечной инвалидации
type Cache interface {
	// Get читает значение в dest; false означает промах
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// Delete удаляет только перечисленные ключи
	Delete(ctx context.Context, keys ...string) error
}

type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    logger.Logger
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) Cache {
	return &redisCache{client: client, prefix: prefix, ttl: ttl, log: log}
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("Cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	c.log.Debug("Cache hit", "key", key)
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// Ключи кэша
func MembersKey(roomID string) string  { return "members:" + roomID }
func MessagesKey(roomID string) string { return "messages:" + roomID }
func UserRoomsKey(userID int64) string { return fmt.Sprintf("userRooms:%d", userID) }
