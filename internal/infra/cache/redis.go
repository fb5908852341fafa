package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisOffsets хранит позиции чтения внешних лент в Redis, чтобы
// повторный запуск не обрабатывал уже просмотренные сообщения.
type RedisOffsets struct {
	client *redis.Client
}

// NewRedisOffsets создаёт хранилище позиций.
func NewRedisOffsets(client *redis.Client) *RedisOffsets {
	return &RedisOffsets{client: client}
}

// GetOffset возвращает сохранённую позицию; 0, если позиции ещё нет.
func (c *RedisOffsets) GetOffset(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// SetOffset сохраняет позицию без срока жизни.
func (c *RedisOffsets) SetOffset(ctx context.Context, key string, offset int64) error {
	return c.client.Set(ctx, key, strconv.FormatInt(offset, 10), 0).Err()
}
