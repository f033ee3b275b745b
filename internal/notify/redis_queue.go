package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultQueueKey = "venmo:notifications"

// RedisQueue хранит уведомления в списке Redis, чтобы они переживали перезапуск сервиса.
type RedisQueue struct {
	client     *redis.Client
	key        string
	popTimeout time.Duration
}

// NewRedisQueue подключается к Redis по адресу addr.
func NewRedisQueue(addr string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newRedisQueue(client), nil
}

func newRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:     client,
		key:        defaultQueueKey,
		popTimeout: time.Second,
	}
}

// Close закрывает соединение с Redis.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Push добавляет сообщение в начало списка.
func (q *RedisQueue) Push(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Pop извлекает сообщение из конца списка, ожидая его появления.
func (q *RedisQueue) Pop(ctx context.Context) (Message, error) {
	for {
		res, err := q.client.BRPop(ctx, q.popTimeout, q.key).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Message{}, ctxErr
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return Message{}, fmt.Errorf("brpop: %w", err)
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return Message{}, fmt.Errorf("unmarshal message: %w", err)
		}
		return msg, nil
	}
}
