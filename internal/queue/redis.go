package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue over a Redis list. Items are JSON on the
// wire and come back as-is.
type RedisQueue struct {
	client *redis.Client
	config *Config
	qKey   string
}

// NewRedisQueue creates a new Redis-backed queue
func NewRedisQueue(config *Config) (*RedisQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.RedisPoolSize,
		MinIdleConns: config.RedisMinIdleConns,
		DialTimeout:  config.RedisDialTimeout,
		ReadTimeout:  config.RedisReadTimeout,
		WriteTimeout: config.RedisWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{
		client: client,
		config: config,
		qKey:   fmt.Sprintf("queue:%s", config.QueueName),
	}, nil
}

// Enqueue adds an item to the queue. The item is already JSON, so it
// goes on the wire as-is.
func (q *RedisQueue) Enqueue(ctx context.Context, item Item) error {
	if err := q.client.RPush(ctx, q.qKey, []byte(item)).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}

	return nil
}

// Dequeue blocks for the first item, then drains without blocking up to
// maxItems
func (q *RedisQueue) Dequeue(ctx context.Context, maxItems int) ([]Item, error) {
	result, err := q.client.BLPop(ctx, 0, q.qKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] is the value
	items := []Item{Item(result[1])}
	return q.drain(ctx, items, maxItems), nil
}

// DequeueWithTimeout is Dequeue with a bounded wait for the first item
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]Item, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if err == redis.Nil {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	items := []Item{Item(result[1])}
	return q.drain(ctx, items, maxItems), nil
}

func (q *RedisQueue) drain(ctx context.Context, items []Item, maxItems int) []Item {
	for len(items) < maxItems {
		result, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			return items
		}
		items = append(items, Item(result))
	}
	return items
}

// Length returns the current queue length
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close shuts down the queue
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// RedisDeadLetterQueue implements DeadLetterQueue over a Redis hash
type RedisDeadLetterQueue struct {
	client *redis.Client
	dlKey  string
}

// NewRedisDeadLetterQueue creates a new Redis-backed dead letter queue
func NewRedisDeadLetterQueue(config *Config) (*RedisDeadLetterQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.RedisPoolSize,
		MinIdleConns: config.RedisMinIdleConns,
		DialTimeout:  config.RedisDialTimeout,
		ReadTimeout:  config.RedisReadTimeout,
		WriteTimeout: config.RedisWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDeadLetterQueue{
		client: client,
		dlKey:  fmt.Sprintf("dlq:%s", config.QueueName),
	}, nil
}

// Add records a failed item
func (q *RedisDeadLetterQueue) Add(ctx context.Context, item Item, err error) error {
	dlItem := DeadLetterItem{
		ID:        generateID(),
		Item:      item,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}

	data, marshalErr := json.Marshal(dlItem)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", marshalErr)
	}

	if err := q.client.HSet(ctx, q.dlKey, dlItem.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}

	return nil
}

// List retrieves up to maxItems dead items
func (q *RedisDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	results, err := q.client.HGetAll(ctx, q.dlKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	items := make([]DeadLetterItem, 0, len(results))
	for _, data := range results {
		var dlItem DeadLetterItem
		if err := json.Unmarshal([]byte(data), &dlItem); err != nil {
			continue
		}
		items = append(items, dlItem)

		if maxItems > 0 && len(items) >= maxItems {
			break
		}
	}

	return items, nil
}

// Remove deletes a dead item by id
func (q *RedisDeadLetterQueue) Remove(ctx context.Context, id string) error {
	if err := q.client.HDel(ctx, q.dlKey, id).Err(); err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	return nil
}

// Close shuts down the dead letter queue
func (q *RedisDeadLetterQueue) Close() error {
	return q.client.Close()
}
