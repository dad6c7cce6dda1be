// Package queue moves out-of-band work off the request path. The broker
// uses it for owner notifications: handlers enqueue, background workers
// drain in batches.
//
// Two backends are provided. The memory queue is channel-based with no
// persistence, for standalone deployments; the Redis queue survives
// restarts and supports distributed workers. Failed batches retry with
// exponential backoff and land in a dead-letter queue when retries are
// exhausted.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Item is one queued message, encoded to JSON at enqueue time so both
// backends carry the same payload shape.
type Item []byte

// EncodeItem marshals a payload into a queue item
func EncodeItem(v any) (Item, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue item: %w", err)
	}
	return Item(data), nil
}

// Decode unmarshals the item payload into v
func (i Item) Decode(v any) error {
	return json.Unmarshal(i, v)
}

// MarshalJSON writes the payload verbatim
func (i Item) MarshalJSON() ([]byte, error) {
	return json.RawMessage(i).MarshalJSON()
}

// UnmarshalJSON captures the raw payload
func (i *Item) UnmarshalJSON(data []byte) error {
	return (*json.RawMessage)(i).UnmarshalJSON(data)
}

// Queue is a FIFO message queue
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item Item) error

	// Dequeue retrieves up to maxItems, blocking until at least one item
	// is available or the context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]Item, error)

	// DequeueWithTimeout retrieves up to maxItems, returning an empty
	// slice if nothing arrives before the timeout
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]Item, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// DeadLetterQueue collects items whose processing kept failing
type DeadLetterQueue interface {
	// Add records a failed item with its error
	Add(ctx context.Context, item Item, err error) error

	// List retrieves up to maxItems dead items
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes a dead item by id
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem is one failed item with its failure context
type DeadLetterItem struct {
	ID        string
	Item      Item
	Error     string
	Timestamp time.Time
	Retries   int
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items a worker takes per batch
	BatchSize int

	// BatchTimeout is how long a worker waits before handling a partial
	// batch
	BatchTimeout time.Duration

	// MaxRetries is the number of attempts before an item goes to the
	// dead letter queue
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend over the in-memory one
	UseRedis bool

	// RedisAddr is the Redis server address
	RedisAddr string

	// RedisPassword is the Redis password
	RedisPassword string

	// RedisDB is the Redis database number
	RedisDB int

	// RedisPoolSize limits the connection pool; zero uses the client
	// default
	RedisPoolSize int

	// RedisMinIdleConns keeps warm connections in the pool
	RedisMinIdleConns int

	// RedisDialTimeout bounds connection establishment
	RedisDialTimeout time.Duration

	// RedisReadTimeout bounds blocking reads
	RedisReadTimeout time.Duration

	// RedisWriteTimeout bounds writes
	RedisWriteTimeout time.Duration

	// QueueName namespaces the queue's keys
	QueueName string
}

// DefaultConfig returns sensible defaults for the named queue
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

// New builds the queue and dead letter queue selected by config
func New(config *Config) (Queue, DeadLetterQueue, error) {
	if config.UseRedis {
		q, err := NewRedisQueue(config)
		if err != nil {
			return nil, nil, err
		}
		dlq, err := NewRedisDeadLetterQueue(config)
		if err != nil {
			q.Close()
			return nil, nil, err
		}
		return q, dlq, nil
	}

	return NewMemoryQueue(config), NewMemoryDeadLetterQueue(), nil
}
