package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue implements Queue over a buffered channel
type MemoryQueue struct {
	items  chan Item
	mu     sync.RWMutex
	closed bool
	config *Config
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		items:  make(chan Item, config.BatchSize*10),
		config: config,
	}
}

// Enqueue adds an item to the queue
func (q *MemoryQueue) Enqueue(ctx context.Context, item Item) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks for the first item, then drains without blocking up to
// maxItems
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]Item, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var items []Item

	select {
	case item := <-q.items:
		items = append(items, item)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(items) < maxItems {
		select {
		case item := <-q.items:
			items = append(items, item)
		default:
			return items, nil
		}
	}

	return items, nil
}

// DequeueWithTimeout is Dequeue with a bounded wait for the first item
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]Item, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var items []Item
	deadline := time.After(timeout)

	select {
	case item := <-q.items:
		items = append(items, item)
	case <-deadline:
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(items) < maxItems {
		select {
		case item := <-q.items:
			items = append(items, item)
		default:
			return items, nil
		}
	}

	return items, nil
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.items), nil
}

// Close shuts down the queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.items)
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue in process memory
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add records a failed item
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, item Item, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, DeadLetterItem{
		ID:        generateID(),
		Item:      item,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	return nil
}

// List retrieves up to maxItems dead items
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove deletes a dead item by id
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

func generateID() string {
	return time.Now().Format("20060102150405.000000")
}
