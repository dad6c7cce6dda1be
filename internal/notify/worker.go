package notify

import (
	"context"
	"fmt"
	"time"

	"modelbroker/internal/queue"
	"modelbroker/internal/utils"
)

// Worker drains the notification queue and delivers through a Sender.
// Failed deliveries retry with exponential backoff and land in the dead
// letter queue when retries are exhausted.
type Worker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	sender      Sender
	config      *queue.Config
	floor       float64
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWorker creates a new notification worker
func NewWorker(q queue.Queue, dlq queue.DeadLetterQueue, sender Sender, config *queue.Config, floor float64) *Worker {
	if config == nil {
		config = queue.DefaultConfig("notifications")
	}

	return &Worker{
		queue:       q,
		dlq:         dlq,
		sender:      sender,
		config:      config,
		floor:       floor,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// NotifyLowBalance enqueues a low-balance notice. Enqueue failures are
// logged and dropped; notifications never fail a request.
func (w *Worker) NotifyLowBalance(tlgID int64, balance float64) {
	w.enqueue(Notification{
		Kind:      KindLowBalance,
		TlgID:     tlgID,
		Balance:   balance,
		Floor:     w.floor,
		Timestamp: time.Now(),
	})
}

// NotifyCredit enqueues a top-up confirmation
func (w *Worker) NotifyCredit(tlgID int64, amount, balance float64) {
	w.enqueue(Notification{
		Kind:      KindCredit,
		TlgID:     tlgID,
		Amount:    amount,
		Balance:   balance,
		Timestamp: time.Now(),
	})
}

func (w *Worker) enqueue(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	item, err := queue.EncodeItem(n)
	if err != nil {
		utils.NewLogger("notify").Warn("Failed to encode notification",
			"kind", n.Kind, "tlg_id", n.TlgID, "error", err)
		return
	}

	if err := w.queue.Enqueue(ctx, item); err != nil {
		utils.NewLogger("notify").Warn("Failed to enqueue notification",
			"kind", n.Kind, "tlg_id", n.TlgID, "error", err)
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	logger := utils.NewLogger("notify-worker")

	for {
		select {
		case <-w.stopChan:
			logger.Info("Notification worker stopping")
			return
		case <-ctx.Done():
			logger.Info("Notification worker context cancelled")
			return
		default:
			w.processBatch(ctx, logger)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, logger *utils.Logger) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		logger.Error("Failed to dequeue notifications", "error", err)
		time.Sleep(1 * time.Second)
		return
	}

	for _, item := range items {
		if err := w.processItem(ctx, item, logger); err != nil {
			logger.Error("Failed to deliver notification", "error", err)
		}
	}
}

func (w *Worker) processItem(ctx context.Context, item queue.Item, logger *utils.Logger) error {
	var n Notification
	if err := item.Decode(&n); err != nil {
		logger.Error("Failed to decode notification", "error", err)
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			time.Sleep(backoff)
		}

		if err := w.sender.Send(ctx, n); err != nil {
			lastErr = err
			continue
		}

		logger.Debug("Notification delivered", "kind", n.Kind, "tlg_id", n.TlgID)
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, item, lastErr); err != nil {
			logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			logger.Warn("Notification moved to DLQ", "tlg_id", n.TlgID, "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
