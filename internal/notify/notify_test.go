package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelbroker/internal/queue"
)

func TestNotificationText(t *testing.T) {
	tests := []struct {
		name         string
		notification Notification
		want         string
	}{
		{
			name: "low balance",
			notification: Notification{
				Kind:    KindLowBalance,
				Balance: 12.50,
				Floor:   20,
			},
			want: "Your balance is 12.50 RUB, below the 20 RUB required per request. Top up to continue.",
		},
		{
			name: "credit",
			notification: Notification{
				Kind:    KindCredit,
				Amount:  500,
				Balance: 512.50,
			},
			want: "Your balance was credited 500.00 RUB. Current balance: 512.50 RUB.",
		},
		{
			name: "unknown kind",
			notification: Notification{
				Kind:    Kind("other"),
				Balance: 42,
			},
			want: "Balance update: 42.00 RUB.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.notification.Text())
		})
	}
}

type captureSender struct {
	mu       sync.Mutex
	sent     []Notification
	failures int
}

func (s *captureSender) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("telegram unavailable")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSender) delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

func workerTestConfig() *queue.Config {
	config := queue.DefaultConfig("notify-test")
	config.BatchSize = 10
	config.BatchTimeout = 20 * time.Millisecond
	config.MaxRetries = 2
	config.RetryBackoff = time.Millisecond
	return config
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorkerDeliversLowBalance(t *testing.T) {
	config := workerTestConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	sender := &captureSender{}

	worker := NewWorker(q, dlq, sender, config, 20.0)
	worker.Start(context.Background())
	defer worker.Stop()

	worker.NotifyLowBalance(777001, 12.50)

	waitFor(t, 2*time.Second, func() bool { return len(sender.delivered()) == 1 })

	got := sender.delivered()[0]
	assert.Equal(t, KindLowBalance, got.Kind)
	assert.Equal(t, int64(777001), got.TlgID)
	assert.Equal(t, 12.50, got.Balance)
	assert.Equal(t, 20.0, got.Floor)
}

func TestWorkerDeliversCredit(t *testing.T) {
	config := workerTestConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	sender := &captureSender{}

	worker := NewWorker(q, dlq, sender, config, 20.0)
	worker.Start(context.Background())
	defer worker.Stop()

	worker.NotifyCredit(777002, 500, 512.50)

	waitFor(t, 2*time.Second, func() bool { return len(sender.delivered()) == 1 })

	got := sender.delivered()[0]
	assert.Equal(t, KindCredit, got.Kind)
	assert.Equal(t, 500.0, got.Amount)
	assert.Equal(t, 512.50, got.Balance)
}

func TestWorkerRetriesThenDelivers(t *testing.T) {
	config := workerTestConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	sender := &captureSender{failures: 2}

	worker := NewWorker(q, dlq, sender, config, 20.0)
	worker.Start(context.Background())
	defer worker.Stop()

	worker.NotifyLowBalance(777003, 5)

	waitFor(t, 2*time.Second, func() bool { return len(sender.delivered()) == 1 })

	dead, err := dlq.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, dead, "a delivery that eventually succeeded must not hit the DLQ")
}

func TestWorkerExhaustedRetriesGoToDLQ(t *testing.T) {
	config := workerTestConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	sender := &captureSender{failures: 100}

	worker := NewWorker(q, dlq, sender, config, 20.0)
	worker.Start(context.Background())
	defer worker.Stop()

	worker.NotifyLowBalance(777004, 5)

	waitFor(t, 2*time.Second, func() bool {
		dead, _ := dlq.List(context.Background(), 10)
		return len(dead) == 1
	})

	assert.Empty(t, sender.delivered())
}

func TestNotificationQueueRoundtrip(t *testing.T) {
	want := Notification{Kind: KindLowBalance, TlgID: 42, Balance: 10}

	item, err := queue.EncodeItem(want)
	require.NoError(t, err)

	var got Notification
	require.NoError(t, item.Decode(&got))
	assert.Equal(t, KindLowBalance, got.Kind)
	assert.Equal(t, int64(42), got.TlgID)
	assert.Equal(t, 10.0, got.Balance)
}
