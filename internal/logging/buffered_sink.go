package logging

import (
	"context"
	"sync"
	"time"

	"modelbroker/internal/utils"
)

// BatchWriter flushes a batch of audit records to durable storage
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*AuditRecord) error
}

// BufferedSink accumulates records in memory and flushes when the buffer
// reaches flushSize or flushInterval elapses, whichever comes first. A
// full buffer drops the oldest record rather than blocking the request
// path; the ledger remains the source of truth.
type BufferedSink struct {
	writer        BatchWriter
	flushSize     int
	flushInterval time.Duration
	logger        *utils.Logger

	mu      sync.Mutex
	buf     []*AuditRecord
	maxBuf  int
	dropped int

	flushChan   chan struct{}
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// BufferedSinkConfig holds buffered sink configuration
type BufferedSinkConfig struct {
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
}

// NewBufferedSink creates and starts a buffered sink
func NewBufferedSink(writer BatchWriter, cfg BufferedSinkConfig) *BufferedSink {
	s := &BufferedSink{
		writer:        writer,
		flushSize:     cfg.FlushSize,
		flushInterval: cfg.FlushInterval,
		maxBuf:        cfg.BufferSize,
		logger:        utils.NewLogger("audit-sink"),
		flushChan:     make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue buffers a record for the next flush
func (s *BufferedSink) Enqueue(rec *AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) >= s.maxBuf {
		s.buf = s.buf[1:]
		s.dropped++
	}
	s.buf = append(s.buf, rec)

	if len(s.buf) >= s.flushSize {
		select {
		case s.flushChan <- struct{}{}:
		default:
		}
	}

	return nil
}

// Close flushes the remaining buffer and stops the background loop
func (s *BufferedSink) Close() error {
	close(s.stopChan)
	<-s.stoppedChan
	return nil
}

func (s *BufferedSink) run() {
	defer close(s.stoppedChan)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.flushChan:
			s.flush()
		case <-s.stopChan:
			s.flush()
			return
		}
	}
}

// flush writes buffered records. On writer failure the batch is put back
// so the next tick retries it; records are only lost to buffer overflow.
func (s *BufferedSink) flush() {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buf
	s.buf = nil
	dropped := s.dropped
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn("Audit buffer overflow, records dropped", "count", dropped)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.writer.WriteBatch(ctx, batch); err != nil {
		s.logger.Error("Failed to flush audit batch", "count", len(batch), "error", err)
		s.mu.Lock()
		s.buf = append(batch, s.buf...)
		if len(s.buf) > s.maxBuf {
			s.dropped += len(s.buf) - s.maxBuf
			s.buf = s.buf[len(s.buf)-s.maxBuf:]
		}
		s.mu.Unlock()
	}
}
