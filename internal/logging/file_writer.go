package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileWriter appends audit batches to a local JSONL file. The default
// sink for single-node deployments.
type FileWriter struct {
	path string
	mu   sync.Mutex
}

// NewFileWriter creates a file writer appending to path
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// WriteBatch appends records as JSON Lines
func (w *FileWriter) WriteBatch(ctx context.Context, records []*AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to encode audit record: %w", err)
		}
	}

	return nil
}
