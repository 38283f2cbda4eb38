package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"loanKit/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutEventBatch appends a batch of event records as JSON lines.
func (s *JsonlStorage) PutEventBatch(_ context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	lines := make([]interface{}, 0, len(events))
	for _, ev := range events {
		lines = append(lines, ev)
	}
	return s.appendLines(lines)
}

// SaveIntent appends the submitted state of an operation.
func (s *JsonlStorage) SaveIntent(_ context.Context, rec model.IntentRecord) error {
	return s.appendLines([]interface{}{rec})
}

// UpdateIntentOutcome appends the final state of an operation. Readers
// keep the last line per id.
func (s *JsonlStorage) UpdateIntentOutcome(_ context.Context, rec model.IntentRecord) error {
	return s.appendLines([]interface{}{rec})
}

func (s *JsonlStorage) appendLines(records []interface{}) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
