package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loanKit/internal/model"
)

func TestJsonlStorageAppendsEventsAndIntents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")
	s := NewJsonlStorage(path)
	ctx := context.Background()

	if err := s.PutEventBatch(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch should not create the file")
	}

	err := s.PutEventBatch(ctx, []model.EventRecord{
		{EventName: "Lent", BlockNumber: 1, Args: map[string]interface{}{"_tokens": "5"}},
		{EventName: "Paid", BlockNumber: 2},
	})
	if err != nil {
		t.Fatalf("put events: %v", err)
	}
	rec := model.IntentRecord{ID: "0x01", Method: "pay", SubmittedAt: time.Unix(0, 0).UTC()}
	if err := s.SaveIntent(ctx, rec); err != nil {
		t.Fatalf("save intent: %v", err)
	}
	rec.Outcome = "terminal"
	if err := s.UpdateIntentOutcome(ctx, rec); err != nil {
		t.Fatalf("update intent: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0]["event_name"] != "Lent" || lines[1]["event_name"] != "Paid" {
		t.Fatalf("events out of order: %v", lines[:2])
	}
	if lines[3]["id"] != "0x01" || lines[3]["outcome"] != "terminal" {
		t.Fatalf("unexpected intent line: %v", lines[3])
	}
}
