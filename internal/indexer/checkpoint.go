package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint records the last exported block of one event stream. Scope
// names the stream as chain:contract:event so a file written for another
// stream is never resumed.
type Checkpoint struct {
	Scope              string `json:"scope"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	Events             uint64 `json:"events"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists a checkpoint as a JSON file, replaced atomically
// on every save.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func checkpointScope(chainID uint64, contract, event string) string {
	return fmt.Sprintf("%d:%s:%s", chainID, contract, event)
}

// Load returns the stored checkpoint. ok is false when checkpointing is
// disabled, the file does not exist, or the file belongs to another scope.
func (c *CheckpointStore) Load(scope string) (cp Checkpoint, ok bool, err error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", c.path, err)
	}
	if cp.Scope != scope {
		return cp, false, nil
	}
	return cp, true, nil
}

// Save writes the checkpoint for scope.
func (c *CheckpointStore) Save(cp Checkpoint) error {
	if !c.enabled {
		return nil
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, c.path)
}
