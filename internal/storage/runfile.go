package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coglab/selfconstruct/pkg/types"
)

// RunFilename builds the timestamped filename for a run file, e.g.
// "run_20260810_090000.json". Timestamps use the run's start time so the
// filename is stable across re-saves.
func RunFilename(dir string, startedAt time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("run_%s.json", startedAt.Format("20060102_150405")))
}

// SaveRunFile writes a run as indented JSON. The write goes through a
// temporary file in the same directory followed by a rename, so a crash
// mid-write never leaves a truncated run file behind.
func SaveRunFile(path string, run *types.Run) error {
	if run == nil {
		return fmt.Errorf("%w: nil run", ErrInvalidInput)
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("storage: refusing to save invalid run: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: failed to encode run: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: failed to write run file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: failed to close run file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: failed to finalize run file: %w", err)
	}
	return nil
}

// LoadRunFile reads and validates a run file. It is the sole input to
// analysis, so a file that fails validation is rejected here rather than
// surfacing as NaNs downstream.
func LoadRunFile(path string) (*types.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to read run file: %w", err)
	}

	var run types.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("storage: failed to parse run file %s: %w", path, err)
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("storage: run file %s: %w", path, err)
	}
	return &run, nil
}
