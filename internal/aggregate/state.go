package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the report's resume point: the newest event timestamp
// whose window has been fully written.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps report progress in a local JSON file. The window size
// is recorded so a file cannot resume a report with a different window.
type FileStateStore struct {
	Path          string
	WindowSeconds uint64
}

type fileState struct {
	WindowSeconds uint64    `json:"window_seconds"`
	ResumeTs      uint64    `json:"resume_ts"`
	SavedAt       time.Time `json:"saved_at"`
}

func (s *FileStateStore) Load(context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read report state: %w", err)
	}

	var st fileState
	if err := json.Unmarshal(raw, &st); err != nil {
		return 0, false, fmt.Errorf("decode report state %s: %w", s.Path, err)
	}
	if s.WindowSeconds != 0 && st.WindowSeconds != 0 && st.WindowSeconds != s.WindowSeconds {
		return 0, false, fmt.Errorf("report state %s was written for %ds windows, not %ds", s.Path, st.WindowSeconds, s.WindowSeconds)
	}
	return st.ResumeTs, true, nil
}

func (s *FileStateStore) Save(_ context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report state dir: %w", err)
		}
	}

	raw, err := json.Marshal(fileState{
		WindowSeconds: s.WindowSeconds,
		ResumeTs:      ts,
		SavedAt:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode report state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write report state: %w", err)
	}
	return os.Rename(tmp, s.Path)
}
