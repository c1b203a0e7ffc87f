package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bft-labs/reportship/internal/domain"
)

// RunLogFile implements ports.RunLog as an append-only JSON lines file.
type RunLogFile struct {
	path string
	mu   sync.Mutex
}

// NewRunLogFile creates a RunLogFile writing to path.
func NewRunLogFile(path string) *RunLogFile {
	return &RunLogFile{path: path}
}

// Append writes record as one line. The file is opened in append mode for
// each record and never rewritten.
func (l *RunLogFile) Append(ctx context.Context, record domain.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Recent returns up to n of the newest records, oldest first.
// Returns nil and no error if the log does not exist yet.
func (l *RunLogFile) Recent(ctx context.Context, n int) ([]domain.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []domain.RunRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec domain.RunRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("run log %s line %d: %w", l.path, line, err)
		}
		records = append(records, rec)
		if n > 0 && len(records) > n {
			records = records[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Path returns the full path to the run log.
func (l *RunLogFile) Path() string {
	return l.path
}
