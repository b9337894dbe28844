// Package report persists finished-session reports as an append-only
// NDJSON file, one report per line.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mukulanand/echoviva/internal/model"
)

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append writes one report line. The parent directory is created on
// first use.
func (s *Store) Append(r model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening report file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// List reads every report in file order. A missing file is an empty
// history, not an error. Malformed lines are skipped.
func (s *Store) List() ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening report file: %w", err)
	}
	defer f.Close()

	var out []model.Report
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var r model.Report
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}
	return out, nil
}
