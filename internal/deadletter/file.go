package deadletter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"prodcons/internal/queue"
)

// FileSink appends one line per item to a text file. The file is created on
// the first Append, so a run that never dead-letters leaves nothing behind.
type FileSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	count  int
	closed bool
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the target file path.
func (s *FileSink) Path() string {
	return s.path
}

// Append writes item as a single line.
func (s *FileSink) Append(_ context.Context, item queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.file == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(s.file, item.String()); err != nil {
		return fmt.Errorf("deadletter: write %s: %w", s.path, err)
	}
	s.count++
	return nil
}

func (s *FileSink) open() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("deadletter: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("deadletter: open %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

// Count returns how many items this sink wrote.
func (s *FileSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Items reads the file back, one entry per line. A missing file means no items.
func (s *FileSink) Items(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		items = append(items, sc.Text())
	}
	return items, sc.Err()
}

// Close closes the file if it was opened. Further appends fail.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
