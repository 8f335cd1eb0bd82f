package chatlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileTimeLayout = "15:04:05.000"

// FileSink appends entries to one text file per room under dir.
type FileSink struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &FileSink{dir: dir, files: make(map[string]*os.File)}, nil
}

// Path returns the file entries of room are appended to.
func (s *FileSink) Path(room string) string {
	return filepath.Join(s.dir, fileStem(room)+".txt")
}

func (s *FileSink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(e.Room)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "[%s] %s\n", e.At.Local().Format(fileTimeLayout), e.Text); err != nil {
		return fmt.Errorf("write %s: %w", f.Name(), err)
	}
	return w.Flush()
}

func (s *FileSink) open(room string) (*os.File, error) {
	if f, ok := s.files[room]; ok {
		return f, nil
	}
	f, err := os.OpenFile(s.Path(room), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open room log: %w", err)
	}
	s.files[room] = f
	return f, nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for room, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.files, room)
	}
	return errors.Join(errs...)
}
