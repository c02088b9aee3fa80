package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a JSON-file-backed penalty store. Every Set rewrites the file
// atomically (temp file + rename), so scores survive process restarts and a
// crash mid-write never corrupts the previous state.
//
// Suitable for a single process per file; no cross-process locking is
// attempted.
type File struct {
	mu        sync.Mutex
	path      string
	penalties map[string]int64
}

// NewFile opens (or creates) a file-backed penalty store at the given path.
func NewFile(path string) (*File, error) {
	f := &File{
		path:      path,
		penalties: make(map[string]int64),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("reading penalty store file: %w", err)
	}

	if err := json.Unmarshal(data, &f.penalties); err != nil {
		return nil, fmt.Errorf("unmarshaling penalty store file: %w", err)
	}
	return f, nil
}

func (f *File) Get(_ context.Context, host string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.penalties[host], nil
}

func (f *File) Set(_ context.Context, host string, penalty int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.penalties[host] = penalty
	return f.persist()
}

// All returns a copy of every stored penalty, keyed by host.
func (f *File) All() map[string]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := make(map[string]int64, len(f.penalties))
	for host, penalty := range f.penalties {
		all[host] = penalty
	}
	return all
}

// persist writes the full penalty map to a temp file and renames it over the
// store path. Callers must hold the mutex.
func (f *File) persist() error {
	data, err := json.MarshalIndent(f.penalties, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling penalty store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".penalties-*.json")
	if err != nil {
		return fmt.Errorf("creating temp penalty store file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp penalty store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp penalty store file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing penalty store file: %w", err)
	}
	return nil
}
