package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoStats is returned by a Store that holds no statistics yet.
var ErrNoStats = errors.New("no stored feature statistics")

// Store persists the serialized statistics blob.
type Store interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// SaveTo serializes the cache and writes it to store.
func (n *Normalizer) SaveTo(ctx context.Context, store Store) error {
	var buf bytes.Buffer
	if err := n.Save(&buf); err != nil {
		return err
	}
	return store.Save(ctx, buf.Bytes())
}

// LoadFrom replaces the cache with the statistics held by store.
func (n *Normalizer) LoadFrom(ctx context.Context, store Store) error {
	data, err := store.Load(ctx)
	if err != nil {
		return err
	}
	return n.Load(bytes.NewReader(data))
}

// FileStore keeps statistics in a JSON file.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes data to a temporary file next to Path and renames it into
// place, creating parent directories as needed.
func (s *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stats directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write stats file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write stats file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("write stats file: %w", err)
	}
	return nil
}

// Load reads the file. A missing file yields ErrNoStats.
func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoStats, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("read stats file: %w", err)
	}
	return data, nil
}
