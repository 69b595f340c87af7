package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotExist is returned by Backend.Load when no document was ever saved under the key.
var ErrNotExist = errors.New("storage: document does not exist")

// Backend persists whole documents by key. Save always replaces the previous body.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// FileBackend keeps one <key>.json file per document in dir.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileBackend) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so readers never observe a half-written document.
func (f *FileBackend) Save(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *FileBackend) Close() error {
	return nil
}
