package record

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/stepd/internal/steps"
)

// FileStore keeps the record as a JSON document. Saves write a temporary
// sibling file, fsync it and rename it over the target.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store for path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Backend() string { return "file" }

func (s *FileStore) Load(_ context.Context) (*steps.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, persistErr(err, s.Backend(), "read record file")
	}
	return UnmarshalJSON(data)
}

func (s *FileStore) Save(_ context.Context, st steps.State) error {
	data, err := MarshalJSON(st)
	if err != nil {
		return persistErr(err, s.Backend(), "encode record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return persistErr(err, s.Backend(), "create record directory")
	}
	tmp, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return persistErr(err, s.Backend(), "create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return persistErr(err, s.Backend(), "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return persistErr(err, s.Backend(), "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return persistErr(err, s.Backend(), "close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return persistErr(err, s.Backend(), "commit record file")
	}
	if err := syncDir(dir); err != nil {
		return persistErr(err, s.Backend(), "sync record directory")
	}
	return nil
}

// syncDir flushes the directory entry so a committed rename survives a crash.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}

func (s *FileStore) Close() error { return nil }
