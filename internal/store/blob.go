package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rotisserie/eris"
)

var handlePattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func blobHandle(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FSBlobStore keeps blobs as files under a root directory, named by their
// content hash and sharded by the first two hex digits.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates the root directory if needed.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: create blob root %s", root)
	}
	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) path(handle string) (string, error) {
	if !handlePattern.MatchString(handle) {
		return "", eris.Errorf("store: malformed blob handle %q", handle)
	}
	return filepath.Join(s.root, handle[:2], handle), nil
}

func (s *FSBlobStore) Put(ctx context.Context, data []byte) (string, error) {
	handle := blobHandle(data)
	path, err := s.path(handle)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return handle, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", eris.Wrap(err, "store: create blob shard")
	}

	// Write-then-rename so a crashed write never leaves a partial blob
	// under its final name.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return "", eris.Wrap(err, "store: create blob temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", eris.Wrap(err, "store: write blob")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrap(err, "store: close blob temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrap(err, "store: finalize blob")
	}
	return handle, nil
}

func (s *FSBlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read blob %s", handle)
	}
	return data, nil
}

func (s *FSBlobStore) Delete(ctx context.Context, handle string) error {
	path, err := s.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "store: delete blob %s", handle)
	}
	return nil
}

// MemoryBlobStore is an in-memory BlobStore for tests and ephemeral runs.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, data []byte) (string, error) {
	handle := blobHandle(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[handle]; !ok {
		s.blobs[handle] = append([]byte(nil), data...)
	}
	return handle, nil
}

func (s *MemoryBlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[handle]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, handle)
	return nil
}
