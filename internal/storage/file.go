package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
)

// FileStore stores each entry as <basePath>/<partition>/<key>.json.
type FileStore struct {
	fs       afero.Fs
	basePath string
	flock    bool
	mu       sync.Mutex
	locks    map[string]*FileLock
}

// New creates a FileStore on the host filesystem.
func New(basePath string) *FileStore {
	return NewFile(afero.NewOsFs(), basePath)
}

// NewFile creates a FileStore on fs. Cross-process flock locking is only
// used when fs is the host filesystem.
func NewFile(fs afero.Fs, basePath string) *FileStore {
	_, onDisk := fs.(*afero.OsFs)
	return &FileStore{
		fs:       fs,
		basePath: basePath,
		flock:    onDisk,
		locks:    make(map[string]*FileLock),
	}
}

// BasePath returns the root directory of the store.
func (s *FileStore) BasePath() string {
	return s.basePath
}

func (s *FileStore) pathToFile(partition, key string) string {
	return filepath.Join(s.basePath, partition, key) + ".json"
}

func (s *FileStore) pathToDir(partition string) string {
	return filepath.Join(s.basePath, partition)
}

// Get retrieves a value from storage.
func (s *FileStore) Get(ctx context.Context, partition, key string, v any) error {
	if err := validate(partition, key); err != nil {
		return err
	}

	data, err := afero.ReadFile(s.fs, s.pathToFile(partition, key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return unavailable("read file", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", partition, key, err)
	}

	return nil
}

// Put stores a value with file locking. The value is written to a temp file
// and renamed into place so a failed write never replaces the old record.
func (s *FileStore) Put(ctx context.Context, partition, key string, v any) error {
	if err := validate(partition, key); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	filePath := s.pathToFile(partition, key)
	if err := s.fs.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return unavailable("create directory", err)
	}

	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return unavailable("acquire lock", err)
	}
	defer lock.Unlock()

	tmpPath := filePath + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, data, 0644); err != nil {
		_ = s.fs.Remove(tmpPath)
		return unavailable("write temp file", err)
	}

	if err := s.fs.Rename(tmpPath, filePath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return unavailable("rename file", err)
	}

	return nil
}

// Delete removes a value from storage.
func (s *FileStore) Delete(ctx context.Context, partition, key string) error {
	if err := validate(partition, key); err != nil {
		return err
	}

	filePath := s.pathToFile(partition, key)

	lock := s.getLock(filePath)
	if err := lock.Lock(); err != nil {
		return unavailable("acquire lock", err)
	}
	defer lock.Unlock()

	if err := s.fs.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return unavailable("delete file", err)
	}

	return nil
}

// List returns all keys in a partition.
func (s *FileStore) List(ctx context.Context, partition string) ([]string, error) {
	if err := validatePartition(partition); err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(s.fs, s.pathToDir(partition))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, unavailable("read directory", err)
	}

	items := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, ".json") {
			items = append(items, strings.TrimSuffix(name, ".json"))
		}
	}

	return items, nil
}

// Scan iterates over all entries of a partition from a single directory read.
// Entries deleted after the read are skipped.
func (s *FileStore) Scan(ctx context.Context, partition string, fn func(key string, data json.RawMessage) error) error {
	keys, err := s.List(ctx, partition)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := afero.ReadFile(s.fs, s.pathToFile(partition, key))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return unavailable("read file", err)
		}

		if err := fn(key, json.RawMessage(data)); err != nil {
			return err
		}
	}

	return nil
}

// Clear moves the partition directory aside in one rename, then removes it.
// Readers see either the full partition or nothing.
func (s *FileStore) Clear(ctx context.Context, partition string) error {
	if err := validatePartition(partition); err != nil {
		return err
	}

	dir := s.pathToDir(partition)
	if _, err := s.fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return unavailable("stat directory", err)
	}

	trash := filepath.Join(s.basePath, "."+partition+".clearing-"+ulid.Make().String())
	if err := s.fs.Rename(dir, trash); err != nil {
		return unavailable("detach partition", err)
	}

	if err := s.fs.RemoveAll(trash); err != nil {
		return unavailable("remove partition", err)
	}

	return nil
}

// DeleteKeys moves the listed entries into a scratch directory, then removes
// it. If a move fails, entries already moved are put back and nothing is
// deleted.
func (s *FileStore) DeleteKeys(ctx context.Context, partition string, keys []string) error {
	if err := validatePartition(partition); err != nil {
		return err
	}
	for _, key := range keys {
		if err := validate(partition, key); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}

	trash := filepath.Join(s.basePath, "."+partition+".deleting-"+ulid.Make().String())
	if err := s.fs.MkdirAll(trash, 0755); err != nil {
		return unavailable("create directory", err)
	}

	var moved []string
	for _, key := range keys {
		entry := s.pathToFile(partition, key)
		if err := s.move(entry, entry, filepath.Join(trash, key+".json")); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			for _, k := range moved {
				entry := s.pathToFile(partition, k)
				_ = s.move(entry, filepath.Join(trash, k+".json"), entry)
			}
			_ = s.fs.RemoveAll(trash)
			return unavailable("detach entry", err)
		}
		moved = append(moved, key)
	}

	if err := s.fs.RemoveAll(trash); err != nil {
		return unavailable("remove entries", err)
	}
	return nil
}

// move renames from to to while holding the lock of entry.
func (s *FileStore) move(entry, from, to string) error {
	lock := s.getLock(entry)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	return s.fs.Rename(from, to)
}

// TryLock takes an exclusive flock on <basePath>/<name>.lock. On a
// non-host filesystem the lock only covers this process.
func (s *FileStore) TryLock(ctx context.Context, name string) (func() error, error) {
	if err := validatePartition(name); err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(s.basePath, 0755); err != nil {
		return nil, unavailable("create directory", err)
	}

	lock := s.getLock(filepath.Join(s.basePath, name))
	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() { err = lock.Unlock() })
		return err
	}, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}

// getLock returns a file lock for a path.
func (s *FileStore) getLock(filePath string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[filePath]
	if !ok {
		lock = NewFileLock(filePath, s.flock)
		s.locks[filePath] = lock
	}

	return lock
}
