package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-ici-sync/internal/util"
)

const (
	fileExt      = ".json"
	lockFileName = ".lock"
)

type cachedValue struct {
	data    []byte
	size    int64
	modTime time.Time
}

// FileBackend keeps one file per key under baseDir. Reads are served from a
// memory cache that is validated against the file's size and mtime, so writes
// from another process are picked up. Writes replace the file atomically and
// hold an advisory lock on baseDir/.lock.
type FileBackend struct {
	baseDir     string
	mu          sync.RWMutex
	memoryCache map[string]cachedValue
}

func NewFileBackend(baseDir string) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &FileBackend{
		baseDir:     baseDir,
		memoryCache: make(map[string]cachedValue),
	}, nil
}

// Dir returns the directory holding the key files.
func (f *FileBackend) Dir() string {
	return f.baseDir
}

// PathFor returns the file that holds key.
func (f *FileBackend) PathFor(key string) string {
	return filepath.Join(f.baseDir, url.PathEscape(key)+fileExt)
}

// KeyForPath is the inverse of PathFor. ok is false for files that do not hold a key.
func (f *FileBackend) KeyForPath(path string) (key string, ok bool) {
	if filepath.Dir(path) != filepath.Clean(f.baseDir) {
		return "", false
	}
	name := filepath.Base(path)
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (f *FileBackend) Get(key string) ([]byte, error) {
	if data, ok := f.cached(key); ok {
		return data, nil
	}
	var data []byte
	err := f.withLock(false, func() error {
		var rerr error
		data, rerr = f.read(key)
		return rerr
	})
	return data, err
}

func (f *FileBackend) Put(key string, value []byte) error {
	return f.withLock(true, func() error { return f.write(key, value) })
}

func (f *FileBackend) Delete(key string) error {
	return f.withLock(true, func() error { return f.remove(key) })
}

// Update holds the exclusive lock on baseDir/.lock while fn runs, so
// read-modify-write cycles from other processes are serialized.
func (f *FileBackend) Update(fn func(tx Tx) error) error {
	return f.withLock(true, func() error { return fn(fileTx{f}) })
}

// fileTx runs the unlocked file operations; the caller holds the lock.
// Reads bypass the memory cache so the value is the one on disk.
type fileTx struct {
	f *FileBackend
}

func (t fileTx) Get(key string) ([]byte, error) {
	data, err := t.f.read(key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

func (t fileTx) Put(key string, value []byte) error { return t.f.write(key, value) }

func (t fileTx) Delete(key string) error { return t.f.remove(key) }

// cached returns the remembered value of key when the file is unchanged.
func (f *FileBackend) cached(key string) ([]byte, bool) {
	info, err := os.Stat(f.PathFor(key))
	if err != nil {
		return nil, false
	}
	f.mu.RLock()
	c, ok := f.memoryCache[key]
	f.mu.RUnlock()
	if !ok || c.size != info.Size() || !c.modTime.Equal(info.ModTime()) {
		return nil, false
	}
	return append([]byte(nil), c.data...), true
}

func (f *FileBackend) read(key string) ([]byte, error) {
	path := f.PathFor(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f.evict(key)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.remember(key, path, data)
	return data, nil
}

func (f *FileBackend) write(key string, value []byte) error {
	path := f.PathFor(key)
	if err := writeAtomic(f.baseDir, path, value); err != nil {
		f.evict(key)
		return fmt.Errorf("write %s: %w", key, err)
	}
	f.remember(key, path, value)
	util.LogDebugf("store: wrote %d bytes to %s", len(value), path)
	return nil
}

func (f *FileBackend) remove(key string) error {
	f.evict(key)
	err := os.Remove(f.PathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// writeAtomic replaces path with value through a temp file in dir.
func writeAtomic(dir, path string, value []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *FileBackend) Close() error {
	f.mu.Lock()
	f.memoryCache = make(map[string]cachedValue)
	f.mu.Unlock()
	return nil
}

func (f *FileBackend) remember(key, path string, data []byte) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.memoryCache[key] = cachedValue{
		data:    append([]byte(nil), data...),
		size:    info.Size(),
		modTime: info.ModTime(),
	}
	f.mu.Unlock()
}

func (f *FileBackend) evict(key string) {
	f.mu.Lock()
	delete(f.memoryCache, key)
	f.mu.Unlock()
}

func (f *FileBackend) withLock(exclusive bool, fn func() error) error {
	lf, err := os.OpenFile(filepath.Join(f.baseDir, lockFileName), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer lf.Close()

	if err := lockFile(lf, exclusive); err != nil {
		return fmt.Errorf("lock %s: %w", f.baseDir, err)
	}
	defer unlockFile(lf)

	return fn()
}
