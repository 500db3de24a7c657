package store

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Backend.Get for an absent key.
var ErrNotFound = errors.New("store: key not found")

// Tx reads and writes keys inside Backend.Update.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Backend is a key-value text store. Values are opaque bytes.
//
// Update runs fn with exclusive access to the store, so a read-modify-write
// inside fn cannot interleave with another Update, in this process or, for
// the file backend, in another one. Writes made by fn are discarded when it
// returns an error, except on the file backend where each Put is applied as
// it happens.
type Backend interface {
	Tx
	Update(fn func(tx Tx) error) error
	Close() error
}

// Backend kinds accepted by OpenBackend.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// OpenBackend opens the backend of the given kind rooted at dir.
func OpenBackend(kind, dir string) (Backend, error) {
	switch kind {
	case "", BackendFile:
		return NewFileBackend(dir)
	case BackendPebble:
		return NewPebbleBackend(filepath.Join(dir, "pebble"))
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want file, pebble or memory)", kind)
	}
}
