package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleBackend stores values in an embedded pebble database. The database is
// locked by a single process, so no change watcher is available for it.
type PebbleBackend struct {
	db *pebble.DB

	updateMu sync.Mutex // serializes Update batches
}

func NewPebbleBackend(path string) (*PebbleBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleBackend{db: db}, nil
}

func (p *PebbleBackend) Get(key string) ([]byte, error) {
	return pebbleGet(p.db, key)
}

// Update applies the writes of fn in one synced batch.
func (p *PebbleBackend) Update(fn func(tx Tx) error) error {
	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	b := p.db.NewIndexedBatch()
	defer b.Close()
	if err := fn(pebbleTx{b}); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func pebbleGet(r pebbleReader, key string) ([]byte, error) {
	v, closer, err := r.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

type pebbleTx struct {
	b *pebble.Batch
}

func (t pebbleTx) Get(key string) ([]byte, error) { return pebbleGet(t.b, key) }

func (t pebbleTx) Put(key string, value []byte) error { return t.b.Set([]byte(key), value, nil) }

func (t pebbleTx) Delete(key string) error { return t.b.Delete([]byte(key), nil) }

func (p *PebbleBackend) Put(key string, value []byte) error {
	return p.db.Set([]byte(key), value, pebble.Sync)
}

func (p *PebbleBackend) Delete(key string) error {
	return p.db.Delete([]byte(key), pebble.Sync)
}

func (p *PebbleBackend) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
