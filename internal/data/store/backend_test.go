package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackends(t *testing.T) {
	tests := []struct {
		name string
		kind string
	}{
		{name: "file", kind: BackendFile},
		{name: "pebble", kind: BackendPebble},
		{name: "memory", kind: BackendMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := OpenBackend(tt.kind, t.TempDir())
			require.NoError(t, err)
			defer backend.Close()

			_, err = backend.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, backend.Put("k", []byte("v1")))
			require.NoError(t, backend.Put("k", []byte("v2")))
			got, err := backend.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, backend.Delete("k"))
			_, err = backend.Get("k")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, backend.Delete("k"))
		})
	}
}

func TestBackends_Update(t *testing.T) {
	tests := []struct {
		name            string
		kind            string
		discardsOnError bool
	}{
		{name: "file", kind: BackendFile},
		{name: "pebble", kind: BackendPebble, discardsOnError: true},
		{name: "memory", kind: BackendMemory, discardsOnError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := OpenBackend(tt.kind, t.TempDir())
			require.NoError(t, err)
			defer backend.Close()

			require.NoError(t, backend.Put("n", []byte("1")))
			require.NoError(t, backend.Update(func(tx Tx) error {
				v, err := tx.Get("n")
				require.NoError(t, err)
				require.NoError(t, tx.Put("n", append(v, '2')))
				got, err := tx.Get("n")
				require.NoError(t, err)
				assert.Equal(t, "12", string(got), "writes are visible inside the update")
				return tx.Delete("gone")
			}))
			got, err := backend.Get("n")
			require.NoError(t, err)
			assert.Equal(t, "12", string(got))

			boom := errors.New("boom")
			err = backend.Update(func(tx Tx) error {
				require.NoError(t, tx.Put("n", []byte("discarded")))
				return boom
			})
			assert.ErrorIs(t, err, boom)
			if tt.discardsOnError {
				got, err = backend.Get("n")
				require.NoError(t, err)
				assert.Equal(t, "12", string(got))
			}
		})
	}
}

// Two handles on one directory stand in for two processes sharing the log.
func TestFileBackend_ConcurrentAppendsAcrossHandles(t *testing.T) {
	dir := t.TempDir()
	ns := model.PrivateNamespace("u-shared")
	var logs []*LocalLog
	for i := 0; i < 2; i++ {
		b, err := NewFileBackend(dir)
		require.NoError(t, err)
		logs = append(logs, NewLocalLog(b, ns))
	}

	const perHandle = 50
	var wg sync.WaitGroup
	for h, log := range logs {
		for i := 0; i < perHandle; i++ {
			wg.Add(1)
			go func(h, i int, log *LocalLog) {
				defer wg.Done()
				assert.NoError(t, log.Append(model.Message{Question: fmt.Sprintf("h%d-%d", h, i), Timestamp: int64(h*perHandle + i)}))
			}(h, i, log)
		}
	}
	wg.Wait()

	assert.Len(t, logs[0].ReadAll(), 2*perHandle)
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := OpenBackend("sqlite", t.TempDir())
	assert.Error(t, err)
}

func TestFileBackend_SeesExternalWrites(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	require.NoError(t, backend.Put("ns", []byte("[]")))
	_, err = backend.Get("ns")
	require.NoError(t, err)

	// another process replaces the file
	require.NoError(t, os.WriteFile(backend.PathFor("ns"), []byte(`[{"q":"x","a":"","ts":1}]`), 0644))

	got, err := backend.Get("ns")
	require.NoError(t, err)
	assert.Equal(t, `[{"q":"x","a":"","ts":1}]`, string(got))
}

func TestFileBackend_KeyPathRoundTrip(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"ici-private-chat-u-abc", "ici-private-chat-u-abc.corrupt", "a/b c"} {
		path := backend.PathFor(key)
		assert.Equal(t, backend.Dir(), filepath.Dir(path))
		got, ok := backend.KeyForPath(path)
		assert.True(t, ok)
		assert.Equal(t, key, got)
	}

	_, ok := backend.KeyForPath(filepath.Join(backend.Dir(), ".lock"))
	assert.False(t, ok)
}
