package store

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/penwyp/go-ici-sync/internal/util"
)

// ChangeEvent reports that the value under Key changed on disk.
type ChangeEvent struct {
	Key       string
	Operation string
}

// Watcher observes a FileBackend directory and reports changes to the watched
// keys, including writes made by other processes.
type Watcher struct {
	watcher *fsnotify.Watcher
	backend *FileBackend
	keys    map[string]struct{}
	events  chan ChangeEvent
	done    chan struct{}
	once    sync.Once
}

// NewWatcher starts watching backend for changes to keys.
func NewWatcher(backend *FileBackend, keys ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(backend.Dir()); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		backend: backend,
		keys:    make(map[string]struct{}, len(keys)),
		events:  make(chan ChangeEvent, 100),
		done:    make(chan struct{}),
	}
	for _, k := range keys {
		w.keys[k] = struct{}{}
	}

	go w.processEvents()
	return w, nil
}

func (w *Watcher) processEvents() {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			key, ok := w.backend.KeyForPath(event.Name)
			if !ok {
				continue
			}
			if _, watched := w.keys[key]; !watched {
				continue
			}
			select {
			case w.events <- ChangeEvent{Key: key, Operation: event.Op.String()}:
			default:
				// consumer is behind; a pending event already signals the change
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			util.LogError("store watcher error", util.F("error", err))
		}
	}
}

// Events returns the change stream. It is closed after Close.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
