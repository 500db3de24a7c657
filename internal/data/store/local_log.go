package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/penwyp/go-ici-sync/internal/util"
)

// ErrEmptyLog is returned by AttachAnswer when there is no entry to attach to.
var ErrEmptyLog = errors.New("store: log is empty")

// LocalLog is the device-private message log persisted under one namespace key.
// Every write replaces the whole sequence.
type LocalLog struct {
	backend   Backend
	namespace string

	mu      sync.Mutex
	lastErr error
}

// NewLocalLog binds a log to the namespace key on backend.
func NewLocalLog(backend Backend, namespace string) *LocalLog {
	return &LocalLog{backend: backend, namespace: namespace}
}

// Namespace returns the key holding the log.
func (l *LocalLog) Namespace() string {
	return l.namespace
}

// QuarantineKey returns the key that receives undecodable bytes before they are overwritten.
func (l *LocalLog) QuarantineKey() string {
	return l.namespace + model.QuarantineSuffix
}

// ReadAll returns the persisted sequence. A missing value yields an empty log.
// An undecodable value also yields an empty log; the cause is kept in LastError.
func (l *LocalLog) ReadAll() []model.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	msgs, _, err := l.load(l.backend)
	l.lastErr = err
	if err != nil {
		util.LogWarn("local log unreadable, treating as empty",
			util.F("namespace", l.namespace), util.F("error", err))
		return []model.Message{}
	}
	return msgs
}

// LastError returns the decode or read failure of the most recent ReadAll, or nil.
func (l *LocalLog) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Append adds msg to the end of the log.
func (l *LocalLog) Append(msg model.Message) error {
	return l.update(func(msgs []model.Message, loadErr error) ([]model.Message, error) {
		if loadErr != nil {
			msgs = nil
		}
		return append(msgs, msg), nil
	})
}

// ReplaceAll overwrites the log with msgs.
func (l *LocalLog) ReplaceAll(msgs []model.Message) error {
	return l.update(func([]model.Message, error) ([]model.Message, error) {
		return msgs, nil
	})
}

// AttachAnswer sets the answer of the most recently appended entry.
func (l *LocalLog) AttachAnswer(answer string) error {
	return l.update(func(msgs []model.Message, loadErr error) ([]model.Message, error) {
		if loadErr != nil || len(msgs) == 0 {
			return nil, ErrEmptyLog
		}
		msgs[len(msgs)-1].Answer = answer
		return msgs, nil
	})
}

// Clear removes the log.
func (l *LocalLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.backend.Update(func(tx Tx) error {
		_, raw, loadErr := l.load(tx)
		if loadErr != nil {
			l.quarantine(tx, raw)
		}
		return tx.Delete(l.namespace)
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", l.namespace, err)
	}
	l.lastErr = nil
	return nil
}

// update runs one read-modify-write cycle under the backend's exclusive lock.
// modify receives the current log, or the decode error of an unreadable one,
// whose raw bytes are quarantined before the new value replaces them.
func (l *LocalLog) update(modify func(msgs []model.Message, loadErr error) ([]model.Message, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.backend.Update(func(tx Tx) error {
		msgs, raw, loadErr := l.load(tx)
		next, err := modify(msgs, loadErr)
		if err != nil {
			return err
		}
		if loadErr != nil {
			l.quarantine(tx, raw)
		}
		if next == nil {
			next = []model.Message{}
		}
		data, err := sonic.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", l.namespace, err)
		}
		return tx.Put(l.namespace, data)
	})
	if err != nil {
		return err
	}
	l.lastErr = nil
	return nil
}

// load returns the decoded log and the raw bytes it came from.
func (l *LocalLog) load(tx Tx) ([]model.Message, []byte, error) {
	raw, err := tx.Get(l.namespace)
	if errors.Is(err, ErrNotFound) {
		return []model.Message{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", l.namespace, err)
	}

	var msgs []model.Message
	if err := sonic.Unmarshal(raw, &msgs); err != nil {
		return nil, raw, fmt.Errorf("decode %s: %w", l.namespace, err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, raw, nil
}

func (l *LocalLog) quarantine(tx Tx, raw []byte) {
	if len(raw) == 0 {
		return
	}
	if err := tx.Put(l.QuarantineKey(), raw); err != nil {
		util.LogError("failed to quarantine corrupt local log",
			util.F("namespace", l.namespace), util.F("error", err))
		return
	}
	util.LogWarn("quarantined corrupt local log",
		util.F("namespace", l.namespace), util.F("key", l.QuarantineKey()), util.F("bytes", len(raw)))
}
