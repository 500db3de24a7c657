package store

import "sync"

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Put(key string, value []byte) error {
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{values: m.values, pending: make(map[string][]byte), deleted: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	for k := range tx.deleted {
		delete(m.values, k)
	}
	for k, v := range tx.pending {
		m.values[k] = v
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// memoryTx buffers writes until Update commits them.
type memoryTx struct {
	values  map[string][]byte
	pending map[string][]byte
	deleted map[string]bool
}

func (t *memoryTx) Get(key string) ([]byte, error) {
	if v, ok := t.pending[key]; ok {
		return append([]byte(nil), v...), nil
	}
	if t.deleted[key] {
		return nil, ErrNotFound
	}
	v, ok := t.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (t *memoryTx) Put(key string, value []byte) error {
	delete(t.deleted, key)
	t.pending[key] = append([]byte(nil), value...)
	return nil
}

func (t *memoryTx) Delete(key string) error {
	delete(t.pending, key)
	t.deleted[key] = true
	return nil
}
