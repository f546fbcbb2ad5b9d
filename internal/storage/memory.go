package storage

import "sync"

// Memory is an in-memory Blob. Intended for tests.
type Memory struct {
	mu   sync.Mutex
	data []byte
	set  bool
}

// NewMemory creates an empty in-memory Blob.
func NewMemory() *Memory {
	return &Memory{}
}

// Seed creates an in-memory Blob pre-populated with data.
func Seed(data []byte) *Memory {
	return &Memory{data: data, set: true}
}

func (m *Memory) Get() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.set {
		return nil, ErrNotFound
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *Memory) Put(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.set = true
	return nil
}

func (m *Memory) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	m.set = false
	return nil
}
