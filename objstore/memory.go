package objstore

import (
	"context"
	"sync"
)

// Object is a stored payload.
type Object struct {
	Body        []byte
	ContentType string
}

// Memory is an in-process store. It counts Put calls per key so callers can
// assert upload behavior.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
	puts    map[string]int
	// FailKeys makes Put return Err for the listed keys.
	FailKeys map[string]bool
	Err      error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string]Object),
		puts:     make(map[string]int),
		FailKeys: make(map[string]bool),
	}
}

func (m *Memory) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts[key]++
	if m.FailKeys[key] {
		return m.Err
	}
	m.objects[key] = Object{Body: append([]byte(nil), body...), ContentType: contentType}
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Get returns the object stored under key.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Puts returns how many times Put was called for key.
func (m *Memory) Puts(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts[key]
}

// TotalPuts returns the number of Put calls across all keys.
func (m *Memory) TotalPuts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.puts {
		n += c
	}
	return n
}
