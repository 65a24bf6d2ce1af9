package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrStorageUnavailable is returned by writes when no backend is configured.
var ErrStorageUnavailable = errors.New("storage is not available")

// KV is the key-value collaborator the ledger and runtime snapshot are
// persisted through. Get omits keys that are not present.
type KV interface {
	Get(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, record map[string][]byte) error
	Delete(ctx context.Context, keys []string) error
}

// MemoryKV is an in-process KV. GetErr and SetErr, when set, are returned
// by the next calls instead of touching the data.
type MemoryKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	GetErr error
	SetErr error
	sets   int
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string][]byte{}}
}

func (m *MemoryKV) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, record map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	for k, v := range record {
		m.data[k] = append([]byte(nil), v...)
	}
	m.sets++
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// SetCalls returns how many successful Set calls were made.
func (m *MemoryKV) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// SetFailure configures the error returned by subsequent Set calls.
func (m *MemoryKV) SetFailure(err error) {
	m.mu.Lock()
	m.SetErr = err
	m.mu.Unlock()
}

// GetFailure configures the error returned by subsequent Get calls.
func (m *MemoryKV) GetFailure(err error) {
	m.mu.Lock()
	m.GetErr = err
	m.mu.Unlock()
}
