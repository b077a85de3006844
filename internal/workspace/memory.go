package workspace

import (
	"fmt"
	"sync"

	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

// Memory is an in-memory Accessor for tests and callers that do not need
// durable artifacts. Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	files map[string]map[Kind][]byte
}

// NewMemory returns an empty in-memory workspace.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]map[Kind][]byte)}
}

func (m *Memory) Read(h *Handle, kind Kind) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[h.Key][kind]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "workspace", "read",
			fmt.Sprintf("artifact %s for %s", kind, h.Key), nil)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Write(h *Handle, kind Kind, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.files[h.Key]
	if !ok {
		entity = make(map[Kind][]byte)
		m.files[h.Key] = entity
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	entity[kind] = stored
	return nil
}

func (m *Memory) Exists(h *Handle, kind Kind) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[h.Key][kind]
	return ok, nil
}

// Delete removes an artifact. Test helper; the pipeline itself never
// deletes artifacts.
func (m *Memory) Delete(h *Handle, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files[h.Key], kind)
}
