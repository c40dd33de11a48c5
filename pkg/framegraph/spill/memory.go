package spill

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory spill store, mainly for tests.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]map[int][]byte // runID -> stream -> seq -> frame
	closed bool
}

// NewMemoryStore creates a new in-memory spill store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]map[int][]byte),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(runID, stream string, seq int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	streams := m.data[runID]
	if streams == nil {
		streams = make(map[string]map[int][]byte)
		m.data[runID] = streams
	}
	frames := streams[stream]
	if frames == nil {
		frames = make(map[int][]byte)
		streams[stream] = frames
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)
	frames[seq] = stored
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(runID, stream string, seq int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	data, ok := m.data[runID][stream][seq]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data[runID]))
	for stream, frames := range m.data[runID] {
		info := Info{RunID: runID, Stream: stream, Frames: len(frames)}
		for _, f := range frames {
			info.Size += int64(len(f))
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Stream < infos[j].Stream
	})
	return infos, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
