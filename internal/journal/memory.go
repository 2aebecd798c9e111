package journal

import (
	"context"
	"sync"
)

const DefaultSize = 1000

// Memory is a fixed-size ring of the most recent records.
type Memory struct {
	mu     sync.Mutex
	buf    []Record
	next   int
	full   bool
	closed bool
}

var _ BatchJournal = (*Memory)(nil)

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Memory{buf: make([]Record, size)}
}

func (m *Memory) Save(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.push(r)
	return nil
}

func (m *Memory) SaveBatch(_ context.Context, batch []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, r := range batch {
		m.push(r)
	}
	return nil
}

func (m *Memory) push(r Record) {
	m.buf[m.next] = r
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
}

func (m *Memory) Recent(_ context.Context, n int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.next
	if m.full {
		count = len(m.buf)
	}
	if n <= 0 || n > count {
		n = count
	}
	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return len(m.buf)
	}
	return m.next
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
