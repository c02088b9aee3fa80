// store package provides durable backends for per-host endpoint penalty
// scores. Every implementation satisfies the cdn.PenaltyStore interface.
package store

import (
	"context"
	"sync"
)

// Memory is an in-memory penalty store. Scores do not survive process
// restarts; intended for tests and for running without persistence.
type Memory struct {
	mu        sync.RWMutex
	penalties map[string]int64
}

// NewMemory creates an empty in-memory penalty store.
func NewMemory() *Memory {
	return &Memory{
		penalties: make(map[string]int64),
	}
}

func (m *Memory) Get(_ context.Context, host string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.penalties[host], nil
}

func (m *Memory) Set(_ context.Context, host string, penalty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.penalties[host] = penalty
	return nil
}

// All returns a copy of every stored penalty, keyed by host.
func (m *Memory) All() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]int64, len(m.penalties))
	for host, penalty := range m.penalties {
		all[host] = penalty
	}
	return all
}
