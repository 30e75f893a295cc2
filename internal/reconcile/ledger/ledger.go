// Package ledger tracks the highest applied event ordinal per correlation
// key. The reconciliation engine consults it before applying a transition and
// advances it in the same transaction as the record mutation.
package ledger

import (
	"context"
	"sync"
)

// Ledger maps correlation keys to the highest applied event ordinal.
type Ledger interface {
	// Last returns the highest applied ordinal for key, 0 when none.
	Last(ctx context.Context, key string) (int, error)
	// Advance records ordinal for key. Callers only advance forward; the
	// engine serializes per key, so implementations need no compare-and-set
	// beyond defensive clamping.
	Advance(ctx context.Context, key string, ordinal int) error
}

// Memory is a process-local ledger for tests and databaseless runs.
type Memory struct {
	mu      sync.RWMutex
	applied map[string]int
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{applied: make(map[string]int)}
}

func (m *Memory) Last(ctx context.Context, key string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied[key], nil
}

func (m *Memory) Advance(ctx context.Context, key string, ordinal int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ordinal > m.applied[key] {
		m.applied[key] = ordinal
	}
	return nil
}
