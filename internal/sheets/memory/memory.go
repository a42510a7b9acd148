package memory

import (
	"context"
	"fmt"
	"sync"

	"finboard/internal/core"
)

// Mirror records appended transactions in memory. It stands in for the
// spreadsheet when none is configured.
type Mirror struct {
	mu   sync.Mutex
	rows []core.Transaction
	seen map[string]int
}

func New() *Mirror {
	return &Mirror{seen: make(map[string]int)}
}

// AppendTransaction stores tx once; a redelivered ID returns the row it
// already has.
func (m *Mirror) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.seen[tx.ID]; ok {
		return fmt.Sprintf("mem:%d", row), nil
	}
	m.rows = append(m.rows, tx)
	m.seen[tx.ID] = len(m.rows)
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.rows...)
}
