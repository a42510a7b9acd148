package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"finboard/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps transactions in process memory, partitioned by user.
type Store struct {
	mu     sync.RWMutex
	byUser map[string][]core.Transaction
	now    func() time.Time
}

func New() *Store {
	return &Store{byUser: make(map[string][]core.Transaction), now: time.Now}
}

// seedRecord is one entry of a seed file.
type seedRecord struct {
	UserID      string          `json:"user_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        core.Date       `json:"date"`
}

// NewFromFile builds a store seeded from a JSON array of transactions. A
// missing path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records []seedRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for i, r := range records {
		typ, err := core.ParseTxType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		in := core.NewTransaction{
			Type:        typ,
			Amount:      r.Amount,
			Description: r.Description,
			Category:    r.Category,
			Date:        r.Date,
		}
		if _, err := s.CreateTransaction(context.Background(), r.UserID, in); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
	}
	return s, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	s.mu.RLock()
	out := slices.Clone(s.byUser[userID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, userID string, in core.NewTransaction) (core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Transaction{}, core.ErrEmptyUser
	}
	now := s.now().UTC()
	in = in.Normalize(core.DateOf(now))
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date,
		CreatedAt:   now,
	}
	s.mu.Lock()
	s.byUser[userID] = append(s.byUser[userID], tx)
	s.mu.Unlock()
	return tx, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Count returns how many transactions userID owns.
func (s *Store) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}
