package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finboard/internal/core"
)

// MessageVersion is bumped when TransactionCreatedMessage changes shape.
const MessageVersion = 1

// TransactionCreatedMessage announces a stored transaction. It carries the
// whole record so consumers never read the primary store.
type TransactionCreatedMessage struct {
	Version     int       `json:"version"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(tx core.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		Version:     MessageVersion,
		ID:          tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		Description: tx.Description,
		Category:    tx.Category,
		Date:        tx.Date.String(),
		CreatedAt:   tx.CreatedAt,
		Timestamp:   time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("message missing id or user_id")
	}
	return &msg, nil
}

// Transaction rebuilds and validates the announced record.
func (m *TransactionCreatedMessage) Transaction() (core.Transaction, error) {
	typ, err := core.ParseTxType(m.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(m.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", m.Amount, err)
	}
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", m.Date, err)
	}
	tx := core.Transaction{
		ID:          m.ID,
		UserID:      m.UserID,
		Type:        typ,
		Amount:      amount,
		Description: m.Description,
		Category:    m.Category,
		Date:        date,
		CreatedAt:   m.CreatedAt,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
