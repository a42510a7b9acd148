package sheets

import (
	"context"

	"finboard/internal/core"
)

// Ports for outbound mirror adapters.
type (
	// TransactionMirror copies stored transactions into a secondary,
	// human-facing ledger.
	TransactionMirror interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)

// Header is the column layout of a mirror row.
var Header = []string{"Date", "Type", "Category", "Description", "Amount", "User", "ID"}

// Row renders tx in Header order.
func Row(tx core.Transaction) []any {
	return []any{
		tx.Date.String(),
		string(tx.Type),
		tx.Category,
		tx.Description,
		tx.Amount.String(),
		tx.UserID,
		tx.ID,
	}
}
