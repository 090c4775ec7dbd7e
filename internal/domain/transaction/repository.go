package transaction

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// MaxListLimit caps how many transactions a single listing returns
const MaxListLimit = 100

// Repository defines transaction persistence operations
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error

	// ListRecent returns up to limit transactions, newest first by creation time
	ListRecent(ctx context.Context, limit int) ([]*Transaction, error)
	WithTx(tx pgx.Tx) Repository
}
