// Package deadletter describes deliveries the consolidation worker gave up on.
package deadletter

import (
	"context"
	"time"
)

const (
	// DefaultListLimit is used when a caller does not ask for a specific page size
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Record is the archived copy of a dead-lettered delivery
type Record struct {
	ID             string    `json:"id" bson:"_id"`
	MessageKey     string    `json:"message_key" bson:"message_key"`
	Payload        string    `json:"payload" bson:"payload"`
	Reason         string    `json:"reason" bson:"reason"`
	Attempts       int       `json:"attempts" bson:"attempts"`
	Topic          string    `json:"topic" bson:"topic"`
	Partition      int       `json:"partition" bson:"partition"`
	Offset         int64     `json:"offset" bson:"offset"`
	DeadLetteredAt time.Time `json:"dead_lettered_at" bson:"dead_lettered_at"`
}

// Repository stores dead-letter records for operator inspection
type Repository interface {
	Create(ctx context.Context, record *Record) error

	// ListRecent returns up to limit records, most recently dead-lettered first
	ListRecent(ctx context.Context, limit int) ([]*Record, error)
}
