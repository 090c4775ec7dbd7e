package outbox

import (
	"encoding/json"
	"time"

	"github.com/cashflow-consolidation/internal/domain/event"
	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/google/uuid"
)

// Message holds an encoded TransactionCreated event awaiting publication.
// It is written in the same database transaction as the transaction row.
type Message struct {
	ID            int64               `json:"id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	Payload       json.RawMessage     `json:"payload"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(ev event.TransactionCreated, correlationID string) (*Message, error) {
	payload, err := ev.Encode()
	if err != nil {
		return nil, err
	}

	return &Message{
		TransactionID: ev.ID,
		Payload:       payload,
		CorrelationID: correlationID,
		Status:        shared.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	m.touch()
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	m.touch()
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	m.touch()
}

// Exhausted reports whether the publish attempts reached maxAttempts
func (m *Message) Exhausted(maxAttempts int) bool {
	return m.Attempts >= maxAttempts
}

// Event decodes the payload back into the event it carries
func (m *Message) Event() (event.TransactionCreated, error) {
	return event.Decode(m.Payload)
}

func (m *Message) touch() {
	now := time.Now().UTC()
	m.LastAttemptAt = &now
}
