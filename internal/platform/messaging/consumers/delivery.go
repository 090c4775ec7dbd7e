package consumers

import (
	"strconv"

	"github.com/cashflow-consolidation/internal/platform/messaging"
	"github.com/segmentio/kafka-go"
)

// Delivery is one attempt at handing a message to a handler. Attempt starts at 1
// and grows each time the message is requeued.
type Delivery struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Attempt   int
	Topic     string
	Partition int
	Offset    int64
}

func newDelivery(msg kafka.Message) *Delivery {
	headers := messaging.FromKafkaHeaders(msg.Headers)
	return &Delivery{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Attempt:   parseAttempt(headers[messaging.HeaderDeliveryAttempt]),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
}

// CorrelationID returns the correlation id header, if any
func (d *Delivery) CorrelationID() string {
	return d.Headers[messaging.HeaderCorrelationID]
}

// nextAttemptHeaders copies the headers with the attempt counter advanced
func (d *Delivery) nextAttemptHeaders() map[string]string {
	headers := make(map[string]string, len(d.Headers)+1)
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[messaging.HeaderDeliveryAttempt] = strconv.Itoa(d.Attempt + 1)
	return headers
}

func parseAttempt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
