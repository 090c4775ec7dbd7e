// Package messaging holds the Kafka conventions shared by producers and consumers.
package messaging

import (
	"sort"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType       = "event-type"
	HeaderCorrelationID   = "correlation-id"
	HeaderDeliveryAttempt = "x-delivery-attempt"
	HeaderDLQReason       = "dlq-reason"
)

// ToKafkaHeaders converts a header map into kafka headers ordered by key
func ToKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(headers[k])})
	}
	return out
}

// FromKafkaHeaders flattens kafka headers into a map. A repeated key keeps its last value.
func FromKafkaHeaders(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
