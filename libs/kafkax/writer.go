package kafkax

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter builds a writer that hashes the message key onto a partition, so
// all events for one aggregate land on the same partition in publish order.
func NewWriter(brokers []string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Balancer: &kafka.Hash{},
	})
}
