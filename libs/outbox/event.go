package outbox

// Event is the domain event envelope staged in the outbox table.
// The Kafka topic name equals EventType (one topic per event type);
// the message key is AggregateID, which pins per-order ordering.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	// Headers are caller-supplied wire headers shipped verbatim alongside
	// the relay's own metadata headers.
	Headers map[string]string
}
