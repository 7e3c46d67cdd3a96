package kafkax

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header names attached by the outbox relay to every published message.
const (
	HeaderEventID         = "event_id"
	HeaderEventType       = "event_type"
	HeaderOutboxCreatedAt = "outbox_created_at"
)

// Header names carried out-of-band on retry envelopes.
const (
	HeaderRetryAttempt    = "x-retry-attempt"
	HeaderRetryDelayMs    = "x-delay-ms"
	HeaderScheduledTime   = "x-scheduled-time"
	HeaderErrorCode       = "x-error-code"
	HeaderErrorMessage    = "x-error-message"
	HeaderRetriesExceeded = "x-max-attempts-exceeded"
)

// EventMeta is the canonical metadata carried on Kafka messages across services.
type EventMeta struct {
	EventID   string
	EventType string
}

// ExtractEventMeta reads the relay headers. When the event_id header is
// missing the delivery coordinates (topic, partition, offset) act as the
// stable id, so dedup keeps working for messages published without an outbox.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, HeaderEventID)
	eventType := HeaderValue(msg.Headers, HeaderEventType)
	if eventID == "" {
		eventID = CoordinateID(msg)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

// CoordinateID derives an event id from the delivery coordinates. The
// partition+offset pair is unique for the lifetime of a topic and, unlike the
// payload, never legitimately repeats.
func CoordinateID(msg kafka.Message) string {
	return fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
}

// RetryMeta is the out-of-band scheduling metadata on a retry envelope.
type RetryMeta struct {
	Attempt     int
	Delay       time.Duration
	ScheduledAt time.Time
}

func ExtractRetryMeta(msg kafka.Message) RetryMeta {
	attempt, _ := strconv.Atoi(HeaderValue(msg.Headers, HeaderRetryAttempt))
	delayMs, _ := strconv.ParseInt(HeaderValue(msg.Headers, HeaderRetryDelayMs), 10, 64)
	scheduledMs, _ := strconv.ParseInt(HeaderValue(msg.Headers, HeaderScheduledTime), 10, 64)
	meta := RetryMeta{
		Attempt: attempt,
		Delay:   time.Duration(delayMs) * time.Millisecond,
	}
	if scheduledMs > 0 {
		meta.ScheduledAt = time.UnixMilli(scheduledMs).UTC()
	}
	return meta
}

func RetryHeaders(attempt int, delay time.Duration, scheduledAt time.Time) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderRetryAttempt, Value: []byte(strconv.Itoa(attempt))},
		{Key: HeaderRetryDelayMs, Value: []byte(strconv.FormatInt(delay.Milliseconds(), 10))},
		{Key: HeaderScheduledTime, Value: []byte(strconv.FormatInt(scheduledAt.UnixMilli(), 10))},
	}
}

// RetryHeaderMap is RetryHeaders in the form the outbox stages.
func RetryHeaderMap(attempt int, delay time.Duration, scheduledAt time.Time) map[string]string {
	return map[string]string{
		HeaderRetryAttempt:  strconv.Itoa(attempt),
		HeaderRetryDelayMs:  strconv.FormatInt(delay.Milliseconds(), 10),
		HeaderScheduledTime: strconv.FormatInt(scheduledAt.UnixMilli(), 10),
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
