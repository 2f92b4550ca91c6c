// Package kafka wraps franz-go with the consumer/producer/DLQ shapes
// the rest of the module depends on, adapted from the platform's shared
// Kafka client.
package kafka

import "time"

// Message is the transport-neutral shape a Handler receives and a DLQ
// payload is built from, decoupled from kgo.Record so callers never
// import franz-go directly.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one decoded message. Returning an error routes the
// original message to the dead-letter topic; the consumer loop continues.
type Handler interface {
	HandleMessage(Message) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(Message) error

func (f HandlerFunc) HandleMessage(m Message) error { return f(m) }
