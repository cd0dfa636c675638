package consumers

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// Message is one delivery of a broker record. The handler settles it exactly once
// with Ack or Nack; later calls are ignored.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Attempt   int // 1 on first delivery

	raw    kafka.Message
	ack    func()
	nack   func(reason error)
	settle sync.Once
}

func newMessage(raw kafka.Message, attempt int) *Message {
	headers := make(map[string]string, len(raw.Headers))
	for _, h := range raw.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     raw.Topic,
		Partition: raw.Partition,
		Offset:    raw.Offset,
		Key:       raw.Key,
		Value:     raw.Value,
		Headers:   headers,
		Attempt:   attempt,
		raw:       raw,
	}
}

// Ack marks the message as handled; its offset becomes committable
func (m *Message) Ack() {
	m.settle.Do(func() {
		if m.ack != nil {
			m.ack()
		}
	})
}

// Nack asks for redelivery after backoff
func (m *Message) Nack(reason error) {
	m.settle.Do(func() {
		if m.nack != nil {
			m.nack(reason)
		}
	})
}
