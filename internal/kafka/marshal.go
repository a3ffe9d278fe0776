// Package kafka carries domain events over Kafka.
package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/events"
)

// DecodeEnvelope reads the envelope carried by m.
func DecodeEnvelope(m kafka.Message) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// EncodeMessage builds the message Producer would write for env.
func EncodeMessage(topic, key string, env events.Envelope) (kafka.Message, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode envelope: %w", err)
	}
	return kafka.Message{Topic: topic, Key: []byte(key), Value: b}, nil
}
