// Package relay publishes service payloads onto an Electrician forward relay.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Message is one publish. Body is the encoded payload.
type Message struct {
	Topic   string
	Body    []byte
	Headers map[string]string
}

// Publisher is what publishing service definitions depend on.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// ErrMissingTopic is returned for messages without a topic.
var ErrMissingTopic = errors.New("relay: missing topic")

// Noop accepts publishes and discards them.
type Noop struct{}

func (Noop) Publish(_ context.Context, m Message) error {
	if strings.TrimSpace(m.Topic) == "" {
		return ErrMissingTopic
	}
	return nil
}

// frame is the wire form. The forward relay carries opaque bytes, so topic
// and headers travel inside.
type frame struct {
	Topic   string            `json:"topic"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body"`
}

// Encode renders m as a relay frame. A body that is not JSON is carried as
// a JSON string.
func Encode(m Message) ([]byte, error) {
	if strings.TrimSpace(m.Topic) == "" {
		return nil, ErrMissingTopic
	}
	body := json.RawMessage(m.Body)
	if len(m.Body) == 0 {
		body = json.RawMessage("null")
	} else if !json.Valid(m.Body) {
		quoted, err := json.Marshal(string(m.Body))
		if err != nil {
			return nil, err
		}
		body = quoted
	}
	return json.Marshal(frame{Topic: m.Topic, Headers: m.Headers, Body: body})
}

// Decode is the inverse of Encode.
func Decode(b []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Message{}, err
	}
	if f.Topic == "" {
		return Message{}, ErrMissingTopic
	}
	return Message{Topic: f.Topic, Headers: f.Headers, Body: []byte(f.Body)}, nil
}
