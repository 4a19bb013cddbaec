package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrEmptyType = errors.New("message has no type")

// Message is the envelope for every websocket frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// Pool of buffers to avoid an allocation per frame
var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// NewMessage wraps data in an envelope stamped with now.
func NewMessage(t MessageType, data interface{}, now time.Time) (*Message, error) {
	msg := &Message{Type: t, Timestamp: now}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	msg.Data = raw
	return msg, nil
}

// Decode unmarshals the payload into v. A message without data leaves v
// untouched.
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// Marshal serializes an envelope to a single JSON frame.
func Marshal(m *Message) ([]byte, error) {
	if m.Type == "" {
		return nil, ErrEmptyType
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}

	// Copy out of the pooled buffer and drop the encoder's newline
	out := make([]byte, buf.Len()-1)
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal parses a frame into an envelope.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Type == "" {
		return nil, ErrEmptyType
	}
	return &m, nil
}
