package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ImportCompletedMessage announces that statement rows were written to the
// store, so readers holding derived data should drop it.
type ImportCompletedMessage struct {
	Files     []string  `json:"files"`
	Inserted  int       `json:"inserted"`
	Skipped   int       `json:"skipped"`
	Timestamp time.Time `json:"timestamp"`
}

// NewImportCompletedMessage stamps a message with the current time.
func NewImportCompletedMessage(files []string, inserted, skipped int) *ImportCompletedMessage {
	return &ImportCompletedMessage{
		Files:     append([]string(nil), files...),
		Inserted:  inserted,
		Skipped:   skipped,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportCompletedMessageFromJSON decodes and sanity-checks a message body.
func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Inserted < 0 || msg.Skipped < 0 {
		return nil, errors.New("negative record counts")
	}
	return &msg, nil
}
