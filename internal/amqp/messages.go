package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tells the worker what to do with a record.
type MessageType string

const (
	MessageSync   MessageType = "record.sync"
	MessageDelete MessageType = "record.delete"
)

// RecordMessage is a lightweight queue message. It carries only the record
// id; the worker loads the full record from the database.
type RecordMessage struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewRecordSyncMessage asks the worker to push a stored record to the sheet.
func NewRecordSyncMessage(id string) *RecordMessage {
	return &RecordMessage{Type: MessageSync, ID: id, Timestamp: time.Now().UTC()}
}

// NewRecordDeleteMessage asks the worker to remove a record from the sheet.
func NewRecordDeleteMessage(id string) *RecordMessage {
	return &RecordMessage{Type: MessageDelete, ID: id, Timestamp: time.Now().UTC()}
}

func (m *RecordMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordMessageFromJSON decodes and checks a queue message.
func RecordMessageFromJSON(data []byte) (*RecordMessage, error) {
	var msg RecordMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message without record id")
	}
	switch msg.Type {
	case MessageSync, MessageDelete:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}
