package models

import (
	"bytes"
	"encoding/json"
)

// MessageType is the sender tag stored in a chat log row
type MessageType string

const (
	// MessageHuman is a message written by the end user
	MessageHuman MessageType = "human"

	// MessageAI is a message produced by the assistant
	MessageAI MessageType = "ai"

	// MessageUnknown is used for rows with a missing or unrecognized tag
	MessageUnknown MessageType = "unknown"
)

// String returns string representation of MessageType
func (t MessageType) String() string {
	return string(t)
}

// ParseMessageType maps a raw tag onto a known MessageType
func ParseMessageType(raw string) MessageType {
	switch MessageType(raw) {
	case MessageHuman:
		return MessageHuman
	case MessageAI:
		return MessageAI
	default:
		return MessageUnknown
	}
}

// MessageRow represents a row of the chat history table
type MessageRow struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Message   MessagePayload `json:"message"`
}

// Type returns the normalized message type of the row
func (r MessageRow) Type() MessageType {
	return ParseMessageType(r.Message.Type)
}

// Reduce returns the reduced form of the row used by summaries
func (r MessageRow) Reduce() Message {
	return Message{
		ID:      r.ID,
		Type:    r.Type(),
		Content: r.Message.Content,
	}
}

// MessagePayload is the JSON payload stored in the message column.
// Decoding never fails: null values, non-string fields and payloads that were
// stored as a JSON-encoded string all fall back to empty values.
type MessagePayload struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// UnmarshalJSON decodes a payload leniently
func (p *MessagePayload) UnmarshalJSON(data []byte) error {
	*p = MessagePayload{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	// Some writers store the payload as a string containing JSON
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil
		}
		return p.UnmarshalJSON([]byte(inner))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil
	}

	p.Type = rawString(fields["type"])
	p.Content = rawString(fields["content"])
	return nil
}

// rawString returns the raw value as a string, or "" when it is not a JSON string
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Message is a single chat turn reduced to what the dashboard needs
type Message struct {
	ID      int64       `json:"id"`
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}
