package queue

import (
	"encoding/json"
	"time"
)

// CurrentVersion is the message schema version written by Send.
const CurrentVersion = 1

// Message carries one completed analysis to the ingest worker.
// CallAnalysis is passed through untouched; it may be double-encoded.
type Message struct {
	RequestID       string          `json:"requestId"`
	PersonnelID     string          `json:"personnelId,omitempty"`
	Name            string          `json:"name,omitempty"`
	CalledAt        *time.Time      `json:"calledAt,omitempty"`
	DurationSeconds int             `json:"durationSeconds,omitempty"`
	Language        string          `json:"language,omitempty"`
	Transcript      string          `json:"transcript,omitempty"`
	AudioURL        string          `json:"audioUrl,omitempty"`
	CallAnalysis    json.RawMessage `json:"callAnalysis,omitempty"`
	EnqueuedAt      string          `json:"enqueuedAt"`
	Version         int             `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
