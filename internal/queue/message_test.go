package queue

import (
	"encoding/json"
	"testing"
)

func TestMessageKeepsAnalysisVerbatim(t *testing.T) {
	double := json.RawMessage(`"{\"call_summary\":\"ok\"}"`)
	msg := Message{
		RequestID:    "request-456",
		PersonnelID:  "p-1",
		CallAnalysis: double,
		EnqueuedAt:   "2026-01-30T22:00:00Z",
		Version:      CurrentVersion,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.RequestID != msg.RequestID || got.PersonnelID != "p-1" || got.Version != 1 {
		t.Fatalf("unexpected message %+v", got)
	}
	if string(got.CallAnalysis) != string(double) {
		t.Fatalf("expected analysis passed through, got %s", got.CallAnalysis)
	}
}

func TestDecodeMessageRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodeMessage([]byte("{bad")); err == nil {
		t.Fatalf("expected decode error")
	}
}
