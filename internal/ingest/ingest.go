// Package ingest turns queue messages into stored call records. It is shared
// by the long-running worker and the Lambda consumer.
package ingest

import (
	"context"
	"errors"
	"strings"

	"callcenter-backend/internal/calls"
	"callcenter-backend/internal/queue"
	"callcenter-backend/internal/shared/util"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	return MessageMeta{BodyLen: len(body), BodySHA: util.SHA256Hex(body)}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingRequestID indicates a message without a request id.
type ErrMissingRequestID struct {
	Meta MessageMeta
}

func (e ErrMissingRequestID) Error() string { return "missing request id" }

// ErrApply indicates the record could not be stored after parsing.
type ErrApply struct {
	RequestID string
	Err       error
}

func (e ErrApply) Error() string {
	if e.Err == nil {
		return "apply message"
	}
	return "apply message: " + e.Err.Error()
}

func (e ErrApply) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivery cannot succeed.
func (e ErrApply) Unrecoverable() bool {
	return errors.Is(e.Err, calls.ErrInvalidInput) || errors.Is(e.Err, calls.ErrInvalidAnalysis)
}

// Unrecoverable reports whether err means the message should be dropped
// rather than retried.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingRequestID
		apply   ErrApply
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &missing):
		return true
	case errors.As(err, &apply):
		return apply.Unrecoverable()
	}
	return false
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.RequestID) == "" {
		return msg, meta, ErrMissingRequestID{Meta: meta}
	}
	return msg, meta, nil
}

// Ingester stores a completed call. calls.Service implements it.
type Ingester interface {
	Ingest(ctx context.Context, in calls.IngestInput) (calls.Call, bool, error)
}

// Result reports what Handle stored.
type Result struct {
	Message queue.Message
	Call    calls.Call
	Created bool
}

// Handle parses body and stores it. A message whose request id is already
// stored is a success with Created false.
func Handle(ctx context.Context, ing Ingester, body, source string) (Result, error) {
	if ing == nil {
		return Result{}, errors.New("ingest service not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, ing, msg, source)
}

// Apply stores an already parsed message.
func Apply(ctx context.Context, ing Ingester, msg queue.Message, source string) (Result, error) {
	c, created, err := ing.Ingest(ctx, ToInput(msg, source))
	if err != nil {
		return Result{Message: msg}, ErrApply{RequestID: msg.RequestID, Err: err}
	}
	return Result{Message: msg, Call: c, Created: created}, nil
}

// ToInput maps a queue message onto the ingest input.
func ToInput(msg queue.Message, source string) calls.IngestInput {
	in := calls.IngestInput{
		RequestID:       msg.RequestID,
		PersonnelID:     msg.PersonnelID,
		Name:            msg.Name,
		DurationSeconds: msg.DurationSeconds,
		Language:        msg.Language,
		Transcript:      msg.Transcript,
		AudioURL:        msg.AudioURL,
		Analysis:        msg.CallAnalysis,
		Source:          source,
	}
	if msg.CalledAt != nil {
		in.CalledAt = *msg.CalledAt
	}
	return in
}

// FromInput is the inverse of ToInput, used when relaying an ingest request
// through the queue.
func FromInput(in calls.IngestInput) queue.Message {
	msg := queue.Message{
		RequestID:       in.RequestID,
		PersonnelID:     in.PersonnelID,
		Name:            in.Name,
		DurationSeconds: in.DurationSeconds,
		Language:        in.Language,
		Transcript:      in.Transcript,
		AudioURL:        in.AudioURL,
		CallAnalysis:    in.Analysis,
		Version:         queue.CurrentVersion,
	}
	if !in.CalledAt.IsZero() {
		at := in.CalledAt
		msg.CalledAt = &at
	}
	return msg
}
