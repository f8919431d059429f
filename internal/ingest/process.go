package ingest

import (
	"context"
	"errors"

	"callcenter-backend/internal/shared/metrics"
	"callcenter-backend/internal/shared/telemetry"
)

// Outcome is how a delivery ended.
type Outcome int

const (
	Completed Outcome = iota
	// Rejected messages can never be stored and should leave the queue.
	Rejected
	// Retryable failures should be redelivered.
	Retryable
)

// Delivery is a message body plus transport details for logging.
type Delivery struct {
	MessageID    string
	Body         string
	ReceiveCount int
}

// Process parses and stores one delivery, logging under "<source>.ingest.*"
// and counting it in the ingest metrics.
func Process(ctx context.Context, ing Ingester, d Delivery, source string) Outcome {
	metrics.IncIngestReceived()
	fields := map[string]any{"sqs_message_id": d.MessageID}
	if d.ReceiveCount > 0 {
		fields["receive_count"] = d.ReceiveCount
	}

	msg, meta, err := ParseMessage(d.Body)
	if msg.RequestID != "" {
		fields["request_id"] = msg.RequestID
	}
	if err != nil {
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error(source+".ingest."+parseFailure(err), fields)
		metrics.IncIngestDeletedUnrecoverable()
		return Rejected
	}
	if ing == nil {
		telemetry.Error(source+".ingest.failed", map[string]any{"error": "ingest service not configured"})
		metrics.IncIngestFailed()
		return Retryable
	}

	res, err := Apply(ctx, ing, msg, source)
	switch {
	case err == nil:
		fields["call_id"] = res.Call.ID
		fields["created"] = res.Created
		telemetry.Info(source+".ingest.completed", fields)
		metrics.IncIngestCompleted()
		return Completed
	case Unrecoverable(err):
		fields["error"] = err.Error()
		telemetry.Error(source+".ingest.rejected", fields)
		metrics.IncIngestDeletedUnrecoverable()
		return Rejected
	default:
		fields["error"] = err.Error()
		telemetry.Error(source+".ingest.failed", fields)
		metrics.IncIngestFailed()
		return Retryable
	}
}

func parseFailure(err error) string {
	var (
		empty   ErrEmptyBody
		missing ErrMissingRequestID
	)
	switch {
	case errors.As(err, &empty):
		return "empty_body"
	case errors.As(err, &missing):
		return "missing_request_id"
	default:
		return "decode_failed"
	}
}
