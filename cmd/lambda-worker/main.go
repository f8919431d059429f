package main

// SQS-triggered ingest consumer. Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -tags lambda.norpc -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"callcenter-backend/internal/bootstrap"
	"callcenter-backend/internal/ingest"
	"callcenter-backend/internal/shared/config"
	"callcenter-backend/internal/shared/telemetry"
)

const ingestSource = "lambda"

// worker builds the app on the first invocation and keeps it for the life
// of the execution environment. A failed build is retried next time.
type worker struct {
	mu    sync.Mutex
	build func() (ingest.Ingester, error)
	ing   ingest.Ingester
}

func (w *worker) ingester() (ingest.Ingester, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ing != nil {
		return w.ing, nil
	}
	ing, err := w.build()
	if err != nil {
		return nil, err
	}
	w.ing = ing
	return ing, nil
}

func (w *worker) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	ing, err := w.ingester()
	if err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": err.Error(), "records": len(event.Records)})
		return retryAll(event), err
	}
	return processBatch(ctx, ing, event), nil
}

// processBatch reports retryable failures only; rejected records are
// dropped so they do not loop until the redrive limit.
func processBatch(ctx context.Context, ing ingest.Ingester, event events.SQSEvent) events.SQSEventResponse {
	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, record := range event.Records {
		d := ingest.Delivery{MessageID: record.MessageId, Body: record.Body, ReceiveCount: receiveCount(record)}
		if ingest.Process(ctx, ing, d, ingestSource) == ingest.Retryable {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp
}

func retryAll(event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
	for _, record := range event.Records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func receiveCount(record events.SQSMessage) int {
	n, _ := strconv.Atoi(record.Attributes["ApproximateReceiveCount"])
	return n
}

func buildIngester() (ingest.Ingester, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return nil, err
	}
	return app.CallsService, nil
}

func main() {
	defer telemetry.Sync()
	lambda.Start((&worker{build: buildIngester}).Handle)
}
