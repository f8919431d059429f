package main

// Long-running ingest consumer for hosts outside Lambda:
//   CC_SQS_QUEUE_URL=https://sqs... DATABASE_URL=postgres://... go run ./cmd/worker

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"callcenter-backend/internal/bootstrap"
	"callcenter-backend/internal/ingest"
	"callcenter-backend/internal/queue"
	"callcenter-backend/internal/shared/config"
	"callcenter-backend/internal/shared/telemetry"
)

const ingestSource = "worker"

// handler maps ingest outcomes onto queue dispositions.
func handler(ing ingest.Ingester) queue.Handler {
	return func(ctx context.Context, d queue.Delivery) queue.Disposition {
		switch ingest.Process(ctx, ing, ingest.Delivery{MessageID: d.ID, Body: d.Body, ReceiveCount: d.ReceiveCount}, ingestSource) {
		case ingest.Completed:
			return queue.Ack
		case ingest.Rejected:
			return queue.Drop
		default:
			return queue.Retry
		}
	}
}

func consumerOptions(queueURL string) queue.ConsumerOptions {
	return queue.ConsumerOptions{
		QueueURL:        queueURL,
		Concurrency:     envInt("CC_WORKER_CONCURRENCY", 4),
		Visibility:      time.Duration(envInt("CC_SQS_VISIBILITY_TIMEOUT_SECONDS", 300)) * time.Second,
		ShutdownTimeout: time.Duration(envInt("CC_SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return queue.ErrNoQueueURL
	}
	awsCfg, err := queue.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return err
	}
	consumer, err := queue.NewConsumer(sqs.NewFromConfig(awsCfg), consumerOptions(cfg.QueueURL))
	if err != nil {
		return err
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	consumer.Run(ctx, handler(app.CallsService))
	return nil
}

func main() {
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load()); err != nil {
		telemetry.Error("worker.failed", map[string]any{"error": err.Error()})
		telemetry.Sync()
		os.Exit(1)
	}
	telemetry.Info("worker.stopped", nil)
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("worker.env.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}
