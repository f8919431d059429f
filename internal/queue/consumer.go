package queue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"callcenter-backend/internal/shared/telemetry"
)

// ReceiveAPI is the subset of the SQS client a Consumer needs.
type ReceiveAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Disposition is what a handler decided about a delivery.
type Disposition int

const (
	// Ack deletes a handled message.
	Ack Disposition = iota
	// Drop deletes a message that can never succeed.
	Drop
	// Retry leaves the message to reappear after the visibility timeout.
	Retry
)

// Delivery is one received message.
type Delivery struct {
	ID           string
	Body         string
	ReceiveCount int
	receipt      string
}

// Handler processes one delivery.
type Handler func(ctx context.Context, d Delivery) Disposition

// ConsumerOptions tunes the receive loop.
type ConsumerOptions struct {
	QueueURL        string
	Concurrency     int
	Visibility      time.Duration
	WaitTime        time.Duration
	ShutdownTimeout time.Duration
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Visibility <= 0 {
		o.Visibility = 5 * time.Minute
	}
	if o.WaitTime <= 0 || o.WaitTime > 20*time.Second {
		o.WaitTime = 20 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	return o
}

// Consumer long-polls an SQS queue and hands messages to a Handler with
// bounded concurrency.
type Consumer struct {
	api  ReceiveAPI
	opts ConsumerOptions
}

func NewConsumer(api ReceiveAPI, opts ConsumerOptions) (*Consumer, error) {
	if strings.TrimSpace(opts.QueueURL) == "" {
		return nil, ErrNoQueueURL
	}
	return &Consumer{api: api, opts: opts.withDefaults()}, nil
}

// Run receives until ctx is done, then waits up to ShutdownTimeout for
// in-flight handlers. Handlers run with a context that outlives ctx so a
// message being stored is not cut off mid-write.
func (c *Consumer) Run(ctx context.Context, h Handler) {
	sem := make(chan struct{}, c.opts.Concurrency)
	var wg sync.WaitGroup
	work := context.WithoutCancel(ctx)

	telemetry.Info("queue.consumer.started", map[string]any{
		"queue":       c.opts.QueueURL,
		"concurrency": c.opts.Concurrency,
		"visibility":  c.opts.Visibility.String(),
	})

loop:
	for ctx.Err() == nil {
		resp, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.opts.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     int32(c.opts.WaitTime / time.Second),
			VisibilityTimeout:   int32(c.opts.Visibility / time.Second),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			telemetry.Error("queue.consumer.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break loop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				c.Handle(work, m, h)
			}(msg)
		}
	}

	telemetry.Info("queue.consumer.draining", map[string]any{"timeout": c.opts.ShutdownTimeout.String()})
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.opts.ShutdownTimeout):
		telemetry.Warn("queue.consumer.shutdown_timeout", map[string]any{"timeout": c.opts.ShutdownTimeout.String()})
	}
}

// Handle runs h on one message and deletes it unless h asks for a retry.
// It reports whether the message was removed from the queue.
func (c *Consumer) Handle(ctx context.Context, msg sqstypes.Message, h Handler) bool {
	d := toDelivery(msg)
	if h(ctx, d) == Retry {
		return false
	}
	return c.delete(ctx, d)
}

func (c *Consumer) delete(ctx context.Context, d Delivery) bool {
	fields := map[string]any{"sqs_message_id": d.ID}
	if d.receipt == "" {
		fields["error"] = "missing receipt handle"
		telemetry.Error("queue.consumer.delete_failed", fields)
		return false
	}
	if _, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.opts.QueueURL),
		ReceiptHandle: aws.String(d.receipt),
	}); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("queue.consumer.delete_failed", fields)
		return false
	}
	return true
}

func toDelivery(msg sqstypes.Message) Delivery {
	d := Delivery{
		ID:      aws.ToString(msg.MessageId),
		Body:    aws.ToString(msg.Body),
		receipt: aws.ToString(msg.ReceiptHandle),
	}
	if raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; raw != "" {
		d.ReceiveCount, _ = strconv.Atoi(raw)
	}
	return d
}
