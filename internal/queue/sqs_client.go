package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	defaultRegion = "us-east-1"

	// requestIDAttribute lets consumers and the console filter without
	// decoding the body.
	requestIDAttribute = "requestId"
)

var ErrNoQueueURL = errors.New("CC_SQS_QUEUE_URL is required")

// SendAPI is the subset of the SQS client used for sending.
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient publishes ingest messages. On a FIFO queue the request id is
// both the group and the deduplication id, so a producer retrying the same
// analysis within the dedup window is collapsed by SQS.
type SQSClient struct {
	client   SendAPI
	queueURL string
	fifo     bool
	now      func() time.Time
}

// LoadAWSConfig resolves credentials the default way for region, falling
// back to us-east-1.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if strings.TrimSpace(region) == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	if strings.TrimSpace(queueURL) == "" {
		return nil, ErrNoQueueURL
	}
	cfg, err := LoadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewSQSClientWith(sqs.NewFromConfig(cfg), queueURL), nil
}

// NewSQSClientWith wraps an existing SQS API.
func NewSQSClientWith(api SendAPI, queueURL string) *SQSClient {
	queueURL = strings.TrimSpace(queueURL)
	return &SQSClient{
		client:   api,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		now:      time.Now,
	}
}

// Send stamps EnqueuedAt and Version when unset and publishes msg.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	if msg.EnqueuedAt == "" {
		msg.EnqueuedAt = s.now().UTC().Format(time.RFC3339)
	}
	if msg.Version == 0 {
		msg.Version = CurrentVersion
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	}
	if msg.RequestID != "" {
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			requestIDAttribute: {DataType: aws.String("String"), StringValue: aws.String(msg.RequestID)},
		}
		if s.fifo {
			input.MessageGroupId = aws.String(msg.RequestID)
			input.MessageDeduplicationId = aws.String(msg.RequestID)
		}
	}
	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs send message request_id=%s: %w", msg.RequestID, err)
	}
	return nil
}

var _ Client = (*SQSClient)(nil)
