package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/LeventeLantos/order-notifier/internal/metrics"
)

const (
	maxMessages = 10
	waitSeconds = 2
)

// Receiver is the subset of *sqs.Client the consumer uses.
type Receiver interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// NewSQSClient builds a client from the default AWS credential chain. A
// non-empty endpoint overrides the service URL, e.g. for LocalStack.
func NewSQSClient(ctx context.Context, endpoint string) (*sqs.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

type SQSConsumer struct {
	client   Receiver
	queueURL string
	handler  EventHandler
	log      *zap.Logger
}

func NewSQSConsumer(client Receiver, queueURL string, handler EventHandler, log *zap.Logger) (*SQSConsumer, error) {
	if client == nil {
		return nil, errors.New("sqs client must not be nil")
	}
	if queueURL == "" {
		return nil, errors.New("queue url must not be empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SQSConsumer{client: client, queueURL: queueURL, handler: handler, log: log}, nil
}

// PollOnce receives one batch and handles every message in it. It returns the
// number of messages received.
func (c *SQSConsumer) PollOnce(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return 0, fmt.Errorf("sqs receive: %w", err)
	}

	for _, msg := range out.Messages {
		c.process(ctx, msg)
	}
	return len(out.Messages), nil
}

// Tick adapts PollOnce to the scheduler.
func (c *SQSConsumer) Tick(ctx context.Context) {
	n, err := c.PollOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Error("SQS poll failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		c.log.Debug("SQS batch handled", zap.Int("messages", n))
	}
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// unwrap returns the event envelope from a raw body, removing the SNS
// notification wrapper when present.
func unwrap(body string) (Envelope, error) {
	var sns snsEnvelope
	if err := json.Unmarshal([]byte(body), &sns); err != nil {
		return Envelope{}, fmt.Errorf("decode message body: %w", err)
	}
	if sns.Message != "" {
		body = sns.Message
	}

	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Envelope{}, fmt.Errorf("decode event envelope: %w", err)
	}
	return env, nil
}

func (c *SQSConsumer) process(ctx context.Context, msg types.Message) {
	if msg.ReceiptHandle == nil || *msg.ReceiptHandle == "" {
		c.log.Error("received SQS message without receipt handle")
		return
	}
	if msg.Body == nil || *msg.Body == "" {
		c.log.Error("received empty SQS message body", zap.String("message_id", aws.ToString(msg.MessageId)))
		return
	}

	env, err := unwrap(*msg.Body)
	if err != nil {
		c.log.Error("failed to unwrap SQS message", zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
		c.delete(ctx, msg.ReceiptHandle)
		return
	}

	outcomes, err := Dispatch(ctx, c.handler, env)
	metrics.InboundEvents.WithLabelValues("sqs", EventLabel(env.Type, err)).Inc()
	if err != nil {
		c.log.Error("failed to dispatch event", zap.String("event_type", env.Type), zap.Error(err))
		c.delete(ctx, msg.ReceiptHandle)
		return
	}

	for _, o := range outcomes {
		c.log.Debug("event handled",
			zap.String("event_type", env.Type),
			zap.String("order_id", o.OrderID),
			zap.String("status", string(o.Status)),
			zap.String("reason", o.Reason),
		)
	}

	// Outcomes are final; redelivery would only hit the dedupe marks.
	c.delete(ctx, msg.ReceiptHandle)
}

func (c *SQSConsumer) delete(ctx context.Context, receiptHandle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.log.Error("failed to delete SQS message", zap.Error(err))
	}
}
