// Package tracking consumes SES delivery-outcome notifications from SQS
// and hands them to the interaction correlator.
package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/listflow/internal/config"
	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/metrics"
	"github.com/ignite/listflow/internal/pkg/logger"
)

// SQSAPI is the subset of the SQS client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Handler applies one decoded event.
type Handler interface {
	Handle(ctx context.Context, ev *domain.InteractionEvent) error
}

// Message results recorded in metrics.
const (
	resultHandled   = "handled"
	resultMalformed = "malformed"
	resultFailed    = "failed"
)

// Consumer long-polls the event queue.
type Consumer struct {
	sqsClient SQSAPI
	handler   Handler
	cfg       config.EventsConfig
	backoff   time.Duration
	log       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a consumer for cfg.QueueURL.
func NewConsumer(sqsClient SQSAPI, handler Handler, cfg config.EventsConfig) *Consumer {
	return &Consumer{
		sqsClient: sqsClient,
		handler:   handler,
		cfg:       cfg,
		backoff:   5 * time.Second,
		log:       logger.With("component", "events", "queue", cfg.QueueURL),
	}
}

// Start begins polling in the background.
func (c *Consumer) Start(ctx context.Context) {
	c.log.Info("event consumer started")
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop ends polling and waits for the in-flight batch to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
	c.log.Info("event consumer stopped")
}

func (c *Consumer) poll(ctx context.Context) {
	for ctx.Err() == nil {
		if err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("event queue receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
		}
	}
}

// PollOnce receives and processes a single batch. Cancelling ctx aborts the
// receive but not the handling of messages already received.
func (c *Consumer) PollOnce(ctx context.Context) error {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		WaitTimeSeconds:     c.cfg.WaitSeconds,
	}
	if c.cfg.VisibilitySeconds > 0 {
		in.VisibilityTimeout = c.cfg.VisibilitySeconds
	}
	out, err := c.sqsClient.ReceiveMessage(ctx, in)
	if err != nil {
		return err
	}
	work := context.WithoutCancel(ctx)
	for _, msg := range out.Messages {
		c.process(work, msg)
	}
	return nil
}

// process handles one message. Undecodable messages are deleted so they do
// not come back; handler failures are left for redelivery.
func (c *Consumer) process(ctx context.Context, msg types.Message) {
	ev, err := Decode([]byte(aws.ToString(msg.Body)))
	if err != nil {
		c.log.Warn("dropping event message", "messageId", aws.ToString(msg.MessageId), "error", err)
		metrics.EventMessages.WithLabelValues(resultMalformed).Inc()
		c.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}
	if err := c.handler.Handle(ctx, ev); err != nil {
		c.log.Error("event handling failed", "type", string(ev.Type), "email", ev.Recipient, "error", err)
		metrics.EventMessages.WithLabelValues(resultFailed).Inc()
		return
	}
	metrics.EventMessages.WithLabelValues(resultHandled).Inc()
	c.deleteMessage(ctx, msg.ReceiptHandle)
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		c.log.Warn("event message delete failed", "error", err)
	}
}
