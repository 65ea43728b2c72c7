package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Handler processes one decoded event payload. Returning an error leaves
// the message on the queue for redelivery, so handlers must be idempotent.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Consumer polls the queue and dispatches envelopes to registered handlers
// by event name. Messages with unknown names or malformed envelopes are
// deleted rather than retried; redelivering them can never succeed.
type Consumer struct {
	client   SQSAPI
	queueURL string
	handlers map[string]Handler
	done     chan struct{}
}

// NewConsumer creates a consumer for the given queue.
func NewConsumer(client SQSAPI, queueURL string) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// Handle registers the handler for an event name. Must be called before
// Start; the handler map is not mutated afterwards.
func (c *Consumer) Handle(name string, h Handler) {
	c.handlers[name] = h
}

// Start begins polling in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	log.Printf("[events.Consumer] started (queue=%s handlers=%d)", c.queueURL, len(c.handlers))
	go c.poll(ctx)
}

// Stop terminates the poll loop.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[events.Consumer] receive error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var env Envelope
			if err := json.Unmarshal([]byte(*msg.Body), &env); err != nil {
				log.Printf("[events.Consumer] bad envelope, dropping: %v", err)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			h, ok := c.handlers[env.Name]
			if !ok {
				log.Printf("[events.Consumer] no handler for %s, dropping", env.Name)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			if err := h(ctx, env.Payload); err != nil {
				// Leave on queue for redelivery; the stage write is an
				// upsert so the retry is safe.
				log.Printf("[events.Consumer] handler %s failed: %v", env.Name, err)
				continue
			}

			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
}
