package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// SQSAPI is the subset of *sqs.Client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Envelope is the SQS message body written by the webhook relay.
type Envelope struct {
	AccountID string              `json:"account_id"`
	Event     domain.ChannelEvent `json:"event"`
}

// Consumer long-polls an SQS queue and feeds each envelope to an Intake.
// Messages are deleted once accepted; failures are left for redelivery.
type Consumer struct {
	client   SQSAPI
	queueURL string
	intake   *Intake
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewConsumer(client SQSAPI, queueURL string, intake *Intake) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		intake:   intake,
		done:     make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log.Printf("[InboundConsumer] started (queue=%s)", c.queueURL)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop ends polling and waits for the in-flight batch.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	log.Printf("[InboundConsumer] stopped")
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
			log.Printf("[InboundConsumer] receive error: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, msg := range out.Messages {
			c.handle(ctx, msg)
		}
	}
}

// handle reports whether msg was deleted.
func (c *Consumer) handle(ctx context.Context, msg types.Message) bool {
	var env Envelope
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &env); err != nil {
		log.Printf("[InboundConsumer] bad message %s: %v", aws.ToString(msg.MessageId), err)
		c.delete(ctx, msg.ReceiptHandle)
		return true
	}
	tc, err := tenant.Parse(env.AccountID)
	if err != nil {
		log.Printf("[InboundConsumer] message %s: %v", aws.ToString(msg.MessageId), err)
		c.delete(ctx, msg.ReceiptHandle)
		return true
	}

	outcome, err := c.intake.Accept(ctx, tc, env.Event)
	if errors.Is(err, ErrInvalidEvent) {
		log.Printf("[InboundConsumer] message %s: %v", aws.ToString(msg.MessageId), err)
		c.delete(ctx, msg.ReceiptHandle)
		return true
	}
	if err != nil {
		log.Printf("[InboundConsumer] accept error (%s): %v", env.Event.EventType, err)
		return false
	}
	if outcome == Queued {
		log.Printf("[InboundConsumer] queued %s for account %s", env.Event.EventType, tc)
	}
	c.delete(ctx, msg.ReceiptHandle)
	return true
}

func (c *Consumer) delete(ctx context.Context, handle *string) {
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		log.Printf("[InboundConsumer] delete error: %v", err)
	}
}
