package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSQS serves one batch of messages, then blocks until the context is
// cancelled. Deletes are recorded by receipt handle.
type fakeSQS struct {
	mu      sync.Mutex
	batch   []types.Message
	served  bool
	sent    []string
	deleted []string
	sendErr error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *in.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if !f.served {
		f.served = true
		batch := f.batch
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func message(t *testing.T, handle, name string, payload interface{}) types.Message {
	t.Helper()
	env, err := NewEnvelope(name, payload)
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return types.Message{Body: aws.String(string(body)), ReceiptHandle: aws.String(handle)}
}

func TestConsumerDispatchAndAck(t *testing.T) {
	client := &fakeSQS{batch: []types.Message{
		message(t, "h1", LeadReadyForDeployment, ReadyForDeployment{LeadID: "l1", TenantID: "t1"}),
		{Body: aws.String("not an envelope"), ReceiptHandle: aws.String("h2")},
		message(t, "h3", LeadSequenceReady, SequenceReady{LeadID: "l1", TenantID: "t1", SequenceID: "s1"}),
	}}

	var mu sync.Mutex
	var handled []string
	consumer := NewConsumer(client, "https://sqs.example/queue")
	consumer.Handle(LeadReadyForDeployment, func(_ context.Context, payload json.RawMessage) error {
		var evt ReadyForDeployment
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		mu.Lock()
		handled = append(handled, evt.LeadID)
		mu.Unlock()
		return nil
	})
	// No handler registered for LeadSequenceReady: it must be dropped.

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)
	defer consumer.Stop()

	require.Eventually(t, func() bool {
		return len(client.deletedHandles()) == 3
	}, 2*time.Second, 10*time.Millisecond, "all three messages should be acked")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"l1"}, handled)
	assert.ElementsMatch(t, []string{"h1", "h2", "h3"}, client.deletedHandles())
}

func TestConsumerLeavesFailedMessagesQueued(t *testing.T) {
	client := &fakeSQS{batch: []types.Message{
		message(t, "h1", LeadReadyForDeployment, ReadyForDeployment{LeadID: "l1", TenantID: "t1"}),
	}}

	consumer := NewConsumer(client, "https://sqs.example/queue")
	handlerRan := make(chan struct{})
	consumer.Handle(LeadReadyForDeployment, func(context.Context, json.RawMessage) error {
		close(handlerRan)
		return errors.New("downstream unavailable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)
	defer consumer.Stop()

	select {
	case <-handlerRan:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	// Give the loop a moment; the failed message must not be deleted.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, client.deletedHandles())
}

func TestPublisherSendsEnvelope(t *testing.T) {
	client := &fakeSQS{}
	pub := NewPublisher(client, "https://sqs.example/queue")

	err := pub.Publish(context.Background(), LeadSequenceReady, SequenceReady{
		LeadID: "l1", TenantID: "t1", SequenceID: "s1",
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(client.sent[0]), &env))
	assert.Equal(t, LeadSequenceReady, env.Name)
}

func TestPublisherRejectsInvalidPayload(t *testing.T) {
	client := &fakeSQS{}
	pub := NewPublisher(client, "https://sqs.example/queue")

	err := pub.Publish(context.Background(), LeadSequenceReady, ReadyForDeployment{LeadID: "l1", TenantID: "t1"})
	require.Error(t, err)
	assert.Empty(t, client.sent, "nothing may reach the queue on a validation failure")
}

func TestPublisherSurfacesSendFailure(t *testing.T) {
	client := &fakeSQS{sendErr: errors.New("sqs unavailable")}
	pub := NewPublisher(client, "https://sqs.example/queue")

	err := pub.Publish(context.Background(), LeadReadyForDeployment, ReadyForDeployment{LeadID: "l1", TenantID: "t1"})
	require.Error(t, err)
}
