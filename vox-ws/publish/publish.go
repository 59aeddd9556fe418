package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
)

const (
	TopicSessionConnected    = "session.connected"
	TopicSessionDisconnected = "session.disconnected"
)

// Envelope is the message format published to the session events stream.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// SessionEvent is the payload of a session lifecycle envelope.
type SessionEvent struct {
	ConnectionID string    `json:"connectionId"`
	Endpoint     string    `json:"endpoint,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher publishes session lifecycle events to Kinesis.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

// New creates a new Publisher.
func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a Publisher on the given session. An empty streamName falls
// back to the standard stream name for env.
func Build(s *session.Session, env, streamName string) *Publisher {
	if streamName == "" {
		streamName = StreamName(env)
	}
	return New(kinesis.New(s), streamName)
}

// Stream returns the Kinesis stream events are sent to.
func (p *Publisher) Stream() string {
	return p.streamName
}

// StreamName returns the Kinesis stream name for the given environment.
func StreamName(env string) string {
	return env + "-vox-ws-session-events"
}

// Send publishes a session event. The connection id is the partition key, so
// the connect and disconnect of one connection stay ordered.
func (p *Publisher) Send(ctx context.Context, topic string, event SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling session event: %w", err)
	}

	data, err := json.Marshal(Envelope{
		Topic:   topic,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(event.ConnectionID),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}

	return nil
}

// Decode unpacks a record published by Send.
func Decode(data []byte) (string, SessionEvent, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", SessionEvent{}, fmt.Errorf("unmarshalling envelope: %w", err)
	}
	if envelope.Topic == "" {
		return "", SessionEvent{}, fmt.Errorf("envelope has empty topic")
	}
	var event SessionEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return "", SessionEvent{}, fmt.Errorf("unmarshalling %v payload: %w", envelope.Topic, err)
	}
	return envelope.Topic, event, nil
}
