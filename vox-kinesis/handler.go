// Package voxkinesis consumes the session events stream, either as a Lambda
// Kinesis trigger or by tailing the stream from the console.
package voxkinesis

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	"github.com/voxdemo/vox-go-utils/vox-ws/publish"
)

// EventCallback receives one decoded session event.
type EventCallback func(ctx context.Context, topic string, event publish.SessionEvent) error

type Handler struct {
	Service voxcli.Service
	Logger  zerolog.Logger

	onEvent EventCallback
}

func NewHandler(service voxcli.Service, onEvent EventCallback) *Handler {
	return &Handler{
		Service: service,
		Logger:  voxcli.Logger(service),
		onEvent: onEvent,
	}
}

func (h *Handler) Start() error {
	if !voxcli.CommonOpts.Console {
		lambda.Start(h.HandleKinesisEvent)
		return nil
	}
	return h.handleRealtime()
}

// HandleKinesisEvent processes a batch. Records that cannot be decoded are
// logged and skipped; callback failures fail the batch so Lambda retries it.
func (h *Handler) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	ctx = h.Logger.WithContext(ctx)
	for _, record := range event.Records {
		if err := h.handleRecord(ctx, record.Kinesis.Data); err != nil {
			h.Logger.Error().Err(err).
				Str("event_id", record.EventID).
				Str("sequence_number", record.Kinesis.SequenceNumber).
				Msg("failed to process session event")
			return err
		}
	}
	return nil
}

func (h *Handler) handleRecord(ctx context.Context, data []byte) error {
	topic, event, err := publish.Decode(data)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("skipping undecodable record")
		return nil
	}
	if err := h.onEvent(ctx, topic, event); err != nil {
		return fmt.Errorf("handling %v for connection %v: %w", topic, event.ConnectionID, err)
	}
	return nil
}

func (h *Handler) handleRealtime() error {
	streamName := KinesisOpts.StreamName
	if streamName == "" {
		streamName = publish.StreamName(voxcli.CommonOpts.Env)
	}

	var options []consumer.Option
	switch {
	case KinesisOpts.Replay && KinesisOpts.ReplayFrom.Value() != nil:
		options = append(options, consumer.WithShardIteratorType("AT_TIMESTAMP"), consumer.WithTimestamp(*KinesisOpts.ReplayFrom.Value()))
	case KinesisOpts.Replay:
		options = append(options, consumer.WithShardIteratorType("TRIM_HORIZON"))
	default:
		options = append(options, consumer.WithShardIteratorType("LATEST"))
	}

	c, err := consumer.New(streamName, options...)
	if err != nil {
		return fmt.Errorf("unable to create consumer for %v: %w", streamName, err)
	}

	ctx := h.Logger.WithContext(context.Background())
	h.Logger.Info().Str("stream", streamName).Msg("listening for session events")
	return c.Scan(ctx, func(record *consumer.Record) error {
		return h.handleRecord(ctx, record.Data)
	})
}
