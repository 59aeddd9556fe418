// Package voxddb wires the sessions table: DynamoDB/DAX client construction
// from flags, and a handler for the table's DynamoDB stream.
package voxddb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/rs/zerolog"
	"github.com/savaki/ddb"
	"golang.org/x/sync/errgroup"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

// SessionCallback receives a decoded session image from the stream.
type SessionCallback func(ctx context.Context, s sessiondao.Session) error

// RemoveCallback receives the removed session. expired is true when the
// record's TTL had already passed, i.e. DynamoDB most likely reaped it.
type RemoveCallback func(ctx context.Context, s sessiondao.Session, expired bool) error

type Handler struct {
	service voxcli.Service
	Logger  zerolog.Logger
	Now     func() time.Time

	onInsert SessionCallback
	onModify SessionCallback
	onRemove RemoveCallback
}

func NewHandler(
	service voxcli.Service,
	onInsert SessionCallback,
	onModify SessionCallback,
	onRemove RemoveCallback,
) *Handler {
	return &Handler{
		service:  service,
		Logger:   voxcli.Logger(service),
		onInsert: onInsert,
		onModify: onModify,
		onRemove: onRemove,
	}
}

func (h *Handler) Start() error {
	switch {
	case voxcli.CommonOpts.Console:
		return h.handleRealtime(voxcli.Session())

	default:
		lambda.Start(h.HandleEvent)
	}
	return nil
}

func (h *Handler) HandleEvent(ctx context.Context, event ddb.Event) error {
	ctx = h.Logger.WithContext(ctx)
	h.Logger.Trace().Int("count", len(event.Records)).Msg("handling a batch of session changes")
	for _, record := range event.Records {
		if err := h.HandleSingleRecord(ctx, record); err != nil {
			h.Logger.Error().Err(err).Str("event", record.EventID).Msg("unable to handle record")
			return fmt.Errorf("unable to handle record: %w", err)
		}
	}
	return nil
}

func (h *Handler) HandleSingleRecord(ctx context.Context, record ddb.Record) error {
	switch record.EventName {
	case "INSERT":
		if h.onInsert == nil {
			return nil
		}
		s, err := ParseSession(record.Change.NewImage)
		if err != nil {
			return err
		}
		return h.onInsert(ctx, s)

	case "MODIFY":
		if h.onModify == nil {
			return nil
		}
		s, err := ParseSession(record.Change.NewImage)
		if err != nil {
			return err
		}
		return h.onModify(ctx, s)

	case "REMOVE":
		if h.onRemove == nil {
			return nil
		}
		s, err := ParseSession(record.Change.OldImage)
		if err != nil {
			return err
		}
		now := time.Now()
		if h.Now != nil {
			now = h.Now()
		}
		return h.onRemove(ctx, s, s.Expired(now))
	}
	return nil
}

// handleRealtime tails every shard of the sessions table's stream.
func (h *Handler) handleRealtime(s *session.Session) error {
	tableName := DDBOpts.TableName
	if tableName == "" {
		tableName = sessiondao.TableName(voxcli.CommonOpts.Env)
	}

	streams := dynamodbstreams.New(s)
	ss, err := streams.ListStreams(&dynamodbstreams.ListStreamsInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return fmt.Errorf("unable to list streams for table %v: %w", tableName, err)
	}
	if len(ss.Streams) != 1 {
		return fmt.Errorf("too few or too many streams (%v) for table %v", len(ss.Streams), tableName)
	}
	stream := ss.Streams[0]

	var shards []*dynamodbstreams.Shard
	var lastShard *string
	for {
		ds, err := streams.DescribeStream(&dynamodbstreams.DescribeStreamInput{
			StreamArn:             stream.StreamArn,
			ExclusiveStartShardId: lastShard,
		})
		if err != nil {
			return fmt.Errorf("unable to describe stream %v: %w", aws.StringValue(stream.StreamArn), err)
		}
		shards = append(shards, ds.StreamDescription.Shards...)
		if ds.StreamDescription.LastEvaluatedShardId == nil {
			break
		}
		lastShard = ds.StreamDescription.LastEvaluatedShardId
	}

	group, ctx := errgroup.WithContext(h.Logger.WithContext(context.Background()))
	group.SetLimit(64)

	h.Logger.Info().Str("tableName", tableName).Int("shardCount", len(shards)).Msg("tailing session changes")

	for _, shard := range shards {
		shard := shard
		group.Go(func() error {
			it, err := streams.GetShardIteratorWithContext(ctx, &dynamodbstreams.GetShardIteratorInput{
				StreamArn:         stream.StreamArn,
				ShardId:           shard.ShardId,
				ShardIteratorType: aws.String(dynamodbstreams.ShardIteratorTypeLatest),
			})
			if err != nil {
				return fmt.Errorf("unable to get shard iterator: %w", err)
			}

			for iterator := it.ShardIterator; iterator != nil; {
				records, err := streams.GetRecordsWithContext(ctx, &dynamodbstreams.GetRecordsInput{
					ShardIterator: iterator,
				})
				if err != nil {
					return fmt.Errorf("unable to get records: %w", err)
				}
				for _, record := range records.Records {
					// Round-trip through JSON into the lambda event shape.
					raw, err := json.Marshal(record)
					if err != nil {
						return fmt.Errorf("unable to marshal record: %w", err)
					}
					var r ddb.Record
					if err := json.Unmarshal(raw, &r); err != nil {
						return fmt.Errorf("unable to unmarshal record: %w", err)
					}
					if err := h.HandleSingleRecord(ctx, r); err != nil {
						return fmt.Errorf("error processing record %v: %w", r.EventID, err)
					}
				}
				iterator = records.NextShardIterator
				if len(records.Records) == 0 {
					time.Sleep(time.Second)
				}
			}
			return nil
		})
	}
	return group.Wait()
}

// ParseSession decodes a stream image into a session.
func ParseSession(item map[string]*dynamodb.AttributeValue) (sessiondao.Session, error) {
	var s sessiondao.Session
	if err := dynamodbattribute.UnmarshalMap(item, &s); err != nil {
		return sessiondao.Session{}, fmt.Errorf("unable to unmarshal session: %w", err)
	}
	if s.ConnectionID == "" {
		return sessiondao.Session{}, fmt.Errorf("stream image has no connection_id")
	}
	return s, nil
}
