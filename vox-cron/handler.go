// Package voxcron runs a task on an EventBridge schedule, or once from the
// console.
package voxcron

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

// RunCallback performs one scheduled run. The returned summary is logged.
type RunCallback func(ctx context.Context) (interface{}, error)

type Handler struct {
	service voxcli.Service
	Logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service voxcli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		Logger:  voxcli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, event events.CloudWatchEvent) error {
	logger := h.Logger.With().Str("event_id", event.ID).Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Time("scheduled_at", event.Time).Msg("running scheduled task")
	started := time.Now()
	summary, err := h.runOnce(ctx)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("scheduled task failed")
		return err
	}
	logger.Info().Interface("summary", summary).Dur("elapsed", time.Since(started)).Msg("scheduled task finished")
	return nil
}

func (h *Handler) Start() error {
	switch {
	case voxcli.CommonOpts.Console:
		return h.RunOnce(context.Background(), events.CloudWatchEvent{ID: "console", Time: time.Now()})

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
