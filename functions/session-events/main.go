package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	voxkinesis "github.com/voxdemo/vox-go-utils/vox-kinesis"
	"github.com/voxdemo/vox-go-utils/vox-ws/publish"
)

var service = voxcli.NewService("session-events")

var metrics voxcli.Metrics

func main() {
	app := voxcli.App(
		service,
		action,
		append(
			voxcli.CommonFlags,
			voxkinesis.KinesisFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func onEvent(ctx context.Context, topic string, event publish.SessionEvent) error {
	zerolog.Ctx(ctx).Info().
		Str("topic", topic).
		Str("connection_id", event.ConnectionID).
		Time("at", event.At).
		Msg("session event")
	metrics.Event(ctx, voxcli.SessionEventMetric, voxcli.Operation(topic))
	return nil
}

func action(_ *cli.Context) error {
	metrics = voxcli.NewMetrics(service, cloudwatch.New(voxcli.Session()))
	handler := voxkinesis.NewHandler(service, onEvent)

	return handler.Start()
}
