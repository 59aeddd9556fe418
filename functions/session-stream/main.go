package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	voxddb "github.com/voxdemo/vox-go-utils/vox-ddb"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

var service = voxcli.NewService("session-stream")

var metrics voxcli.Metrics

func main() {
	app := voxcli.App(
		service,
		action,
		append(
			voxcli.CommonFlags,
			voxddb.DDBFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func onInsert(ctx context.Context, s sessiondao.Session) error {
	zerolog.Ctx(ctx).Info().Str("connection_id", s.ConnectionID).Str("endpoint", s.Endpoint).Msg("session inserted")
	metrics.Event(ctx, voxcli.SessionEventMetric, voxcli.Operation("insert"))
	return nil
}

func onModify(ctx context.Context, s sessiondao.Session) error {
	zerolog.Ctx(ctx).Info().Str("connection_id", s.ConnectionID).Msg("session overwritten")
	metrics.Event(ctx, voxcli.SessionEventMetric, voxcli.Operation("modify"))
	return nil
}

func onRemove(ctx context.Context, s sessiondao.Session, expired bool) error {
	zerolog.Ctx(ctx).Info().Str("connection_id", s.ConnectionID).Bool("expired", expired).Msg("session removed")
	op := "remove"
	if expired {
		op = "expire"
	}
	metrics.Event(ctx, voxcli.SessionEventMetric, voxcli.Operation(op))
	return nil
}

func action(_ *cli.Context) error {
	metrics = voxcli.NewMetrics(service, cloudwatch.New(voxcli.Session()))
	handler := voxddb.NewHandler(service, onInsert, onModify, onRemove)

	return handler.Start()
}
