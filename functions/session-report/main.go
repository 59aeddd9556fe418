package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	voxddb "github.com/voxdemo/vox-go-utils/vox-ddb"
	voxreport "github.com/voxdemo/vox-go-utils/vox-report"
	voxws "github.com/voxdemo/vox-go-utils/vox-ws"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

var service = voxcli.NewService("session-report")

func main() {
	app := voxcli.App(
		service,
		action,
		append(
			append(voxcli.CommonFlags, voxddb.DDBFlags...),
			voxreport.ReportFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	s := voxcli.Session()
	sessions, err := voxddb.Sessions(s)
	if err != nil {
		return err
	}
	metrics := voxcli.NewMetrics(service, cloudwatch.New(s))

	handler := voxreport.NewHandler(service, "sessions", s3.New(s), generate(sessions, metrics))
	return handler.Start()
}

func generate(sessions *sessiondao.DAO, metrics voxcli.Metrics) voxreport.GenerateCallback {
	return func(ctx context.Context) (interface{}, error) {
		all, err := sessions.List(ctx)
		if err != nil {
			return nil, err
		}
		report := voxws.BuildReport(all, time.Now().UTC())
		metrics.Gauge(ctx, voxcli.ActiveSessionsMetric, float64(report.Total), voxcli.Operation("report"))
		return report, nil
	}
}
