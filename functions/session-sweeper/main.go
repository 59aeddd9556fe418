package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	voxcron "github.com/voxdemo/vox-go-utils/vox-cron"
	voxddb "github.com/voxdemo/vox-go-utils/vox-ddb"
	voxws "github.com/voxdemo/vox-go-utils/vox-ws"
)

var opts struct {
	MaxAge      time.Duration
	Concurrency int
}

var service = voxcli.NewService("session-sweeper")

func main() {
	app := voxcli.App(
		service,
		action,
		append(
			append(voxcli.CommonFlags, voxddb.DDBFlags...),
			voxcli.DurationFlag("max-age", "Sessions younger than this are never probed", &opts.MaxAge, voxws.DefaultSessionTTL),
			voxcli.IntFlag("concurrency", "Maximum concurrent connection probes", &opts.Concurrency, 16),
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

	sweeper := &voxws.Sweeper{
		Sessions:    sessions,
		Probe:       &voxws.ManagementClients{},
		Logger:      voxcli.Logger(service),
		Metrics:     voxcli.NewMetrics(service, cloudwatch.New(s)),
		MaxAge:      opts.MaxAge,
		Concurrency: opts.Concurrency,
		Dry:         voxcli.CommonOpts.Dry,
	}
	handler := voxcron.NewHandler(service, func(ctx context.Context) (interface{}, error) {
		return sweeper.Sweep(ctx)
	})

	return handler.Start()
}
