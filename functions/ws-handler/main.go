package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	voxddb "github.com/voxdemo/vox-go-utils/vox-ddb"
	voxws "github.com/voxdemo/vox-go-utils/vox-ws"
	"github.com/voxdemo/vox-go-utils/vox-ws/publish"
)

type routeFunc func(context.Context, events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error)

var opts struct {
	Route         string
	EventsStream  string
	PublishEvents bool
	SessionTTL    time.Duration
}

var service = voxcli.NewService("ws-handler")

func main() {
	app := voxcli.App(
		service,
		action,
		append(
			append(voxcli.CommonFlags, voxddb.DDBFlags...),
			voxcli.StringFlag("route", "Which route this function serves: connect, disconnect, default or all", &opts.Route, "all"),
			voxcli.BoolFlag("publish-events", "Publish session lifecycle events to Kinesis", &opts.PublishEvents),
			voxcli.StringFlag("events-stream", "Kinesis stream for session lifecycle events; defaults to {env}-vox-ws-session-events", &opts.EventsStream),
			voxcli.DurationFlag("session-ttl", "How long until DynamoDB may reap a session record; negative disables the ttl", &opts.SessionTTL, voxws.DefaultSessionTTL),
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

	handler := &voxws.Handler{
		Sessions:   sessions,
		Push:       &voxws.ManagementClients{},
		Logger:     voxcli.Logger(service),
		Metrics:    voxcli.NewMetrics(service, cloudwatch.New(s)),
		SessionTTL: opts.SessionTTL,
	}
	if p := publisher(s); p != nil {
		handler.Events = p
	}

	fn, err := route(handler, opts.Route)
	if err != nil {
		return err
	}

	if voxcli.CommonOpts.Console {
		return invokeFromStdin(fn)
	}
	lambda.Start(fn)
	return nil
}

// publisher returns nil unless --publish-events or --events-stream is set.
func publisher(s *session.Session) *publish.Publisher {
	if !opts.PublishEvents && opts.EventsStream == "" {
		return nil
	}
	return publish.Build(s, voxcli.CommonOpts.Env, opts.EventsStream)
}

func route(handler *voxws.Handler, name string) (routeFunc, error) {
	switch name {
	case "connect":
		return handler.HandleConnect, nil
	case "disconnect":
		return handler.HandleDisconnect, nil
	case "default":
		return handler.HandleMessage, nil
	case "all", "":
		return handler.HandleEvent, nil
	default:
		return nil, fmt.Errorf("unknown route %q", name)
	}
}

// invokeFromStdin runs a single API Gateway event read from stdin and prints
// the response.
func invokeFromStdin(fn routeFunc) error {
	var req events.APIGatewayWebsocketProxyRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("unable to decode websocket event from stdin: %w", err)
	}
	resp, err := fn(context.Background(), req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
