package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	voxddb "github.com/voxdemo/vox-go-utils/vox-ddb"
	voxgql "github.com/voxdemo/vox-go-utils/vox-gql"
	voxrest "github.com/voxdemo/vox-go-utils/vox-rest"
	voxsecret "github.com/voxdemo/vox-go-utils/vox-secret"
	voxws "github.com/voxdemo/vox-go-utils/vox-ws"
)

var opts struct {
	APIKeySecret string
}

var service = voxcli.NewSubpathService("session-admin")

func main() {
	app := voxcli.App(
		service,
		action,
		append(
			append(voxcli.CommonFlags, voxddb.DDBFlags...),
			voxcli.PortFlag(5001),
			voxcli.StringFlag("api-key-secret", "Secrets Manager secret holding the admin api_key; empty disables the check", &opts.APIKeySecret),
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

	var apiKey string
	if opts.APIKeySecret != "" {
		secret, err := voxsecret.LoadAdminSecret(s, opts.APIKeySecret)
		if err != nil {
			return err
		}
		apiKey = secret.APIKey
	}

	api := &voxrest.SessionAPI{
		Sessions: sessions,
		Push:     &voxws.ManagementClients{},
		Metrics:  voxcli.NewMetrics(service, cloudwatch.New(s)),
	}
	resolver := voxgql.NewSessionsResolver(service, sessions)

	router := voxrest.Middlewares(service, chi.NewRouter())
	voxgql.MountConsole(router, resolver)
	var mountErr error
	voxrest.Keyed(router, apiKey, func(r chi.Router) {
		api.Routes(r)
		mountErr = voxgql.Mount(r, resolver)
	})
	if mountErr != nil {
		return mountErr
	}

	return voxrest.Webserver(service, router)
}
