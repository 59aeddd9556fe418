// Package voxgql exposes the session registry as a read-only GraphQL API.
//
// Introspection and the GraphiQL console are available outside the prod
// environment, or whenever the service runs in console mode.
package voxgql

import (
	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

func AllowIntrospection() bool {
	return voxcli.CommonOpts.Env != "prod" || voxcli.CommonOpts.Console
}

type Resolver interface {
	Schema() string
	Config() *BaseConfig
}
