// Package voxcli provides the shared bootstrap for vox command-line tools and
// Lambda functions.
//
// Every function in this repo is a urfave/cli application: flags carry the
// configuration, CommonOpts holds the values every function needs, and Logger
// returns the zerolog logger tagged with the service identity.
package voxcli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v2"
)

func App(service Service, action cli.ActionFunc, flags ...cli.Flag) *cli.App {
	return &cli.App{
		Name:                 service.Name,
		Usage:                fmt.Sprintf("%v function", service.Name),
		Version:              service.Version,
		EnableBashCompletion: true,
		Before:               InitCommonOpts,
		Action:               action,
		Flags:                flags,
	}
}

// InitCommonOpts fills in values that depend on other flags once parsing is done.
// A blank region falls back to the Lambda runtime's AWS_DEFAULT_REGION.
func InitCommonOpts(c *cli.Context) error {
	if CommonOpts.Region == "" {
		CommonOpts.Region = os.Getenv("AWS_DEFAULT_REGION")
	}
	return nil
}

func CommitHash() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
		return info.Main.Version
	}
	return "unknown"
}
