package voxkinesis

import (
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

var KinesisOpts struct {
	StreamName string
	Replay     bool
	ReplayFrom cli.Timestamp
}

var StreamNameFlag = voxcli.StringFlag("stream-name", "The session events stream; defaults to {env}-vox-ws-session-events", &KinesisOpts.StreamName)
var ReplayFlag = voxcli.BoolFlag("replay", "Whether to replay from the beginning, or start from the next message", &KinesisOpts.Replay)

var ReplayFromFlag = cli.TimestampFlag{
	Name:        "replay-from",
	Usage:       "Timestamp to replay from (with --replay)",
	Layout:      "2006-01-02 15:04:05",
	EnvVars:     []string{"REPLAY_FROM"},
	Destination: &KinesisOpts.ReplayFrom,
}

var KinesisFlags = []cli.Flag{
	StreamNameFlag,
	ReplayFlag,
	&ReplayFromFlag,
}
