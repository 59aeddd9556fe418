package voxddb

import (
	"github.com/urfave/cli/v2"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

var DDBOpts struct {
	DAXCluster string
	TableName  string
}

var DAXClusterFlag = voxcli.StringFlag("dax-cluster", "The DAX cluster fronting the sessions table", &DDBOpts.DAXCluster)
var TableNameFlag = voxcli.StringFlag("table-name", "The sessions table; defaults to {env}-vox-ws-sessions", &DDBOpts.TableName)

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	TableNameFlag,
}
