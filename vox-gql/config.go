package voxgql

import (
	"github.com/rs/zerolog"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

type BaseConfig struct {
	Logger  zerolog.Logger
	Service voxcli.Service
}

func NewConfig(service voxcli.Service) BaseConfig {
	return BaseConfig{
		Logger:  voxcli.Logger(service),
		Service: service,
	}
}
