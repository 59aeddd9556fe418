package voxcli

import (
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

var (
	sessionOnce sync.Once
	awsSession  *session.Session
)

// Session returns the process-wide AWS session, created on first use. Lambda
// execution environments reuse it across invocations until they are recycled.
func Session() *session.Session {
	sessionOnce.Do(func() {
		config := aws.NewConfig()
		if CommonOpts.Region != "" {
			config = config.WithRegion(CommonOpts.Region)
		}
		awsSession = session.Must(session.NewSession(config))
	})
	return awsSession
}
