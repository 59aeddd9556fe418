package voxws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

// ClientFactory builds a Management API client bound to one callback endpoint.
type ClientFactory func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

// Endpoint returns the Management API callback URL for a gateway domain and stage.
func Endpoint(domainName, stage string) string {
	return fmt.Sprintf("https://%s/%s", domainName, stage)
}

// DefaultClientFactory creates clients on the process-wide AWS session.
func DefaultClientFactory(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	return apigatewaymanagementapi.New(voxcli.Session(), aws.NewConfig().WithEndpoint(endpoint))
}

// ManagementClients pushes to and probes connections, caching one client per
// endpoint for the life of the process.
type ManagementClients struct {
	New ClientFactory

	mu      sync.RWMutex
	clients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

// Client returns the cached client for endpoint, creating it on first use.
func (m *ManagementClients) Client(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	m.mu.RLock()
	if client, ok := m.clients[endpoint]; ok {
		m.mu.RUnlock()
		return client
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[endpoint]; ok {
		return client
	}
	if m.clients == nil {
		m.clients = make(map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI)
	}

	factory := m.New
	if factory == nil {
		factory = DefaultClientFactory
	}
	client := factory(endpoint)
	m.clients[endpoint] = client
	return client
}

// Post sends data to one connection.
func (m *ManagementClients) Post(ctx context.Context, endpoint, connectionID string, data []byte) error {
	_, err := m.Client(endpoint).PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("posting to connection %v: %w", connectionID, err)
	}
	return nil
}

// Probe asks the gateway whether a connection is still open.
func (m *ManagementClients) Probe(ctx context.Context, endpoint, connectionID string) error {
	_, err := m.Client(endpoint).GetConnectionWithContext(ctx, &apigatewaymanagementapi.GetConnectionInput{
		ConnectionId: aws.String(connectionID),
	})
	if err != nil {
		return fmt.Errorf("probing connection %v: %w", connectionID, err)
	}
	return nil
}

// IsGone reports whether err means the connection no longer exists (HTTP 410).
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == apigatewaymanagementapi.ErrCodeGoneException {
		return true
	}
	return strings.Contains(err.Error(), apigatewaymanagementapi.ErrCodeGoneException)
}
