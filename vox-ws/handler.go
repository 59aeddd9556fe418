// Package voxws implements the WebSocket session registry behind API Gateway:
// $connect records a session, $disconnect removes it and $default answers
// simple commands by pushing a reply back over the same connection.
package voxws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	"github.com/voxdemo/vox-go-utils/vox-ws/publish"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

// Route keys assigned by API Gateway.
const (
	RouteConnect    = "$connect"
	RouteDisconnect = "$disconnect"
	RouteDefault    = "$default"
)

// DefaultSessionTTL matches the gateway's maximum connection duration.
const DefaultSessionTTL = 2 * time.Hour

// ErrMissingConnectionID is returned for events without a connection id.
var ErrMissingConnectionID = errors.New("event has no requestContext.connectionId")

// SessionStore is the part of the sessions table the gateway handlers use.
type SessionStore interface {
	Put(ctx context.Context, s sessiondao.Session) error
	Delete(ctx context.Context, connectionID string) error
}

// Poster pushes a payload to an open connection.
type Poster interface {
	Post(ctx context.Context, endpoint, connectionID string, data []byte) error
}

// EventPublisher receives session lifecycle events.
type EventPublisher interface {
	Send(ctx context.Context, topic string, event publish.SessionEvent) error
}

// Handler handles API Gateway WebSocket events.
type Handler struct {
	Sessions   SessionStore
	Push       Poster
	Events     EventPublisher // optional
	Logger     zerolog.Logger
	Metrics    voxcli.Metrics
	SessionTTL time.Duration    // TTL for session records (default 2 hours, negative for none)
	Now        func() time.Time // defaults to time.Now
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) logger(req events.APIGatewayWebsocketProxyRequest) zerolog.Logger {
	return h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Str("request_id", req.RequestContext.RequestID).
		Logger()
}

// HandleEvent routes an event by its route key, for deployments that point
// every route at one function.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.RequestContext.RouteKey {
	case RouteConnect:
		return h.HandleConnect(ctx, req)
	case RouteDisconnect:
		return h.HandleDisconnect(ctx, req)
	case RouteDefault:
		return h.HandleMessage(ctx, req)
	default:
		logger := h.logger(req)
		logger.Warn().Msg("unknown route")
		return failure(fmt.Errorf("unknown route %q", req.RequestContext.RouteKey), "Failed to route"), nil
	}
}

// HandleConnect records a new session. Any store failure yields a 500.
func (h *Handler) HandleConnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	if connID == "" {
		return events.APIGatewayProxyResponse{}, ErrMissingConnectionID
	}
	logger := h.logger(req)
	ctx = logger.WithContext(ctx)

	ttl := h.SessionTTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	now := h.now()
	endpoint := Endpoint(req.RequestContext.DomainName, req.RequestContext.Stage)

	if err := h.Sessions.Put(ctx, sessiondao.NewSession(connID, endpoint, now, ttl)); err != nil {
		logger.Error().Err(err).Msg("failed to store session")
		h.Metrics.Event(ctx, voxcli.HandlerFailedMetric, voxcli.Operation("connect"))
		return failure(err, "Failed to connect"), nil
	}

	h.publish(ctx, logger, publish.TopicSessionConnected, publish.SessionEvent{ConnectionID: connID, Endpoint: endpoint, At: now})
	h.Metrics.Event(ctx, voxcli.SessionConnectedMetric, voxcli.Operation("connect"))
	logger.Info().Msg("connection established")
	return success("Connected."), nil
}

// HandleDisconnect removes the session. Removing an unknown session succeeds.
func (h *Handler) HandleDisconnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	if connID == "" {
		return events.APIGatewayProxyResponse{}, ErrMissingConnectionID
	}
	logger := h.logger(req)
	ctx = logger.WithContext(ctx)

	if err := h.Sessions.Delete(ctx, connID); err != nil {
		logger.Error().Err(err).Msg("failed to delete session")
		h.Metrics.Event(ctx, voxcli.HandlerFailedMetric, voxcli.Operation("disconnect"))
		return failure(err, "Failed to disconnect"), nil
	}

	endpoint := Endpoint(req.RequestContext.DomainName, req.RequestContext.Stage)
	h.publish(ctx, logger, publish.TopicSessionDisconnected, publish.SessionEvent{ConnectionID: connID, Endpoint: endpoint, At: h.now()})
	h.Metrics.Event(ctx, voxcli.SessionDisconnectedMetric, voxcli.Operation("disconnect"))
	logger.Info().Msg("connection closed")
	return success("Disconnected."), nil
}

// HandleMessage answers commands on the $default route. Unrecognized actions
// are acknowledged with a 200 and no reply.
func (h *Handler) HandleMessage(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	if connID == "" {
		return events.APIGatewayProxyResponse{}, ErrMissingConnectionID
	}
	logger := h.logger(req)
	ctx = logger.WithContext(ctx)

	cmd, err := ParseCommand(req.Body)
	if err != nil {
		logger.Error().Err(err).Msg("invalid message")
		h.Metrics.Event(ctx, voxcli.HandlerFailedMetric, voxcli.Operation("message"))
		return failure(err, "Failed to handle message"), nil
	}

	switch cmd.Action {
	case ActionGetConnectionID:
		endpoint := Endpoint(req.RequestContext.DomainName, req.RequestContext.Stage)
		if err := h.Push.Post(ctx, endpoint, connID, ConnectionIDMessage(connID)); err != nil {
			logger.Error().Err(err).Msg("failed to send connection id")
			if IsGone(err) {
				h.forget(ctx, logger, connID)
			}
			h.Metrics.Event(ctx, voxcli.HandlerFailedMetric, voxcli.Operation("message"))
			return failure(err, "Failed to handle message"), nil
		}
		logger.Debug().Msg("connection id sent")
	default:
		logger.Debug().Str("action", cmd.Action).Msg("ignoring unrecognized action")
	}

	h.Metrics.Event(ctx, voxcli.MessageHandledMetric, voxcli.Operation("message"))
	return success("OK"), nil
}

// forget drops the session of a connection the gateway reports as gone.
func (h *Handler) forget(ctx context.Context, logger zerolog.Logger, connID string) {
	if err := h.Sessions.Delete(ctx, connID); err != nil {
		logger.Error().Err(err).Msg("failed to delete gone session")
		return
	}
	logger.Info().Msg("connection gone, session removed")
}

func (h *Handler) publish(ctx context.Context, logger zerolog.Logger, topic string, event publish.SessionEvent) {
	if h.Events == nil {
		return
	}
	if err := h.Events.Send(ctx, topic, event); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish session event")
	}
}

func success(body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: body}
}

func failure(err error, prefix string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       fmt.Sprintf("%v: %v", prefix, err),
	}
}
