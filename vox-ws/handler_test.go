package voxws

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/rs/zerolog"
	"github.com/tj/assert"

	"github.com/voxdemo/vox-go-utils/vox-ws/publish"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(store *memoryStore, poster *recordingPoster) *Handler {
	return &Handler{
		Sessions: store,
		Push:     poster,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return fixedNow },
	}
}

func wsEvent(route, connID, body string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body: body,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			RouteKey:     route,
			ConnectionID: connID,
			DomainName:   "abc123.execute-api.us-east-1.amazonaws.com",
			Stage:        "dev",
			RequestID:    "req-1",
		},
	}
}

const testEndpoint = "https://abc123.execute-api.us-east-1.amazonaws.com/dev"

func TestHandleConnect(t *testing.T) {
	t.Run("stores a session", func(t *testing.T) {
		store := newMemoryStore()
		h := newTestHandler(store, &recordingPoster{})

		resp, err := h.HandleConnect(context.Background(), wsEvent(RouteConnect, "conn-1", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Connected.", resp.Body)

		got := store.sessions["conn-1"]
		assert.Equal(t, "conn-1", got.ConnectionID)
		assert.Equal(t, "2026-03-01T12:00:00Z", got.CreatedAt)
		assert.Equal(t, testEndpoint, got.Endpoint)
		assert.Equal(t, fixedNow.Add(DefaultSessionTTL).Unix(), got.TTL)
	})

	t.Run("overwrites an existing session", func(t *testing.T) {
		store := newMemoryStore(sessiondao.Session{ConnectionID: "conn-1", CreatedAt: "2020-01-01T00:00:00Z"})
		h := newTestHandler(store, &recordingPoster{})
		h.SessionTTL = time.Minute

		resp, err := h.HandleConnect(context.Background(), wsEvent(RouteConnect, "conn-1", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, store.sessions, 1)
		assert.Equal(t, "2026-03-01T12:00:00Z", store.sessions["conn-1"].CreatedAt)
		assert.Equal(t, fixedNow.Add(time.Minute).Unix(), store.sessions["conn-1"].TTL)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemoryStore()
		store.putErr = errors.New("ProvisionedThroughputExceededException")
		h := newTestHandler(store, &recordingPoster{})

		resp, err := h.HandleConnect(context.Background(), wsEvent(RouteConnect, "conn-1", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotEmpty(t, resp.Body)
		assert.Contains(t, resp.Body, "ProvisionedThroughputExceededException")
	})

	t.Run("missing connection id", func(t *testing.T) {
		h := newTestHandler(newMemoryStore(), &recordingPoster{})
		_, err := h.HandleConnect(context.Background(), wsEvent(RouteConnect, "", ""))
		assert.True(t, errors.Is(err, ErrMissingConnectionID))
	})

	t.Run("publishes a lifecycle event", func(t *testing.T) {
		pub := &recordingPublisher{}
		h := newTestHandler(newMemoryStore(), &recordingPoster{})
		h.Events = pub

		_, err := h.HandleConnect(context.Background(), wsEvent(RouteConnect, "conn-1", ""))
		assert.NoError(t, err)
		assert.Equal(t, []sentEvent{{
			Topic: publish.TopicSessionConnected,
			Event: publish.SessionEvent{ConnectionID: "conn-1", Endpoint: testEndpoint, At: fixedNow},
		}}, pub.sent)
	})

	t.Run("publish failure does not fail the connect", func(t *testing.T) {
		h := newTestHandler(newMemoryStore(), &recordingPoster{})
		h.Events = &recordingPublisher{err: errors.New("stream missing")}

		resp, err := h.HandleConnect(context.Background(), wsEvent(RouteConnect, "conn-1", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestHandleDisconnect(t *testing.T) {
	t.Run("removes the session", func(t *testing.T) {
		store := newMemoryStore(sessiondao.Session{ConnectionID: "conn-1"}, sessiondao.Session{ConnectionID: "conn-2"})
		h := newTestHandler(store, &recordingPoster{})

		resp, err := h.HandleDisconnect(context.Background(), wsEvent(RouteDisconnect, "conn-1", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Disconnected.", resp.Body)
		assert.False(t, store.has("conn-1"))
		assert.True(t, store.has("conn-2"))
	})

	t.Run("unknown session is not an error", func(t *testing.T) {
		store := newMemoryStore()
		h := newTestHandler(store, &recordingPoster{})

		for i := 0; i < 2; i++ {
			resp, err := h.HandleDisconnect(context.Background(), wsEvent(RouteDisconnect, "conn-1", ""))
			assert.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.False(t, store.has("conn-1"))
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemoryStore(sessiondao.Session{ConnectionID: "conn-1"})
		store.deleteErr = errors.New("AccessDeniedException")
		pub := &recordingPublisher{}
		h := newTestHandler(store, &recordingPoster{})
		h.Events = pub

		resp, err := h.HandleDisconnect(context.Background(), wsEvent(RouteDisconnect, "conn-1", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotEmpty(t, resp.Body)
		assert.Empty(t, pub.sent)
	})

	t.Run("missing connection id", func(t *testing.T) {
		h := newTestHandler(newMemoryStore(), &recordingPoster{})
		_, err := h.HandleDisconnect(context.Background(), wsEvent(RouteDisconnect, "", ""))
		assert.True(t, errors.Is(err, ErrMissingConnectionID))
	})
}

func TestHandleMessage(t *testing.T) {
	t.Run("getConnectionId replies on the same connection", func(t *testing.T) {
		poster := &recordingPoster{}
		h := newTestHandler(newMemoryStore(), poster)

		resp, err := h.HandleMessage(context.Background(), wsEvent(RouteDefault, "conn-1", `{"action":"getConnectionId"}`))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []post{{
			Endpoint:     testEndpoint,
			ConnectionID: "conn-1",
			Data:         `{"type":"connectionId","connectionId":"conn-1"}`,
		}}, poster.posts)
	})

	ignored := []struct {
		name string
		body string
	}{
		{name: "unknown action", body: `{"action":"unknown"}`},
		{name: "empty object", body: `{}`},
		{name: "absent body", body: ``},
		{name: "null body", body: `null`},
		{name: "numeric action", body: `{"action":5}`},
		{name: "boolean action", body: `{"action":true}`},
		{name: "object action", body: `{"action":{"x":1}}`},
	}
	for _, tc := range ignored {
		t.Run(tc.name, func(t *testing.T) {
			poster := &recordingPoster{}
			h := newTestHandler(newMemoryStore(), poster)

			resp, err := h.HandleMessage(context.Background(), wsEvent(RouteDefault, "conn-1", tc.body))
			assert.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Empty(t, poster.posts)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		poster := &recordingPoster{}
		h := newTestHandler(newMemoryStore(), poster)

		resp, err := h.HandleMessage(context.Background(), wsEvent(RouteDefault, "conn-1", `{"action":`))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotEmpty(t, resp.Body)
		assert.Empty(t, poster.posts)
	})

	t.Run("push failure", func(t *testing.T) {
		store := newMemoryStore(sessiondao.Session{ConnectionID: "conn-1"})
		poster := &recordingPoster{err: errors.New("throttled")}
		h := newTestHandler(store, poster)

		resp, err := h.HandleMessage(context.Background(), wsEvent(RouteDefault, "conn-1", `{"action":"getConnectionId"}`))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotEmpty(t, resp.Body)
		assert.True(t, store.has("conn-1"))
	})

	t.Run("gone connection drops the session", func(t *testing.T) {
		store := newMemoryStore(sessiondao.Session{ConnectionID: "conn-1"})
		gone := awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "gone", nil)
		h := newTestHandler(store, &recordingPoster{err: gone})

		resp, err := h.HandleMessage(context.Background(), wsEvent(RouteDefault, "conn-1", `{"action":"getConnectionId"}`))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.False(t, store.has("conn-1"))
	})

	t.Run("missing connection id", func(t *testing.T) {
		h := newTestHandler(newMemoryStore(), &recordingPoster{})
		_, err := h.HandleMessage(context.Background(), wsEvent(RouteDefault, "", `{"action":"getConnectionId"}`))
		assert.True(t, errors.Is(err, ErrMissingConnectionID))
	})
}

func TestHandleEvent(t *testing.T) {
	store := newMemoryStore()
	poster := &recordingPoster{}
	h := newTestHandler(store, poster)
	ctx := context.Background()

	resp, err := h.HandleEvent(ctx, wsEvent(RouteConnect, "conn-1", ""))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, store.has("conn-1"))

	resp, err = h.HandleEvent(ctx, wsEvent(RouteDefault, "conn-1", `{"action":"getConnectionId"}`))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, poster.posts, 1)

	resp, err = h.HandleEvent(ctx, wsEvent(RouteDisconnect, "conn-1", ""))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, store.has("conn-1"))

	resp, err = h.HandleEvent(ctx, wsEvent("sendMessage", "conn-1", ""))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, resp.Body)
}
