package voxrest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/go-chi/chi/v5"
	"github.com/tj/assert"

	"github.com/voxdemo/vox-go-utils/graphiql"
	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const endpoint = "https://abc123.execute-api.us-east-1.amazonaws.com/dev"

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]sessiondao.Session
	err      error
}

func newStore(sessions ...sessiondao.Session) *memoryStore {
	m := &memoryStore{sessions: map[string]sessiondao.Session{}}
	for _, s := range sessions {
		m.sessions[s.ConnectionID] = s
	}
	return m
}

func (m *memoryStore) List(context.Context) ([]sessiondao.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sessiondao.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, m.err
}

func (m *memoryStore) Get(_ context.Context, id string) (*sessiondao.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return m.err
}

type fakePoster struct {
	err   error
	posts []string
}

func (f *fakePoster) Post(_ context.Context, endpoint, connectionID string, data []byte) error {
	f.posts = append(f.posts, endpoint+"|"+connectionID+"|"+string(data))
	return f.err
}

func newRouter(store SessionStore, poster *fakePoster, apiKey string) chi.Router {
	router := Middlewares(voxcli.Service{Name: "session-admin"}, chi.NewRouter())
	router.Get("/graphql", graphiql.New("/graphql"))
	api := &SessionAPI{Sessions: store, Push: poster}
	Keyed(router, apiKey, api.Routes)
	return router
}

func serve(router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionRoutes(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		store := newStore(sessiondao.NewSession("conn-a", endpoint, now, 0))
		w := serve(newRouter(store, &fakePoster{}, ""), http.MethodGet, "/sessions", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"sessions":[{"connectionId":"conn-a","createdAt":"2026-03-01T12:00:00Z","endpoint":"`+endpoint+`"}],"count":1}`, w.Body.String())
	})

	t.Run("list empty", func(t *testing.T) {
		w := serve(newRouter(newStore(), &fakePoster{}, ""), http.MethodGet, "/sessions", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"sessions":[],"count":0}`, w.Body.String())
	})

	t.Run("get", func(t *testing.T) {
		store := newStore(sessiondao.NewSession("conn-a", "", now, 0))
		w := serve(newRouter(store, &fakePoster{}, ""), http.MethodGet, "/sessions/conn-a", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"connectionId":"conn-a","createdAt":"2026-03-01T12:00:00Z"}`, w.Body.String())
	})

	t.Run("get missing", func(t *testing.T) {
		w := serve(newRouter(newStore(), &fakePoster{}, ""), http.MethodGet, "/sessions/conn-a", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newStore()
		store.err = errors.New("boom")
		w := serve(newRouter(store, &fakePoster{}, ""), http.MethodGet, "/sessions/conn-a", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "boom")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := newStore(sessiondao.NewSession("conn-a", "", now, 0))
		router := newRouter(store, &fakePoster{}, "")
		assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/sessions/conn-a", "").Code)
		assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/sessions/conn-a", "").Code)
		assert.Empty(t, store.sessions)
	})
}

func TestPushRoute(t *testing.T) {
	t.Run("pushes the raw body", func(t *testing.T) {
		poster := &fakePoster{}
		store := newStore(sessiondao.NewSession("conn-a", endpoint, now, 0))
		w := serve(newRouter(store, poster, ""), http.MethodPost, "/sessions/conn-a/messages", `{"type":"transcript"}`)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, []string{endpoint + `|conn-a|{"type":"transcript"}`}, poster.posts)
	})

	t.Run("gone removes the session", func(t *testing.T) {
		poster := &fakePoster{err: awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "gone", nil)}
		store := newStore(sessiondao.NewSession("conn-a", endpoint, now, 0))
		w := serve(newRouter(store, poster, ""), http.MethodPost, "/sessions/conn-a/messages", "hi")
		assert.Equal(t, http.StatusGone, w.Code)
		assert.Empty(t, store.sessions)
	})

	t.Run("other push failures", func(t *testing.T) {
		poster := &fakePoster{err: errors.New("throttled")}
		store := newStore(sessiondao.NewSession("conn-a", endpoint, now, 0))
		w := serve(newRouter(store, poster, ""), http.MethodPost, "/sessions/conn-a/messages", "hi")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Len(t, store.sessions, 1)
	})

	t.Run("rejects", func(t *testing.T) {
		store := newStore(
			sessiondao.NewSession("conn-a", endpoint, now, 0),
			sessiondao.NewSession("conn-b", "", now, 0),
		)
		router := newRouter(store, &fakePoster{}, "")
		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/sessions/conn-a/messages", "").Code)
		assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/sessions/conn-a/messages", strings.Repeat("x", maxMessageBytes+1)).Code)
		assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/sessions/conn-z/messages", "hi").Code)
		assert.Equal(t, http.StatusConflict, serve(router, http.MethodPost, "/sessions/conn-b/messages", "hi").Code)
	})
}

func TestWithAPIKey(t *testing.T) {
	router := newRouter(newStore(), &fakePoster{}, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/sessions", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/sessions", "", APIKeyHeader, "wrong").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/sessions", "", APIKeyHeader, "s3cret").Code)

	w := serve(router, http.MethodGet, "/sessions", "", APIKeyHeader, "s3cret")
	assert.Equal(t, "require-corp", w.Header().Get("cross-origin-embedder-policy"))

	t.Run("graphql suffix does not skip the key", func(t *testing.T) {
		store := newStore(sessiondao.NewSession("graphql", endpoint, now, 0))
		router := newRouter(store, &fakePoster{}, "s3cret")
		w := serve(router, http.MethodGet, "/sessions/graphql", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotContains(t, w.Body.String(), endpoint)
	})

	t.Run("console page is public", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/graphql", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
