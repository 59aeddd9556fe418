package voxrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	voxws "github.com/voxdemo/vox-go-utils/vox-ws"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

// maxMessageBytes is the API Gateway WebSocket frame limit.
const maxMessageBytes = 128 * 1024

type SessionStore interface {
	List(ctx context.Context) ([]sessiondao.Session, error)
	Get(ctx context.Context, connectionID string) (*sessiondao.Session, error)
	Delete(ctx context.Context, connectionID string) error
}

type SessionAPI struct {
	Sessions SessionStore
	Push     voxws.Poster
	Metrics  voxcli.Metrics
}

type sessionList struct {
	Sessions []sessiondao.Session `json:"sessions"`
	Count    int                  `json:"count"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *SessionAPI) Routes(router chi.Router) {
	router.Get("/sessions", a.list)
	router.Get("/sessions/{id}", a.get)
	router.Delete("/sessions/{id}", a.delete)
	router.Post("/sessions/{id}/messages", a.push)
}

func (a *SessionAPI) list(w http.ResponseWriter, req *http.Request) {
	sessions, err := a.Sessions.List(req.Context())
	if err != nil {
		a.fail(w, req, http.StatusInternalServerError, err, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []sessiondao.Session{}
	}
	writeJSON(w, http.StatusOK, sessionList{Sessions: sessions, Count: len(sessions)})
}

func (a *SessionAPI) get(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	s, err := a.Sessions.Get(req.Context(), id)
	if err != nil {
		a.fail(w, req, http.StatusInternalServerError, err, "failed to get session")
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *SessionAPI) delete(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := a.Sessions.Delete(req.Context(), id); err != nil {
		a.fail(w, req, http.StatusInternalServerError, err, "failed to delete session")
		return
	}
	zerolog.Ctx(req.Context()).Info().Str("connection_id", id).Msg("session deleted by admin")
	w.WriteHeader(http.StatusNoContent)
}

func (a *SessionAPI) push(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	id := chi.URLParam(req, "id")

	data, err := io.ReadAll(io.LimitReader(req.Body, maxMessageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	if len(data) == 0 || len(data) > maxMessageBytes {
		writeError(w, http.StatusBadRequest, "message must be between 1 byte and 128KB")
		return
	}

	s, err := a.Sessions.Get(ctx, id)
	if err != nil {
		a.fail(w, req, http.StatusInternalServerError, err, "failed to get session")
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if s.Endpoint == "" {
		writeError(w, http.StatusConflict, "session has no recorded endpoint")
		return
	}

	if err := a.Push.Post(ctx, s.Endpoint, id, data); err != nil {
		if voxws.IsGone(err) {
			if derr := a.Sessions.Delete(ctx, id); derr != nil {
				zerolog.Ctx(ctx).Error().Err(derr).Str("connection_id", id).Msg("failed to delete gone session")
			}
			writeError(w, http.StatusGone, "connection is gone")
			return
		}
		a.fail(w, req, http.StatusBadGateway, err, "failed to push message")
		return
	}
	a.Metrics.Event(ctx, voxcli.MessageHandledMetric, voxcli.Operation("admin-push"))
	w.WriteHeader(http.StatusAccepted)
}

func (a *SessionAPI) fail(w http.ResponseWriter, req *http.Request, status int, err error, msg string) {
	zerolog.Ctx(req.Context()).Error().Err(err).Str("path", req.URL.Path).Msg(msg)
	a.Metrics.Event(req.Context(), voxcli.HandlerFailedMetric, voxcli.Operation("admin"))
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
