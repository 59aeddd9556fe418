package voxws

import (
	"context"
	"sort"
	"sync"

	"github.com/voxdemo/vox-go-utils/vox-ws/publish"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

type memoryStore struct {
	mu        sync.Mutex
	sessions  map[string]sessiondao.Session
	putErr    error
	deleteErr error
	listErr   error
	deletes   []string
}

func newMemoryStore(sessions ...sessiondao.Session) *memoryStore {
	m := &memoryStore{sessions: map[string]sessiondao.Session{}}
	for _, s := range sessions {
		m.sessions[s.ConnectionID] = s
	}
	return m
}

func (m *memoryStore) Put(_ context.Context, s sessiondao.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.sessions[s.ConnectionID] = s
	return nil
}

func (m *memoryStore) Delete(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, connectionID)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.sessions, connectionID)
	return nil
}

func (m *memoryStore) List(_ context.Context) ([]sessiondao.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []sessiondao.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out, nil
}

func (m *memoryStore) has(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[connectionID]
	return ok
}

type post struct {
	Endpoint     string
	ConnectionID string
	Data         string
}

type recordingPoster struct {
	mu    sync.Mutex
	posts []post
	err   error
}

func (r *recordingPoster) Post(_ context.Context, endpoint, connectionID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, post{Endpoint: endpoint, ConnectionID: connectionID, Data: string(data)})
	return r.err
}

type sentEvent struct {
	Topic string
	Event publish.SessionEvent
}

type recordingPublisher struct {
	sent []sentEvent
	err  error
}

func (r *recordingPublisher) Send(_ context.Context, topic string, event publish.SessionEvent) error {
	r.sent = append(r.sent, sentEvent{Topic: topic, Event: event})
	return r.err
}
