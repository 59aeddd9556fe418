package voxgql

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/graph-gophers/graphql-go"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

//go:embed sessions.gql
var SessionsSchema string

type SessionSource interface {
	List(ctx context.Context) ([]sessiondao.Session, error)
	Get(ctx context.Context, connectionID string) (*sessiondao.Session, error)
	Count(ctx context.Context) (int64, error)
}

type SessionsResolver struct {
	config   BaseConfig
	sessions SessionSource
	Now      func() time.Time
}

func NewSessionsResolver(service voxcli.Service, sessions SessionSource) *SessionsResolver {
	return &SessionsResolver{
		config:   NewConfig(service),
		sessions: sessions,
	}
}

func (r *SessionsResolver) Schema() string      { return SessionsSchema }
func (r *SessionsResolver) Config() *BaseConfig { return &r.config }

func (r *SessionsResolver) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *SessionsResolver) Sessions(ctx context.Context) ([]*SessionResolver, error) {
	sessions, err := r.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	resolvers := make([]*SessionResolver, 0, len(sessions))
	for _, s := range sessions {
		resolvers = append(resolvers, &SessionResolver{session: s, now: now})
	}
	return resolvers, nil
}

func (r *SessionsResolver) Session(ctx context.Context, args struct{ ID graphql.ID }) (*SessionResolver, error) {
	s, err := r.sessions.Get(ctx, string(args.ID))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	return &SessionResolver{session: *s, now: r.now()}, nil
}

func (r *SessionsResolver) SessionCount(ctx context.Context) (int32, error) {
	n, err := r.sessions.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int32(n), nil
}

type SessionResolver struct {
	session sessiondao.Session
	now     time.Time
}

func (s *SessionResolver) ConnectionID() graphql.ID { return graphql.ID(s.session.ConnectionID) }
func (s *SessionResolver) CreatedAt() string        { return s.session.CreatedAt }
func (s *SessionResolver) Expired() bool            { return s.session.Expired(s.now) }

func (s *SessionResolver) Endpoint() *string {
	if s.session.Endpoint == "" {
		return nil
	}
	return &s.session.Endpoint
}

func (s *SessionResolver) TTL() *string {
	if s.session.TTL == 0 {
		return nil
	}
	v := strconv.FormatInt(s.session.TTL, 10)
	return &v
}

func (s *SessionResolver) ExpiresAt() *string {
	if s.session.TTL == 0 {
		return nil
	}
	v := time.Unix(s.session.TTL, 0).UTC().Format(time.RFC3339)
	return &v
}

// AgeSeconds is null when created_at cannot be parsed.
func (s *SessionResolver) AgeSeconds() *int32 {
	created, err := s.session.Created()
	if err != nil {
		return nil
	}
	v := int32(s.now.Sub(created) / time.Second)
	return &v
}
