package voxws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

// Disconnect notifications are best effort, so the table collects sessions
// whose connection is long gone. The Sweeper finds and removes them.

// SessionLister lists and removes sessions.
type SessionLister interface {
	List(ctx context.Context) ([]sessiondao.Session, error)
	Delete(ctx context.Context, connectionID string) error
}

// Prober checks whether a connection is still open.
type Prober interface {
	Probe(ctx context.Context, endpoint, connectionID string) error
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Stale   int `json:"stale"`
	Deleted int `json:"deleted"`
	Kept    int `json:"kept"`
	Failed  int `json:"failed"`
}

// Sweeper removes sessions whose connections no longer exist.
type Sweeper struct {
	Sessions    SessionLister
	Probe       Prober
	Logger      zerolog.Logger
	Metrics     voxcli.Metrics
	MaxAge      time.Duration // sessions younger than this are not probed (default 2 hours)
	Concurrency int           // max concurrent probes (default 16)
	Dry         bool
	Now         func() time.Time
}

type sweepVerdict int

const (
	verdictAlive sweepVerdict = iota
	verdictStale
	verdictUnknown
)

// Sweep scans the table once.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	sessions, err := s.Sessions.List(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing sessions: %w", err)
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionTTL
	}
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 16
	}

	var (
		mu     sync.Mutex
		result = SweepResult{Scanned: len(sessions)}
	)
	tally := func(f func(r *SweepResult)) {
		mu.Lock()
		defer mu.Unlock()
		f(&result)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, session := range sessions {
		session := session
		if created, err := session.Created(); err == nil && now.Sub(created) < maxAge {
			tally(func(r *SweepResult) { r.Kept++ })
			continue
		}

		g.Go(func() error {
			logger := s.Logger.With().Str("connection_id", session.ConnectionID).Logger()

			switch s.check(gctx, logger, session) {
			case verdictAlive, verdictUnknown:
				tally(func(r *SweepResult) { r.Kept++ })
				return nil
			}

			tally(func(r *SweepResult) { r.Stale++ })
			if s.Dry {
				logger.Info().Str("created_at", session.CreatedAt).Msg("dry run, would delete stale session")
				return nil
			}
			if err := s.Sessions.Delete(gctx, session.ConnectionID); err != nil {
				logger.Error().Err(err).Msg("failed to delete stale session")
				tally(func(r *SweepResult) { r.Failed++ })
				return nil
			}
			logger.Info().Str("created_at", session.CreatedAt).Msg("deleted stale session")
			tally(func(r *SweepResult) { r.Deleted++ })
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	s.Metrics.Gauge(ctx, voxcli.ActiveSessionsMetric, float64(result.Scanned-result.Deleted), voxcli.Operation("sweep"))
	s.Metrics.Gauge(ctx, voxcli.StaleSessionsMetric, float64(result.Stale), voxcli.Operation("sweep"))
	return result, nil
}

func (s *Sweeper) check(ctx context.Context, logger zerolog.Logger, session sessiondao.Session) sweepVerdict {
	if session.Endpoint == "" {
		return verdictStale
	}
	err := s.Probe.Probe(ctx, session.Endpoint, session.ConnectionID)
	switch {
	case err == nil:
		return verdictAlive
	case IsGone(err):
		return verdictStale
	default:
		logger.Warn().Err(err).Msg("unable to probe connection, keeping session")
		return verdictUnknown
	}
}
