package voxws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/rs/zerolog"
	"github.com/tj/assert"

	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

type fakeProber struct {
	mu     sync.Mutex
	errs   map[string]error
	probed []string
}

func (f *fakeProber) Probe(_ context.Context, _, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, connectionID)
	return f.errs[connectionID]
}

func session(id string, age time.Duration, endpoint string) sessiondao.Session {
	return sessiondao.NewSession(id, endpoint, fixedNow.Add(-age), 0)
}

func TestSweeper(t *testing.T) {
	gone := awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "gone", nil)

	newStore := func() *memoryStore {
		return newMemoryStore(
			session("fresh", time.Minute, testEndpoint),
			session("alive", 3*time.Hour, testEndpoint),
			session("gone", 3*time.Hour, testEndpoint),
			session("flaky", 3*time.Hour, testEndpoint),
			session("no-endpoint", 3*time.Hour, ""),
			sessiondao.Session{ConnectionID: "bad-date", CreatedAt: "yesterday", Endpoint: testEndpoint},
		)
	}
	newProber := func() *fakeProber {
		return &fakeProber{errs: map[string]error{
			"gone":     gone,
			"flaky":    errors.New("throttled"),
			"bad-date": gone,
		}}
	}

	t.Run("deletes stale sessions", func(t *testing.T) {
		store := newStore()
		prober := newProber()
		s := &Sweeper{
			Sessions: store,
			Probe:    prober,
			Logger:   zerolog.Nop(),
			Now:      func() time.Time { return fixedNow },
		}

		result, err := s.Sweep(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, SweepResult{Scanned: 6, Stale: 3, Deleted: 3, Kept: 3}, result)

		assert.True(t, store.has("fresh"))
		assert.True(t, store.has("alive"))
		assert.True(t, store.has("flaky"))
		assert.False(t, store.has("gone"))
		assert.False(t, store.has("no-endpoint"))
		assert.False(t, store.has("bad-date"))
		assert.NotContains(t, prober.probed, "fresh")
		assert.NotContains(t, prober.probed, "no-endpoint")
	})

	t.Run("dry run deletes nothing", func(t *testing.T) {
		store := newStore()
		s := &Sweeper{
			Sessions: store,
			Probe:    newProber(),
			Logger:   zerolog.Nop(),
			Dry:      true,
			Now:      func() time.Time { return fixedNow },
		}

		result, err := s.Sweep(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, SweepResult{Scanned: 6, Stale: 3, Kept: 3}, result)
		assert.Empty(t, store.deletes)
	})

	t.Run("max age", func(t *testing.T) {
		store := newStore()
		s := &Sweeper{
			Sessions: store,
			Probe:    newProber(),
			Logger:   zerolog.Nop(),
			MaxAge:   4 * time.Hour,
			Now:      func() time.Time { return fixedNow },
		}

		result, err := s.Sweep(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, SweepResult{Scanned: 6, Stale: 1, Deleted: 1, Kept: 5}, result)
		assert.False(t, store.has("bad-date"))
	})

	t.Run("delete failures are counted", func(t *testing.T) {
		store := newStore()
		store.deleteErr = errors.New("boom")
		s := &Sweeper{
			Sessions:    store,
			Probe:       newProber(),
			Logger:      zerolog.Nop(),
			Concurrency: 1,
			Now:         func() time.Time { return fixedNow },
		}

		result, err := s.Sweep(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, SweepResult{Scanned: 6, Stale: 3, Failed: 3, Kept: 3}, result)
	})

	t.Run("list failure", func(t *testing.T) {
		store := newStore()
		store.listErr = errors.New("boom")
		s := &Sweeper{Sessions: store, Probe: newProber(), Logger: zerolog.Nop()}

		_, err := s.Sweep(context.Background())
		assert.Error(t, err)
	})
}
