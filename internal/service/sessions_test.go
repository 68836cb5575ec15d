package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nitro/iiifviewer/internal/domain"
)

type clock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

func newMemoryStorage(t *testing.T, ttl time.Duration) (*MemoryStorage, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	storage := &MemoryStorage{TTL: ttl, now: c.Now}
	require.NoError(t, storage.Init())
	return storage, c
}

func newTestSessions(t *testing.T, storage sessionStorage) *Sessions {
	t.Helper()
	v, _ := newTestViewer(t)
	sessions := &Sessions{Storage: storage, Viewer: v}
	require.NoError(t, sessions.Init())
	return sessions
}

func readAll(t *testing.T, reader io.ReadCloser) string {
	t.Helper()
	defer reader.Close()
	payload, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(payload)
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	storage, c := newMemoryStorage(t, time.Minute)
	ctx := context.Background()

	reader, err := storage.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, reader)

	require.NoError(t, storage.Put(ctx, "key", strings.NewReader("payload")))
	c.Add(40 * time.Second)
	reader, err = storage.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "payload", readAll(t, reader))

	// The read extended the expiration.
	c.Add(40 * time.Second)
	reader, err = storage.Get(ctx, "key")
	require.NoError(t, err)
	require.NotNil(t, reader)
	require.NoError(t, reader.Close())

	c.Add(2 * time.Minute)
	reader, err = storage.Get(ctx, "key")
	require.NoError(t, err)
	require.Nil(t, reader)
	require.Empty(t, storage.entries)
}

func TestMemoryStoragePurge(t *testing.T) {
	t.Parallel()

	storage, c := newMemoryStorage(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, "old", strings.NewReader("1")))
	c.Add(2 * time.Minute)
	require.NoError(t, storage.Put(ctx, "new", strings.NewReader("2")))
	require.Len(t, storage.entries, 1)
	require.Contains(t, storage.entries, "new")

	require.EqualError(t, (&MemoryStorage{}).Init(), "internal/service/MemoryStorage.TTL must be positive")
}

func TestSessionsInit(t *testing.T) {
	t.Parallel()

	storage, _ := newMemoryStorage(t, time.Minute)
	require.EqualError(t, (&Sessions{}).Init(), "internal/service/Sessions.Storage can't be nil")
	require.EqualError(t, (&Sessions{Storage: storage}).Init(), "internal/service/Sessions.Viewer can't be nil")
}

func TestSessions(t *testing.T) {
	t.Parallel()

	storage, c := newMemoryStorage(t, time.Hour)
	sessions := newTestSessions(t, storage)
	ctx := context.Background()

	created, err := sessions.Create(ctx, fixtureManifestURL, "fr")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	loaded, err := sessions.Load(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, loaded.ID)
	require.Equal(t, "fr", loaded.Language)
	require.Equal(t, fixtureManifestURL, loaded.ManifestURL)
	require.Equal(t, created.Document, loaded.Document)
	require.NotNil(t, loaded.Regions)

	updated, err := sessions.Update(ctx, created.ID, func(s *Session) error {
		_, err := sessions.Viewer.SaveRegion(s, 0, domain.Rect{X: 100, Y: 50, W: 200, H: 100}, "", RenderState{})
		return err
	})
	require.NoError(t, err)
	require.Len(t, updated.Regions.List(0), 1)

	_, err = sessions.Update(ctx, created.ID, func(s *Session) error {
		s.Regions.Record(0, [4]float64{1, 1, 1, 1}, "")
		return errors.New("rejected")
	})
	require.EqualError(t, err, "rejected")

	loaded, err = sessions.Load(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Regions.List(0), 1)

	_, err = sessions.Load(ctx, "unknown")
	require.ErrorIs(t, err, ErrNotFound)

	c.Add(2 * time.Hour)
	_, err = sessions.Load(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsConcurrentUpdate(t *testing.T) {
	t.Parallel()

	storage, _ := newMemoryStorage(t, time.Hour)
	sessions := newTestSessions(t, storage)
	ctx := context.Background()

	created, err := sessions.Create(ctx, fixtureManifestURL, "en")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sessions.Update(ctx, created.ID, func(s *Session) error {
				s.Regions.Record(0, [4]float64{10, 10, 20, 20}, "")
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := sessions.Load(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Regions.List(0), 20)
}

func TestSessionsCollection(t *testing.T) {
	t.Parallel()

	storage, _ := newMemoryStorage(t, time.Hour)
	sessions := newTestSessions(t, storage)
	ctx := context.Background()

	created, err := sessions.Create(ctx, fixtureCollectionURL, "en")
	require.NoError(t, err)

	loaded, err := sessions.Load(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, loaded.Pending())

	updated, err := sessions.Update(ctx, created.ID, func(s *Session) error {
		return sessions.Viewer.SelectMember(ctx, s, 0)
	})
	require.NoError(t, err)
	require.False(t, updated.Pending())

	loaded, err = sessions.Load(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, loaded.Pending())
	require.Equal(t, fixtureManifestURL, loaded.ManifestURL)
	require.Equal(t, fixtureCollectionURL, loaded.URL)
}
