package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"masterboxer.com/vibe-feed/models"
)

func setupTestCache(t *testing.T, hooks Hooks) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, time.Minute, nil, hooks), mr
}

func snapshot() []models.Post {
	return []models.Post{{
		ID:        "p1",
		Author:    models.UserSummary{ID: "u1", DisplayName: "Ana"},
		VisitDate: "2025-03-01T18:00:00Z",
		RSVPs:     map[string]models.RSVPStatus{"u2": models.RSVPGoing},
		Comments:  []models.Comment{},
		Type:      models.PostTypeRegular,
	}}
}

func TestPostsLoadsOnceThenHits(t *testing.T) {
	var hits, misses int32
	c, mr := setupTestCache(t, Hooks{
		OnHit:  func(string) { atomic.AddInt32(&hits, 1) },
		OnMiss: func(string) { atomic.AddInt32(&misses, 1) },
	})

	var loads int32
	load := func(context.Context) ([]models.Post, error) {
		atomic.AddInt32(&loads, 1)
		return snapshot(), nil
	}

	first, err := c.Posts(context.Background(), load)
	require.NoError(t, err)
	second, err := c.Posts(context.Background(), load)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, models.RSVPGoing, second[0].RSVPs["u2"])
	require.EqualValues(t, 1, loads)
	require.EqualValues(t, 1, hits)
	require.EqualValues(t, 1, misses)
	require.True(t, mr.Exists(SnapshotKey))
	require.Greater(t, mr.TTL(SnapshotKey), time.Duration(0))
}

func TestPostsExpiresWithTTL(t *testing.T) {
	c, mr := setupTestCache(t, Hooks{})
	var loads int32
	load := func(context.Context) ([]models.Post, error) {
		atomic.AddInt32(&loads, 1)
		return snapshot(), nil
	}

	_, err := c.Posts(context.Background(), load)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.Posts(context.Background(), load)
	require.NoError(t, err)
	require.EqualValues(t, 2, loads)
}

func TestInvalidateForcesReload(t *testing.T) {
	c, mr := setupTestCache(t, Hooks{})
	_, err := c.Posts(context.Background(), func(context.Context) ([]models.Post, error) { return snapshot(), nil })
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(context.Background()))
	require.False(t, mr.Exists(SnapshotKey))
	gen, err := mr.Get(genKey(SnapshotKey))
	require.NoError(t, err)
	require.Equal(t, "1", gen)
}

func TestInvalidateDuringLoadDiscardsResult(t *testing.T) {
	c, mr := setupTestCache(t, Hooks{})
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []models.Post, 1)

	go func() {
		posts, _ := c.Posts(ctx, func(context.Context) ([]models.Post, error) {
			close(started)
			<-release
			return snapshot(), nil
		})
		done <- posts
	}()
	<-started
	require.NoError(t, c.Invalidate(ctx))
	close(release)

	require.Len(t, <-done, 1)
	require.False(t, mr.Exists(SnapshotKey))

	fresh := append(snapshot(), models.Post{ID: "p2", VisitDate: "2025-03-01T19:00:00Z"})
	posts, err := c.Posts(ctx, func(context.Context) ([]models.Post, error) { return fresh, nil })
	require.NoError(t, err)
	require.Len(t, posts, 2)

	cached, err := c.Posts(ctx, func(context.Context) ([]models.Post, error) { return nil, errors.New("unexpected load") })
	require.NoError(t, err)
	require.Len(t, cached, 2)
}

func TestCancelledCallerDoesNotAbortSharedLoad(t *testing.T) {
	c, mr := setupTestCache(t, Hooks{})
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	errc := make(chan error, 1)

	go func() {
		_, err := c.Posts(ctx, func(loadCtx context.Context) ([]models.Post, error) {
			close(started)
			<-release
			if err := loadCtx.Err(); err != nil {
				return nil, err
			}
			return snapshot(), nil
		})
		errc <- err
	}()
	<-started
	cancel()
	close(release)

	require.NoError(t, <-errc)
	require.True(t, mr.Exists(SnapshotKey))
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	c, _ := setupTestCache(t, Hooks{})
	var loads int32
	release := make(chan struct{})
	load := func(context.Context) ([]models.Post, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return snapshot(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Posts(context.Background(), load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&loads), int32(2))
}

func TestRedisFailureFallsBackToLoader(t *testing.T) {
	var failures int32
	c, mr := setupTestCache(t, Hooks{OnError: func(string) { atomic.AddInt32(&failures, 1) }})
	mr.Close()

	posts, err := c.Posts(context.Background(), func(context.Context) ([]models.Post, error) { return snapshot(), nil })
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Positive(t, atomic.LoadInt32(&failures))
}

func TestLoaderErrorIsReturned(t *testing.T) {
	c, mr := setupTestCache(t, Hooks{})
	boom := errors.New("db down")
	_, err := c.Roster(context.Background(), func(context.Context) ([]models.UserSummary, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists(RosterKey))
}

func TestNilClientBypassesCache(t *testing.T) {
	c := New(nil, time.Minute, nil, Hooks{})
	var loads int32
	load := func(context.Context) ([]models.Post, error) {
		atomic.AddInt32(&loads, 1)
		return snapshot(), nil
	}
	_, _ = c.Posts(context.Background(), load)
	_, _ = c.Posts(context.Background(), load)
	require.EqualValues(t, 2, loads)
	require.NoError(t, c.Invalidate(context.Background()))
}
