package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/provider"
)

type fakeProvider struct {
	calls  int32
	listFn func(ctx context.Context) ([]provider.ShardInfo, error)
}

func (f *fakeProvider) ListShards(ctx context.Context) ([]provider.ShardInfo, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.listFn(ctx)
}

func (f *fakeProvider) CreateCollection(ctx context.Context, shardID, name, parentID string) (domain.Collection, error) {
	return domain.Collection{}, errors.New("not implemented")
}

func (f *fakeProvider) ListCollections(ctx context.Context, shardID string) ([]domain.Collection, error) {
	return nil, errors.New("not implemented")
}

type fakeStore struct {
	shards []domain.Shard
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Shard, error) {
	return f.shards, nil
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func listing(ids ...string) func(context.Context) ([]provider.ShardInfo, error) {
	return func(context.Context) ([]provider.ShardInfo, error) {
		out := make([]provider.ShardInfo, 0, len(ids))
		for _, id := range ids {
			out = append(out, provider.ShardInfo{ID: id, Name: "provider-" + id})
		}
		return out, nil
	}
}

func TestMerge(t *testing.T) {
	local := []domain.Shard{
		{ShardID: "late", Region: domain.RegionUS, Active: true, CreatedAt: t0.Add(time.Hour)},
		{ShardID: "early", Name: "Local", Region: domain.RegionEU, Active: true, CreatedAt: t0},
		{ShardID: "off", Region: domain.RegionEU, Active: false, CreatedAt: t0},
		{ShardID: "gone", Region: domain.RegionEU, Active: true, CreatedAt: t0},
	}
	listed := []provider.ShardInfo{
		{ID: "early", Name: "Provider early"},
		{ID: "late", Name: "Provider late"},
		{ID: "off"},
		{ID: "unregistered"},
	}

	merged := Merge(listed, local)
	require.Len(t, merged, 2)
	assert.Equal(t, "early", merged[0].ShardID)
	assert.Equal(t, "Local", merged[0].Name, "local name wins")
	assert.Equal(t, "late", merged[1].ShardID)
	assert.Equal(t, "Provider late", merged[1].Name)
	assert.Equal(t, domain.RegionUS, merged[1].Region)
}

func TestRegistry_CachesWithinTTL(t *testing.T) {
	p := &fakeProvider{listFn: listing("a")}
	store := &fakeStore{shards: []domain.Shard{{ShardID: "a", Active: true, CreatedAt: t0}}}
	r := New(p, store, time.Minute, 0, nil)

	for i := 0; i < 3; i++ {
		shards, err := r.ListActiveShards(context.Background())
		require.NoError(t, err)
		require.Len(t, shards, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))

	r.Invalidate()
	_, err := r.ListActiveShards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
}

func TestRegistry_FallsBackToLastKnownGood(t *testing.T) {
	fail := false
	p := &fakeProvider{}
	p.listFn = func(ctx context.Context) ([]provider.ShardInfo, error) {
		if fail {
			return nil, apperrors.ProviderError("list shards", errors.New("connection refused"))
		}
		return listing("a")(ctx)
	}
	store := &fakeStore{shards: []domain.Shard{{ShardID: "a", Active: true, CreatedAt: t0}}}
	r := New(p, store, time.Minute, 0, nil)

	_, err := r.ListActiveShards(context.Background())
	require.NoError(t, err)

	fail = true
	r.Invalidate()
	shards, err := r.ListActiveShards(context.Background())
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, "a", shards[0].ShardID)
}

func TestRegistry_FailsWithoutLastKnownGood(t *testing.T) {
	p := &fakeProvider{listFn: func(context.Context) ([]provider.ShardInfo, error) {
		return nil, apperrors.ProviderError("list shards", errors.New("timeout"))
	}}
	r := New(p, &fakeStore{}, time.Minute, 0, nil)

	_, err := r.ListActiveShards(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls), "no retries configured")
}

func TestRegistry_RetriesTransientFailure(t *testing.T) {
	p := &fakeProvider{}
	p.listFn = func(ctx context.Context) ([]provider.ShardInfo, error) {
		if atomic.LoadInt32(&p.calls) == 1 {
			return nil, apperrors.ProviderError("list shards", errors.New("reset"))
		}
		return listing("a")(ctx)
	}
	store := &fakeStore{shards: []domain.Shard{{ShardID: "a", Active: true, CreatedAt: t0}}}
	r := New(p, store, time.Minute, 1, nil)

	shards, err := r.ListActiveShards(context.Background())
	require.NoError(t, err)
	assert.Len(t, shards, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
}

func TestRegistry_ConcurrentRefreshIsCoalesced(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{}
	p.listFn = func(ctx context.Context) ([]provider.ShardInfo, error) {
		<-release
		return listing("a")(ctx)
	}
	store := &fakeStore{shards: []domain.Shard{{ShardID: "a", Active: true, CreatedAt: t0}}}
	r := New(p, store, time.Minute, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shards, err := r.ListActiveShards(context.Background())
			assert.NoError(t, err)
			assert.Len(t, shards, 1)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestRegistry_OutageHonoursLocalDeactivation(t *testing.T) {
	fail := false
	p := &fakeProvider{}
	p.listFn = func(ctx context.Context) ([]provider.ShardInfo, error) {
		if fail {
			return nil, apperrors.ProviderError("list shards", errors.New("connection refused"))
		}
		return listing("off", "on")(ctx)
	}
	store := &fakeStore{shards: []domain.Shard{
		{ShardID: "off", Active: true, CreatedAt: t0},
		{ShardID: "on", Active: true, CreatedAt: t0.Add(time.Hour)},
	}}
	r := New(p, store, time.Minute, 0, nil)

	shards, err := r.ListActiveShards(context.Background())
	require.NoError(t, err)
	require.Len(t, shards, 2)

	store.shards[0].Active = false
	r.Invalidate()
	fail = true

	shards, err = r.ListActiveShards(context.Background())
	require.NoError(t, err)
	require.Len(t, shards, 1, "deactivated shard must not come back from the stale listing")
	assert.Equal(t, "on", shards[0].ShardID)
}

func TestRegistry_OutageStillDropsUnlistedShards(t *testing.T) {
	fail := false
	p := &fakeProvider{}
	p.listFn = func(ctx context.Context) ([]provider.ShardInfo, error) {
		if fail {
			return nil, apperrors.ProviderError("list shards", errors.New("connection refused"))
		}
		return listing("a")(ctx)
	}
	store := &fakeStore{shards: []domain.Shard{{ShardID: "a", Active: true, CreatedAt: t0}}}
	r := New(p, store, time.Minute, 0, nil)

	_, err := r.ListActiveShards(context.Background())
	require.NoError(t, err)

	// registered after the last good listing, so the provider never confirmed it
	store.shards = append(store.shards, domain.Shard{ShardID: "new", Active: true, CreatedAt: t0})
	r.Invalidate()
	fail = true

	shards, err := r.ListActiveShards(context.Background())
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, "a", shards[0].ShardID)
}

func TestRegistry_RetryBudget(t *testing.T) {
	cause := errors.New("connection reset")
	p := &fakeProvider{listFn: func(context.Context) ([]provider.ShardInfo, error) {
		return nil, apperrors.ProviderError("list shards", cause)
	}}
	r := New(p, &fakeStore{}, time.Minute, 2, nil)

	_, err := r.ListActiveShards(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.calls), "one attempt plus two retries")
}
