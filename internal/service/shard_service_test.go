package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/provider"
)

func TestShardService_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.libraries = []provider.ShardInfo{{ID: "lib-new", Name: "New library"}}
	svc := NewShardService(f.shards, f.registry, f.estimator, f.provider)

	// warm the registry cache with the empty list
	before, err := f.registry.ListActiveShards(ctx)
	require.NoError(t, err)
	assert.Empty(t, before)

	shard, err := svc.Register(ctx, "lib-new", domain.RegionAsia)
	require.NoError(t, err)
	assert.Equal(t, "New library", shard.Name)
	assert.True(t, shard.Active)

	after, err := f.registry.ListActiveShards(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1, "registration must invalidate the registry")
	assert.Equal(t, domain.RegionAsia, after[0].Region)

	_, err = svc.Register(ctx, "lib-new", domain.RegionAsia)
	assert.ErrorIs(t, err, apperrors.ErrShardExists)

	_, err = svc.Register(ctx, "lib-unknown", domain.RegionEU)
	assert.ErrorIs(t, err, apperrors.ErrShardNotFound)

	_, err = svc.Register(ctx, "lib-new", "")
	assert.ErrorIs(t, err, apperrors.ErrMissingRequiredFields)
}

func TestShardService_DeactivateRemovesFromRegistry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addShard(t, "lib-1", domain.RegionEU, 0)
	svc := NewShardService(f.shards, f.registry, f.estimator, f.provider)

	shards, err := f.registry.ListActiveShards(ctx)
	require.NoError(t, err)
	require.Len(t, shards, 1)

	require.NoError(t, svc.SetActive(ctx, "lib-1", false))
	shards, err = f.registry.ListActiveShards(ctx)
	require.NoError(t, err)
	assert.Empty(t, shards)

	require.NoError(t, svc.SetHealth(ctx, "lib-1", domain.HealthDegraded))
	assert.ErrorIs(t, svc.SetActive(ctx, "missing", true), apperrors.ErrShardNotFound)
}

func TestShardService_RemoveRefusesLoadedShard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addShard(t, "lib-1", domain.RegionEU, 0)
	f.addShard(t, "lib-2", domain.RegionEU, 1)
	svc := NewShardService(f.shards, f.registry, f.estimator, f.provider)

	_, _, err := f.assignments.CreateIfAbsent(ctx, "t1", "lib-1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, "lib-1"), apperrors.ErrShardInUse)
	require.NoError(t, svc.Remove(ctx, "lib-2"))
	assert.ErrorIs(t, svc.Remove(ctx, "lib-2"), apperrors.ErrShardNotFound)

	loads, err := svc.Loads(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, "lib-1", loads[0].Shard.ShardID)
	assert.Equal(t, 1, loads[0].Load)
}
