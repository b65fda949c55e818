package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/placement"
	"github.com/zzenonn/vidshard/internal/provider"
)

// ShardService handles administrative shard changes. Every mutation invalidates the
// registry so the next placement sees it.
type ShardService struct {
	shards    ShardRepository
	registry  ShardRegistry
	estimator placement.LoadEstimator
	provider  provider.Provider
}

// NewShardService creates a new ShardService instance
func NewShardService(shards ShardRepository, registry ShardRegistry, estimator placement.LoadEstimator, p provider.Provider) *ShardService {
	return &ShardService{
		shards:    shards,
		registry:  registry,
		estimator: estimator,
		provider:  p,
	}
}

// Register records a provider library as a shard. The library must exist in the provider.
func (s *ShardService) Register(ctx context.Context, shardID string, region domain.Region) (domain.Shard, error) {
	if shardID == "" || region == "" {
		return domain.Shard{}, apperrors.ErrMissingRequiredFields
	}

	listed, err := s.provider.ListShards(ctx)
	if err != nil {
		return domain.Shard{}, err
	}
	info, ok := lo.Find(listed, func(i provider.ShardInfo) bool { return i.ID == shardID })
	if !ok {
		return domain.Shard{}, fmt.Errorf("%w: provider has no library %s", apperrors.ErrShardNotFound, shardID)
	}

	shard, err := s.shards.Create(ctx, domain.Shard{
		ShardID:      shardID,
		Name:         info.Name,
		Region:       region,
		Active:       true,
		HealthStatus: domain.HealthUnknown,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.Shard{}, err
	}

	s.registry.Invalidate()
	log.WithFields(log.Fields{"shard_id": shardID, "region": region}).Info("Shard registered")
	return shard, nil
}

func (s *ShardService) SetActive(ctx context.Context, shardID string, active bool) error {
	if err := s.shards.SetActive(ctx, shardID, active); err != nil {
		return err
	}
	s.registry.Invalidate()
	log.WithFields(log.Fields{"shard_id": shardID, "active": active}).Info("Shard activation changed")
	return nil
}

func (s *ShardService) SetHealth(ctx context.Context, shardID string, status domain.HealthStatus) error {
	if err := s.shards.SetHealth(ctx, shardID, status); err != nil {
		return err
	}
	s.registry.Invalidate()
	return nil
}

// Remove deletes shard metadata. Shards that still hold active tenants are refused.
func (s *ShardService) Remove(ctx context.Context, shardID string) error {
	if _, err := s.shards.Get(ctx, shardID); err != nil {
		return err
	}

	load, err := s.estimator.LoadOf(ctx, shardID)
	if err != nil {
		return err
	}
	if load > 0 {
		return fmt.Errorf("%w: %s has %d", apperrors.ErrShardInUse, shardID, load)
	}

	if err := s.shards.Delete(ctx, shardID); err != nil {
		return err
	}
	s.registry.Invalidate()
	log.WithField("shard_id", shardID).Info("Shard removed")
	return nil
}

// Loads returns every locally known shard with its current load.
func (s *ShardService) Loads(ctx context.Context) ([]domain.ShardLoad, error) {
	shards, err := s.shards.List(ctx)
	if err != nil {
		return nil, err
	}

	loads := make([]domain.ShardLoad, 0, len(shards))
	for _, shard := range shards {
		load, err := s.estimator.LoadOf(ctx, shard.ShardID)
		if err != nil {
			return nil, err
		}
		loads = append(loads, domain.ShardLoad{Shard: shard, Load: load})
	}
	return loads, nil
}
