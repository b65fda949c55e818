package placement

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

// LeastLoadedPlacer implements load-aware placement
type LeastLoadedPlacer struct {
	estimator LoadEstimator
}

// NewLeastLoadedPlacer creates a new least-loaded placer
func NewLeastLoadedPlacer(estimator LoadEstimator) *LeastLoadedPlacer {
	return &LeastLoadedPlacer{estimator: estimator}
}

// Rank orders candidates by ascending load. Inactive shards are never eligible. A
// region hint restricts the set when at least one candidate matches it.
func (p *LeastLoadedPlacer) Rank(ctx context.Context, candidates []domain.Shard, hint domain.Region) ([]domain.Shard, error) {
	eligible := lo.Filter(candidates, func(s domain.Shard, _ int) bool { return s.Active })
	if len(eligible) == 0 {
		return nil, apperrors.ErrNoAvailableShard
	}

	if hint != "" {
		inRegion := lo.Filter(eligible, func(s domain.Shard, _ int) bool { return s.Region == hint })
		if len(inRegion) > 0 {
			eligible = inRegion
		}
	}

	loads := make([]domain.ShardLoad, 0, len(eligible))
	for _, s := range eligible {
		load, err := p.estimator.LoadOf(ctx, s.ShardID)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate load of shard %s: %w", s.ShardID, err)
		}
		loads = append(loads, domain.ShardLoad{Shard: s, Load: load})
	}

	sort.SliceStable(loads, func(i, j int) bool {
		a, b := loads[i], loads[j]
		if a.Load != b.Load {
			return a.Load < b.Load
		}
		if !a.Shard.CreatedAt.Equal(b.Shard.CreatedAt) {
			return a.Shard.CreatedAt.Before(b.Shard.CreatedAt)
		}
		return a.Shard.ShardID < b.Shard.ShardID
	})

	return lo.Map(loads, func(l domain.ShardLoad, _ int) domain.Shard { return l.Shard }), nil
}

// Place selects the least-loaded shard
func (p *LeastLoadedPlacer) Place(ctx context.Context, candidates []domain.Shard, hint domain.Region) (domain.Shard, error) {
	ranked, err := p.Rank(ctx, candidates, hint)
	if err != nil {
		return domain.Shard{}, err
	}
	return ranked[0], nil
}
