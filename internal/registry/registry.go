// Package registry answers "which shards can take tenants right now".
//
// The answer merges two sources: the provider's library listing (a shard that the
// provider no longer reports is gone, whatever local metadata says) and local shard
// metadata (region, activation flag, creation order). The merged list is cached for a
// TTL. A failed refresh falls back to the last provider listing that was fetched
// successfully, merged with current local metadata, so provider blips do not stop
// placement of new tenants.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/function61/gokit/retry"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/metrics"
	"github.com/zzenonn/vidshard/internal/provider"
	"golang.org/x/sync/singleflight"
)

const (
	freshKey        = "active-shards"
	lastKnownGood   = "active-shards:last-known-good"
	refreshFlightID = "refresh"
)

// ShardStore is the local shard metadata source.
type ShardStore interface {
	List(ctx context.Context) ([]domain.Shard, error)
}

// Registry caches the merged active shard list. It is safe for concurrent use.
type Registry struct {
	provider provider.Provider
	store    ShardStore
	metrics  *metrics.Metrics

	ttl     time.Duration
	retries int

	cache   *cache.Cache
	flights singleflight.Group
	mu      sync.Mutex
	gen     uint64
}

// New creates a registry. retries is the number of extra provider attempts per refresh.
func New(p provider.Provider, store ShardStore, ttl time.Duration, retries int, m *metrics.Metrics) *Registry {
	return &Registry{
		provider: p,
		store:    store,
		metrics:  m,
		ttl:      ttl,
		retries:  retries,
		cache:    cache.New(ttl, 2*ttl),
	}
}

// ListActiveShards returns active shards in creation order.
func (r *Registry) ListActiveShards(ctx context.Context) ([]domain.Shard, error) {
	if cached, found := r.cache.Get(freshKey); found {
		return cloneShards(cached.([]domain.Shard)), nil
	}

	res, err, _ := r.flights.Do(refreshFlightID, func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return cloneShards(res.([]domain.Shard)), nil
}

// Invalidate forces the next call to refresh. The last-known-good list is kept.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.gen++
	r.mu.Unlock()
	r.cache.Delete(freshKey)
}

func (r *Registry) refresh(ctx context.Context) ([]domain.Shard, error) {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	listed, err := r.listProviderShards(ctx)
	if err != nil {
		return r.fallback(ctx, err)
	}

	local, err := r.store.List(ctx)
	if err != nil {
		r.metrics.RegistryRefresh(metrics.RefreshError)
		return nil, err
	}
	shards := Merge(listed, local)

	r.mu.Lock()
	// a concurrent Invalidate means this snapshot may predate an admin change
	if gen == r.gen {
		r.cache.Set(freshKey, shards, r.ttl)
	}
	r.mu.Unlock()
	r.cache.Set(lastKnownGood, listed, cache.NoExpiration)
	r.metrics.RegistryRefresh(metrics.RefreshOK)

	log.WithField("shards", len(shards)).Debug("Shard registry refreshed")
	return shards, nil
}

// fallback merges the last provider listing with current local metadata, so local
// deactivations apply even while the provider is down.
func (r *Registry) fallback(ctx context.Context, cause error) ([]domain.Shard, error) {
	stale, found := r.cache.Get(lastKnownGood)
	if !found {
		r.metrics.RegistryRefresh(metrics.RefreshError)
		return nil, cause
	}

	local, err := r.store.List(ctx)
	if err != nil {
		r.metrics.RegistryRefresh(metrics.RefreshError)
		return nil, err
	}

	log.WithError(cause).Warn("Shard registry refresh failed, serving last known provider listing")
	r.metrics.RegistryRefresh(metrics.RefreshStale)
	return Merge(stale.([]provider.ShardInfo), local), nil
}

func (r *Registry) listProviderShards(ctx context.Context) ([]provider.ShardInfo, error) {
	retryCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var listed []provider.ShardInfo
	var lastErr error
	failures := 0

	err := retry.Retry(retryCtx, func(ctx context.Context) error {
		// out of attempts; Retry notices the cancelled context after this returns
		if retryCtx.Err() != nil {
			return lastErr
		}
		shards, err := r.provider.ListShards(ctx)
		if err != nil {
			lastErr = err
			failures++
			if failures > r.retries {
				cancel()
			}
			return err
		}
		listed = shards
		return nil
	}, retry.DefaultBackoff(), func(err error) {
		if retryCtx.Err() == nil {
			log.WithError(err).Debugf("Listing provider shards failed, attempt %d", failures)
		}
	})
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, apperrors.ProviderError("list shards", err)
	}

	return listed, nil
}

// Merge keeps local shards that are active and still listed by the provider.
// The local region wins; the provider name fills in a missing local name.
func Merge(listed []provider.ShardInfo, local []domain.Shard) []domain.Shard {
	byID := lo.KeyBy(listed, func(s provider.ShardInfo) string { return s.ID })

	merged := lo.FilterMap(local, func(s domain.Shard, _ int) (domain.Shard, bool) {
		info, ok := byID[s.ShardID]
		if !ok || !s.Active {
			return s, false
		}
		if s.Name == "" {
			s.Name = info.Name
		}
		return s, true
	})

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		}
		return merged[i].ShardID < merged[j].ShardID
	})

	return merged
}

func cloneShards(shards []domain.Shard) []domain.Shard {
	out := make([]domain.Shard, len(shards))
	copy(out, shards)
	return out
}
