package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/function61/gokit/retry"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/config"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/metrics"
	"github.com/zzenonn/vidshard/internal/placement"
	"github.com/zzenonn/vidshard/internal/provider"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRootLease = 2 * time.Minute
	releaseTimeout   = 10 * time.Second
)

var errRootReserved = errors.New("root collection is being created by another worker")

// Provisioner places tenants on shards and bootstraps their root collection.
//
// A tenant moves through unplaced, selecting, assigning, bootstrapping and placed.
// Every state after assigning is persisted (the assignment row, then the root mirror
// row), so a failed call resumes where it stopped instead of starting over.
type Provisioner struct {
	assignments AssignmentRepository
	roots       RootRepository
	shards      ShardRepository
	registry    ShardRegistry
	placer      placement.Placer
	provider    provider.Provider
	cfg         config.ProvisionerConfig
	metrics     *metrics.Metrics

	flights singleflight.Group
}

// NewProvisioner creates a new Provisioner instance
func NewProvisioner(
	assignments AssignmentRepository,
	roots RootRepository,
	shards ShardRepository,
	registry ShardRegistry,
	placer placement.Placer,
	p provider.Provider,
	cfg config.ProvisionerConfig,
	m *metrics.Metrics,
) *Provisioner {
	if cfg.RootLease <= 0 {
		cfg.RootLease = defaultRootLease
	}
	return &Provisioner{
		assignments: assignments,
		roots:       roots,
		shards:      shards,
		registry:    registry,
		placer:      placer,
		provider:    p,
		cfg:         cfg,
		metrics:     m,
	}
}

// ProvisionTenant returns the tenant's placement, creating it on first touch.
// Concurrent calls for one tenant in this process share a single run. A caller whose
// ctx ends gets ctx.Err() while the run continues for the others.
func (p *Provisioner) ProvisionTenant(ctx context.Context, tenantID string, hint domain.Region) (domain.PlacementDescriptor, error) {
	if tenantID == "" {
		return domain.PlacementDescriptor{}, apperrors.ErrMissingRequiredFields
	}

	results := p.flights.DoChan(tenantID, func() (interface{}, error) {
		// the run is shared, so no single caller's cancellation may abort it
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.flightTimeout())
		defer cancel()
		return p.provision(flightCtx, tenantID, hint)
	})

	select {
	case <-ctx.Done():
		return domain.PlacementDescriptor{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return domain.PlacementDescriptor{}, res.Err
		}
		return res.Val.(domain.PlacementDescriptor), nil
	}
}

// flightTimeout covers one lease of waiting for another worker plus our own bootstrap.
func (p *Provisioner) flightTimeout() time.Duration {
	return 2 * p.cfg.RootLease
}

func (p *Provisioner) provision(ctx context.Context, tenantID string, hint domain.Region) (domain.PlacementDescriptor, error) {
	logger := log.WithField("tenant_id", tenantID)

	existing, err := p.assignments.GetActive(ctx, tenantID)
	if err != nil {
		return domain.PlacementDescriptor{}, err
	}
	if existing != nil {
		shard, err := p.lookupShard(ctx, existing.ShardID, nil)
		if err != nil {
			return domain.PlacementDescriptor{}, err
		}
		return p.placed(ctx, tenantID, shard, metrics.OutcomeExisting)
	}

	logger.Debug("Tenant unplaced, selecting shard")
	candidates, err := p.registry.ListActiveShards(ctx)
	if err != nil {
		return domain.PlacementDescriptor{}, err
	}
	chosen, err := p.selectShard(ctx, candidates, hint)
	if err != nil {
		return domain.PlacementDescriptor{}, err
	}

	logger.WithField("shard_id", chosen.ShardID).Debug("Shard selected, assigning")
	assignment, created, err := p.assignments.CreateIfAbsent(ctx, tenantID, chosen.ShardID)
	if err != nil {
		return domain.PlacementDescriptor{}, fmt.Errorf("failed to assign tenant %s: %w", tenantID, err)
	}

	outcome := metrics.OutcomeCreated
	shard := chosen
	if !created {
		outcome = metrics.OutcomeAdopted
		logger.WithFields(log.Fields{
			"shard_id":  assignment.ShardID,
			"candidate": chosen.ShardID,
		}).Info("Tenant was assigned concurrently, adopting existing assignment")

		shard, err = p.lookupShard(ctx, assignment.ShardID, candidates)
		if err != nil {
			return domain.PlacementDescriptor{}, err
		}
	} else {
		logger.WithField("shard_id", shard.ShardID).Info("Tenant assigned")
	}

	return p.placed(ctx, tenantID, shard, outcome)
}

// placed runs the bootstrap check and builds the descriptor.
func (p *Provisioner) placed(ctx context.Context, tenantID string, shard domain.Shard, outcome string) (domain.PlacementDescriptor, error) {
	rootID, err := p.ensureRoot(ctx, tenantID, shard.ShardID)
	if err != nil {
		return domain.PlacementDescriptor{}, err
	}

	p.metrics.Placement(outcome)
	return domain.PlacementDescriptor{
		ShardID:          shard.ShardID,
		RootCollectionID: rootID,
		Region:           shard.Region,
	}, nil
}

// selectShard ranks candidates and, when probing is enabled, skips shards the provider
// cannot answer for within its timeout.
func (p *Provisioner) selectShard(ctx context.Context, candidates []domain.Shard, hint domain.Region) (domain.Shard, error) {
	ranked, err := p.placer.Rank(ctx, candidates, hint)
	if err != nil {
		return domain.Shard{}, err
	}
	if !p.cfg.ProbeCandidates {
		return ranked[0], nil
	}

	var lastErr error
	for _, shard := range ranked {
		if _, err := p.provider.ListCollections(ctx, shard.ShardID); err != nil {
			if !errors.Is(err, apperrors.ErrProviderUnavailable) {
				return domain.Shard{}, err
			}
			log.WithError(err).WithField("shard_id", shard.ShardID).Warn("Shard did not answer, trying next candidate")
			lastErr = err
			continue
		}
		return shard, nil
	}

	return domain.Shard{}, lastErr
}

func (p *Provisioner) lookupShard(ctx context.Context, shardID string, known []domain.Shard) (domain.Shard, error) {
	if s, ok := lo.Find(known, func(s domain.Shard) bool { return s.ShardID == shardID }); ok {
		return s, nil
	}

	s, err := p.shards.Get(ctx, shardID)
	if err != nil {
		if errors.Is(err, apperrors.ErrShardNotFound) {
			// metadata removed after assignment; the placement itself stays valid
			return domain.Shard{ShardID: shardID}, nil
		}
		return domain.Shard{}, err
	}
	return s, nil
}

// ensureRoot returns the tenant's root collection id on shardID, creating the root and
// the default subfolders when needed. The local mirror row is reserved first so that
// concurrent workers never both create a root.
func (p *Provisioner) ensureRoot(ctx context.Context, tenantID, shardID string) (string, error) {
	if !p.cfg.AutoCreateRoot {
		return "", nil
	}

	logger := log.WithFields(log.Fields{"tenant_id": tenantID, "shard_id": shardID})

	current, err := p.roots.Get(ctx, tenantID, shardID)
	if err != nil {
		return "", apperrors.BootstrapError(tenantID, err)
	}
	if current != nil && current.Ready() {
		return current.CollectionID, nil
	}

	logger.Debug("Bootstrapping tenant root")
	reservation, err := p.reserveRoot(ctx, tenantID, shardID)
	if err != nil {
		return "", apperrors.BootstrapError(tenantID, err)
	}
	if reservation.Ready() {
		return reservation.CollectionID, nil
	}

	rootID, err := p.bootstrap(ctx, tenantID, shardID)
	if err != nil {
		p.metrics.BootstrapFailure()
		p.releaseRoot(ctx, reservation, logger)
		logger.WithError(err).Error("Root collection bootstrap failed, assignment kept for retry")
		return "", apperrors.BootstrapError(tenantID, err)
	}

	if _, err := p.roots.Complete(ctx, reservation, rootID); err != nil {
		p.metrics.BootstrapFailure()
		// the next attempt adopts the provider root by name
		p.releaseRoot(ctx, reservation, logger)
		logger.WithError(err).WithField("root_collection_id", rootID).Error("Failed to record root collection")
		return "", apperrors.BootstrapError(tenantID, err)
	}

	logger.WithField("root_collection_id", rootID).Info("Tenant placed")
	return rootID, nil
}

// releaseRoot gives up a reservation even when ctx is already done.
func (p *Provisioner) releaseRoot(ctx context.Context, reservation domain.TenantRoot, logger *log.Entry) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := p.roots.Release(releaseCtx, reservation); err != nil {
		logger.WithError(err).Warn("Failed to release root reservation")
	}
}

// reserveRoot returns either a ready root row or a reservation held by the caller. While
// another worker holds a live reservation it polls, giving up after one lease period.
func (p *Provisioner) reserveRoot(ctx context.Context, tenantID, shardID string) (domain.TenantRoot, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.RootLease)
	defer cancel()

	var reservation domain.TenantRoot
	var lastErr error
	err := retry.Retry(waitCtx, func(ctx context.Context) error {
		root, acquired, err := p.roots.Reserve(ctx, tenantID, shardID, p.cfg.RootLease)
		if err != nil {
			lastErr = err
			cancel()
			return err
		}
		if !acquired && !root.Ready() {
			lastErr = errRootReserved
			return errRootReserved
		}
		reservation = root
		return nil
	}, retry.DefaultBackoff(), func(err error) {
		log.WithFields(log.Fields{"tenant_id": tenantID, "shard_id": shardID}).WithError(err).Debug("Waiting for root reservation")
	})
	if err != nil {
		if lastErr != nil {
			return domain.TenantRoot{}, lastErr
		}
		return domain.TenantRoot{}, err
	}

	return reservation, nil
}

// bootstrap adopts a root left by an earlier interrupted attempt or creates a new one,
// then fills in missing default subfolders.
func (p *Provisioner) bootstrap(ctx context.Context, tenantID, shardID string) (string, error) {
	name := p.rootName(tenantID)

	collections, err := p.provider.ListCollections(ctx, shardID)
	if err != nil {
		return "", err
	}

	root, found := lo.Find(collections, func(c domain.Collection) bool {
		return c.IsRoot() && c.Name == name
	})
	if found {
		log.WithFields(log.Fields{
			"tenant_id":          tenantID,
			"root_collection_id": root.CollectionID,
		}).Info("Adopting existing root collection")
	} else {
		root, err = p.provider.CreateCollection(ctx, shardID, name, "")
		if err != nil {
			return "", err
		}
	}

	existing := lo.FilterMap(collections, func(c domain.Collection, _ int) (string, bool) {
		return c.Name, c.ParentID == root.CollectionID
	})
	p.createSubfolders(ctx, tenantID, shardID, root.CollectionID, lo.Without(p.cfg.DefaultSubfolders, existing...))

	return root.CollectionID, nil
}

// createSubfolders never fails: default subfolders are a convenience.
func (p *Provisioner) createSubfolders(ctx context.Context, tenantID, shardID, rootID string, names []string) {
	for _, name := range names {
		if _, err := p.provider.CreateCollection(ctx, shardID, name, rootID); err != nil {
			p.metrics.SubfolderFailure()
			log.WithFields(log.Fields{
				"tenant_id": tenantID,
				"shard_id":  shardID,
				"folder":    name,
			}).WithError(err).Warn("Failed to create default subfolder, skipping")
		}
	}
}

func (p *Provisioner) rootName(tenantID string) string {
	return p.cfg.RootNamePrefix + tenantID
}

// Deactivate offboards a tenant. Its assignment is kept as history and its collections
// are left in the provider.
func (p *Provisioner) Deactivate(ctx context.Context, tenantID string) (domain.TenantAssignment, error) {
	if tenantID == "" {
		return domain.TenantAssignment{}, apperrors.ErrMissingRequiredFields
	}

	a, err := p.assignments.Deactivate(ctx, tenantID)
	if err != nil {
		return domain.TenantAssignment{}, err
	}

	log.WithFields(log.Fields{"tenant_id": tenantID, "shard_id": a.ShardID}).Info("Tenant deactivated")
	return a, nil
}
