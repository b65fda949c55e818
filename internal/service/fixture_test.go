package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zzenonn/vidshard/internal/config"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/metrics"
	"github.com/zzenonn/vidshard/internal/placement"
	"github.com/zzenonn/vidshard/internal/provider"
	"github.com/zzenonn/vidshard/internal/registry"
	"github.com/zzenonn/vidshard/internal/repository/relational"
)

// fakeProvider keeps collections in memory. createFn and listFn inject failures.
type fakeProvider struct {
	mu          sync.Mutex
	libraries   []provider.ShardInfo
	collections map[string][]domain.Collection
	seq         int
	creates     int

	createFn func(shardID, name, parentID string) error
	listFn   func(shardID string) error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{collections: map[string][]domain.Collection{}}
}

func (f *fakeProvider) ListShards(ctx context.Context) ([]provider.ShardInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.ShardInfo(nil), f.libraries...), nil
}

func (f *fakeProvider) CreateCollection(ctx context.Context, shardID, name, parentID string) (domain.Collection, error) {
	if f.createFn != nil {
		if err := f.createFn(shardID, name, parentID); err != nil {
			return domain.Collection{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.creates++
	c := domain.Collection{
		CollectionID: fmt.Sprintf("c-%d", f.seq),
		ShardID:      shardID,
		Name:         name,
		ParentID:     parentID,
	}
	f.collections[shardID] = append(f.collections[shardID], c)
	return c, nil
}

func (f *fakeProvider) ListCollections(ctx context.Context, shardID string) ([]domain.Collection, error) {
	if f.listFn != nil {
		if err := f.listFn(shardID); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Collection(nil), f.collections[shardID]...), nil
}

func (f *fakeProvider) seed(c domain.Collection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[c.ShardID] = append(f.collections[c.ShardID], c)
}

func (f *fakeProvider) roots(shardID string) []domain.Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Collection
	for _, c := range f.collections[shardID] {
		if c.IsRoot() {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeProvider) children(shardID, parentID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.collections[shardID] {
		if c.ParentID == parentID {
			names = append(names, c.Name)
		}
	}
	return names
}

func (f *fakeProvider) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func unavailable(op string) error {
	return apperrors.ProviderError(op, context.DeadlineExceeded)
}

type fixture struct {
	provider    *fakeProvider
	shards      *relational.ShardRepository
	assignments *relational.AssignmentRepository
	roots       *relational.RootRepository
	registry    *registry.Registry
	estimator   *placement.AssignmentCountEstimator
	cfg         config.ProvisionerConfig
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := relational.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, relational.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		provider:    newFakeProvider(),
		shards:      relational.NewShardRepository(db),
		assignments: relational.NewAssignmentRepository(db),
		roots:       relational.NewRootRepository(db),
		cfg: config.ProvisionerConfig{
			AutoCreateRoot:    true,
			DefaultSubfolders: []string{"Videos", "Livestreams", "Thumbnails", "Archive"},
			RootNamePrefix:    "tenant-",
			RootLease:         5 * time.Second,
			ProbeCandidates:   true,
		},
	}
	f.registry = registry.New(f.provider, f.shards, time.Minute, 0, nil)
	f.estimator = placement.NewAssignmentCountEstimator(f.assignments)
	return f
}

// addShard registers a library both in the provider and locally.
func (f *fixture) addShard(t *testing.T, id string, region domain.Region, createdOffset time.Duration) {
	t.Helper()
	f.provider.mu.Lock()
	f.provider.libraries = append(f.provider.libraries, provider.ShardInfo{ID: id, Name: id})
	f.provider.mu.Unlock()

	_, err := f.shards.Create(context.Background(), domain.Shard{
		ShardID:   id,
		Region:    region,
		Active:    true,
		CreatedAt: epoch.Add(createdOffset),
	})
	require.NoError(t, err)
	f.registry.Invalidate()
}

func (f *fixture) provisioner(m *metrics.Metrics) *Provisioner {
	return NewProvisioner(
		f.assignments,
		f.roots,
		f.shards,
		f.registry,
		placement.NewLeastLoadedPlacer(f.estimator),
		f.provider,
		f.cfg,
		m,
	)
}

func (f *fixture) folders() *FolderService {
	return NewFolderService(f.assignments, f.roots, f.provider)
}
