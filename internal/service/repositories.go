package service

import (
	"context"
	"time"

	"github.com/zzenonn/vidshard/internal/domain"
)

// AssignmentRepository is implemented by both the relational and the DynamoDB stores.
type AssignmentRepository interface {
	GetActive(ctx context.Context, tenantID string) (*domain.TenantAssignment, error)
	CreateIfAbsent(ctx context.Context, tenantID, shardID string) (domain.TenantAssignment, bool, error)
	CountActive(ctx context.Context, shardID string) (int, error)
	Deactivate(ctx context.Context, tenantID string) (domain.TenantAssignment, error)
	ListAll(ctx context.Context) ([]domain.TenantAssignment, error)
}

// RootRepository is the local mirror of tenant root collections, doubling as a
// creation lease.
type RootRepository interface {
	Get(ctx context.Context, tenantID, shardID string) (*domain.TenantRoot, error)
	Reserve(ctx context.Context, tenantID, shardID string, lease time.Duration) (domain.TenantRoot, bool, error)
	Complete(ctx context.Context, root domain.TenantRoot, collectionID string) (domain.TenantRoot, error)
	Release(ctx context.Context, root domain.TenantRoot) error
}

// ShardRepository holds local shard metadata.
type ShardRepository interface {
	Create(ctx context.Context, s domain.Shard) (domain.Shard, error)
	Get(ctx context.Context, shardID string) (domain.Shard, error)
	List(ctx context.Context) ([]domain.Shard, error)
	SetActive(ctx context.Context, shardID string, active bool) error
	SetHealth(ctx context.Context, shardID string, status domain.HealthStatus) error
	Delete(ctx context.Context, shardID string) error
}

// ShardRegistry lists the shards currently able to take tenants.
type ShardRegistry interface {
	ListActiveShards(ctx context.Context) ([]domain.Shard, error)
	Invalidate()
}
