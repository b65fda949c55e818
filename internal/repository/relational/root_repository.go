package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zzenonn/vidshard/internal/domain"
	"gorm.io/gorm"
)

// ErrLeaseLost is returned when a root reservation was taken over by another writer.
var ErrLeaseLost = errors.New("root reservation lease lost")

// tenantRootModel mirrors the tenant's root collection. LeaseVersion is bumped on every
// takeover so stale holders cannot complete or release the row.
type tenantRootModel struct {
	ID           string    `gorm:"column:id;primaryKey;size:36"`
	TenantID     string    `gorm:"column:tenant_id;size:191;not null;uniqueIndex:idx_tenant_root,priority:1"`
	ShardID      string    `gorm:"column:shard_id;size:191;not null;uniqueIndex:idx_tenant_root,priority:2"`
	CollectionID string    `gorm:"column:collection_id;size:191"`
	Status       string    `gorm:"column:status;size:16;not null"`
	LeaseVersion int64     `gorm:"column:lease_version;not null"`
	ReservedAt   time.Time `gorm:"column:reserved_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (tenantRootModel) TableName() string { return "tenant_roots" }

func (m *tenantRootModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func toDomainRoot(m tenantRootModel) domain.TenantRoot {
	return domain.TenantRoot{
		ID:           m.ID,
		TenantID:     m.TenantID,
		ShardID:      m.ShardID,
		CollectionID: m.CollectionID,
		Status:       domain.RootStatus(m.Status),
		LeaseVersion: m.LeaseVersion,
		ReservedAt:   m.ReservedAt,
	}
}

// RootRepository stores the local root-collection mirror.
type RootRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRootRepository initializes a new RootRepository.
func NewRootRepository(db *gorm.DB) *RootRepository {
	return &RootRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the mirror row for (tenant, shard), or nil.
func (r *RootRepository) Get(ctx context.Context, tenantID, shardID string) (*domain.TenantRoot, error) {
	var m tenantRootModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND shard_id = ?", tenantID, shardID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant root: %w", err)
	}

	root := toDomainRoot(m)
	return &root, nil
}

// Reserve claims the right to create the root for (tenant, shard). acquired is true
// when the caller now holds the reservation. A ready row is returned with
// acquired=false; so is a pending row whose lease is still running.
func (r *RootRepository) Reserve(ctx context.Context, tenantID, shardID string, lease time.Duration) (domain.TenantRoot, bool, error) {
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		m := tenantRootModel{
			TenantID:   tenantID,
			ShardID:    shardID,
			Status:     string(domain.RootPending),
			ReservedAt: r.now(),
		}

		err := quiet(r.db).WithContext(ctx).Create(&m).Error
		if err == nil {
			return toDomainRoot(m), true, nil
		}
		if !isUniqueConstraintError(err) {
			return domain.TenantRoot{}, false, fmt.Errorf("failed to reserve tenant root: %w", err)
		}

		existing, err := r.Get(ctx, tenantID, shardID)
		if err != nil {
			return domain.TenantRoot{}, false, err
		}
		if existing == nil {
			continue
		}
		if existing.Ready() || r.now().Sub(existing.ReservedAt) < lease {
			return *existing, false, nil
		}

		return r.takeOver(ctx, *existing)
	}

	return domain.TenantRoot{}, false, fmt.Errorf("tenant root for %s changed during %d reserve attempts", tenantID, maxInsertAttempts)
}

func (r *RootRepository) takeOver(ctx context.Context, stale domain.TenantRoot) (domain.TenantRoot, bool, error) {
	now := r.now()
	tx := r.db.WithContext(ctx).Model(&tenantRootModel{}).
		Where("id = ? AND status = ? AND lease_version = ?", stale.ID, string(domain.RootPending), stale.LeaseVersion).
		Updates(map[string]interface{}{
			"reserved_at":   now,
			"lease_version": stale.LeaseVersion + 1,
		})
	if tx.Error != nil {
		return domain.TenantRoot{}, false, fmt.Errorf("failed to take over tenant root: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		current, err := r.Get(ctx, stale.TenantID, stale.ShardID)
		if err != nil {
			return domain.TenantRoot{}, false, err
		}
		if current == nil {
			return domain.TenantRoot{}, false, ErrLeaseLost
		}
		return *current, false, nil
	}

	stale.ReservedAt = now
	stale.LeaseVersion++
	return stale, true, nil
}

// Complete records the created root collection and marks the row ready.
func (r *RootRepository) Complete(ctx context.Context, root domain.TenantRoot, collectionID string) (domain.TenantRoot, error) {
	tx := r.db.WithContext(ctx).Model(&tenantRootModel{}).
		Where("id = ? AND lease_version = ?", root.ID, root.LeaseVersion).
		Updates(map[string]interface{}{
			"collection_id": collectionID,
			"status":        string(domain.RootReady),
		})
	if tx.Error != nil {
		return domain.TenantRoot{}, fmt.Errorf("failed to complete tenant root: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return domain.TenantRoot{}, ErrLeaseLost
	}

	root.CollectionID = collectionID
	root.Status = domain.RootReady
	return root, nil
}

// Release gives up a pending reservation so the next attempt can take it at once.
func (r *RootRepository) Release(ctx context.Context, root domain.TenantRoot) error {
	tx := r.db.WithContext(ctx).Model(&tenantRootModel{}).
		Where("id = ? AND status = ? AND lease_version = ?", root.ID, string(domain.RootPending), root.LeaseVersion).
		Update("reserved_at", time.Unix(0, 0).UTC())
	if tx.Error != nil {
		return fmt.Errorf("failed to release tenant root: %w", tx.Error)
	}
	return nil
}
