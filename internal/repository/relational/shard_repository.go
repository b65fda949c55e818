package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"gorm.io/gorm"
)

type shardModel struct {
	ShardID      string    `gorm:"column:shard_id;primaryKey;size:191"`
	Name         string    `gorm:"column:name;size:255"`
	Region       string    `gorm:"column:region;size:32;not null"`
	Active       bool      `gorm:"column:active;not null"`
	HealthStatus string    `gorm:"column:health_status;size:16;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (shardModel) TableName() string { return "shards" }

func toDomainShard(m shardModel) domain.Shard {
	return domain.Shard{
		ShardID:      m.ShardID,
		Name:         m.Name,
		Region:       domain.Region(m.Region),
		Active:       m.Active,
		HealthStatus: domain.HealthStatus(m.HealthStatus),
		CreatedAt:    m.CreatedAt,
	}
}

// ShardRepository stores locally known shard metadata.
type ShardRepository struct {
	db *gorm.DB
}

// NewShardRepository initializes a new ShardRepository.
func NewShardRepository(db *gorm.DB) *ShardRepository {
	return &ShardRepository{db: db}
}

// Create stores a new shard. Registering the same id twice yields ErrShardExists.
func (r *ShardRepository) Create(ctx context.Context, s domain.Shard) (domain.Shard, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.HealthStatus == "" {
		s.HealthStatus = domain.HealthUnknown
	}

	m := shardModel{
		ShardID:      s.ShardID,
		Name:         s.Name,
		Region:       string(s.Region),
		Active:       s.Active,
		HealthStatus: string(s.HealthStatus),
		CreatedAt:    s.CreatedAt,
	}

	if err := quiet(r.db).WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueConstraintError(err) {
			return domain.Shard{}, fmt.Errorf("%w: %s", apperrors.ErrShardExists, s.ShardID)
		}
		return domain.Shard{}, fmt.Errorf("failed to create shard: %w", err)
	}

	return toDomainShard(m), nil
}

// Get returns one shard or ErrShardNotFound.
func (r *ShardRepository) Get(ctx context.Context, shardID string) (domain.Shard, error) {
	var m shardModel
	if err := r.db.WithContext(ctx).Where("shard_id = ?", shardID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Shard{}, fmt.Errorf("%w: %s", apperrors.ErrShardNotFound, shardID)
		}
		return domain.Shard{}, fmt.Errorf("failed to get shard: %w", err)
	}
	return toDomainShard(m), nil
}

// List returns every shard in creation order.
func (r *ShardRepository) List(ctx context.Context) ([]domain.Shard, error) {
	var models []shardModel
	if err := r.db.WithContext(ctx).Order("created_at, shard_id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}

	shards := make([]domain.Shard, 0, len(models))
	for _, m := range models {
		shards = append(shards, toDomainShard(m))
	}
	return shards, nil
}

// SetActive flips the active flag.
func (r *ShardRepository) SetActive(ctx context.Context, shardID string, active bool) error {
	return r.update(ctx, shardID, "active", active)
}

// SetHealth records the latest health status.
func (r *ShardRepository) SetHealth(ctx context.Context, shardID string, status domain.HealthStatus) error {
	return r.update(ctx, shardID, "health_status", string(status))
}

// Delete removes the shard row. Callers check the shard is empty first.
func (r *ShardRepository) Delete(ctx context.Context, shardID string) error {
	tx := r.db.WithContext(ctx).Where("shard_id = ?", shardID).Delete(&shardModel{})
	if tx.Error != nil {
		return fmt.Errorf("failed to delete shard: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrShardNotFound, shardID)
	}
	return nil
}

func (r *ShardRepository) update(ctx context.Context, shardID, column string, value interface{}) error {
	tx := r.db.WithContext(ctx).Model(&shardModel{}).Where("shard_id = ?", shardID).Update(column, value)
	if tx.Error != nil {
		return fmt.Errorf("failed to update shard %s: %w", column, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrShardNotFound, shardID)
	}
	return nil
}
