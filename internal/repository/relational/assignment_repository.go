package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"gorm.io/gorm"
)

const maxInsertAttempts = 3

// assignmentModel keeps every assignment ever made. ActiveKey holds the tenant id while
// the row is active and NULL afterwards; its unique index is what guarantees at most one
// active assignment per tenant.
type assignmentModel struct {
	ID            string     `gorm:"column:id;primaryKey;size:36"`
	TenantID      string     `gorm:"column:tenant_id;size:191;not null;index"`
	ShardID       string     `gorm:"column:shard_id;size:191;not null;index:idx_assignment_shard_active,priority:1"`
	IsActive      bool       `gorm:"column:is_active;not null;index:idx_assignment_shard_active,priority:2"`
	ActiveKey     *string    `gorm:"column:active_key;size:191;uniqueIndex"`
	AssignedAt    time.Time  `gorm:"column:assigned_at;not null"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at"`
}

func (assignmentModel) TableName() string { return "tenant_assignments" }

func (m *assignmentModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func toDomainAssignment(m assignmentModel) domain.TenantAssignment {
	return domain.TenantAssignment{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ShardID:       m.ShardID,
		AssignedAt:    m.AssignedAt,
		IsActive:      m.IsActive,
		DeactivatedAt: m.DeactivatedAt,
	}
}

// AssignmentRepository is the relational tenant assignment store.
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository initializes a new AssignmentRepository.
func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// GetActive returns the tenant's active assignment, or nil when there is none.
func (r *AssignmentRepository) GetActive(ctx context.Context, tenantID string) (*domain.TenantAssignment, error) {
	var m assignmentModel
	if err := r.db.WithContext(ctx).Where("active_key = ?", tenantID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active assignment: %w", err)
	}

	a := toDomainAssignment(m)
	return &a, nil
}

// CreateIfAbsent inserts an active assignment unless the tenant already has one. The
// insert itself is the check: a unique violation on active_key means another writer won,
// and its row is returned with created=false.
func (r *AssignmentRepository) CreateIfAbsent(ctx context.Context, tenantID, shardID string) (domain.TenantAssignment, bool, error) {
	if tenantID == "" || shardID == "" {
		return domain.TenantAssignment{}, false, apperrors.ErrMissingRequiredFields
	}

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		key := tenantID
		m := assignmentModel{
			TenantID:   tenantID,
			ShardID:    shardID,
			IsActive:   true,
			ActiveKey:  &key,
			AssignedAt: time.Now().UTC(),
		}

		err := quiet(r.db).WithContext(ctx).Create(&m).Error
		if err == nil {
			return toDomainAssignment(m), true, nil
		}
		if !isUniqueConstraintError(err) {
			return domain.TenantAssignment{}, false, fmt.Errorf("failed to create assignment: %w", err)
		}

		existing, err := r.GetActive(ctx, tenantID)
		if err != nil {
			return domain.TenantAssignment{}, false, err
		}
		if existing != nil {
			return *existing, false, nil
		}
		// winner was deactivated between our insert and read
	}

	return domain.TenantAssignment{}, false, fmt.Errorf("assignment for tenant %s changed during %d insert attempts", tenantID, maxInsertAttempts)
}

// CountActive counts active assignments on a shard.
func (r *AssignmentRepository) CountActive(ctx context.Context, shardID string) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&assignmentModel{}).
		Where("shard_id = ? AND is_active = ?", shardID, true).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return int(n), nil
}

// Deactivate soft-deactivates the tenant's active assignment and keeps the row as history.
func (r *AssignmentRepository) Deactivate(ctx context.Context, tenantID string) (domain.TenantAssignment, error) {
	current, err := r.GetActive(ctx, tenantID)
	if err != nil {
		return domain.TenantAssignment{}, err
	}
	if current == nil {
		return domain.TenantAssignment{}, fmt.Errorf("%w: %s", apperrors.ErrTenantNotPlaced, tenantID)
	}

	now := time.Now().UTC()
	tx := r.db.WithContext(ctx).Model(&assignmentModel{}).
		Where("id = ? AND active_key = ?", current.ID, tenantID).
		Updates(map[string]interface{}{
			"is_active":      false,
			"active_key":     nil,
			"deactivated_at": now,
		})
	if tx.Error != nil {
		return domain.TenantAssignment{}, fmt.Errorf("failed to deactivate assignment: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return domain.TenantAssignment{}, fmt.Errorf("%w: %s", apperrors.ErrTenantNotPlaced, tenantID)
	}

	current.IsActive = false
	current.DeactivatedAt = &now
	return *current, nil
}

// ListAll returns every assignment, active and historical, oldest first.
func (r *AssignmentRepository) ListAll(ctx context.Context) ([]domain.TenantAssignment, error) {
	var models []assignmentModel
	if err := r.db.WithContext(ctx).Order("assigned_at, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	assignments := make([]domain.TenantAssignment, 0, len(models))
	for _, m := range models {
		assignments = append(assignments, toDomainAssignment(m))
	}
	return assignments, nil
}
