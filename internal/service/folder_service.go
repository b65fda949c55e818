package service

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/hierarchy"
	"github.com/zzenonn/vidshard/internal/provider"
)

// FolderService browses and extends a tenant's collection tree.
type FolderService struct {
	assignments AssignmentRepository
	roots       RootRepository
	provider    provider.Provider
}

// NewFolderService creates a new FolderService instance
func NewFolderService(assignments AssignmentRepository, roots RootRepository, p provider.Provider) *FolderService {
	return &FolderService{
		assignments: assignments,
		roots:       roots,
		provider:    p,
	}
}

// GetFolderTree returns the tenant's folder tree, or nil when the tenant has no placed
// root. Malformed branches come back as unavailable nodes and are only logged.
func (s *FolderService) GetFolderTree(ctx context.Context, tenantID string) (*domain.TreeNode, error) {
	assignment, root, err := s.placedRoot(ctx, tenantID)
	if err != nil || root == nil {
		return nil, err
	}

	collections, err := s.provider.ListCollections(ctx, assignment.ShardID)
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{"tenant_id": tenantID, "shard_id": assignment.ShardID})

	owned, err := hierarchy.OwnedBy(collections, root.CollectionID)
	if err != nil {
		// other tenants' broken chains land here too
		logger.WithError(err).Debug("Skipped collections with malformed parent chains")
	}
	for i := range owned {
		owned[i].TenantID = tenantID
		owned[i].IsDefaultRoot = owned[i].CollectionID == root.CollectionID
	}

	tree, err := hierarchy.BuildTree(owned, root.CollectionID)
	if err != nil {
		logger.WithError(err).Warn("Folder tree has malformed branches")
	}
	if tree == nil {
		logger.WithField("root_collection_id", root.CollectionID).Warn("Root collection missing from provider listing")
	}

	return tree, nil
}

// CreateFolder creates a folder under parentID, or under the tenant root when parentID
// is empty. The parent must belong to the tenant and the new folder must stay within
// the depth limit.
func (s *FolderService) CreateFolder(ctx context.Context, tenantID, name, parentID string) (domain.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Collection{}, apperrors.ErrMissingRequiredFields
	}

	assignment, root, err := s.placedRoot(ctx, tenantID)
	if err != nil {
		return domain.Collection{}, err
	}
	if root == nil {
		return domain.Collection{}, fmt.Errorf("%w: %s", apperrors.ErrTenantNotPlaced, tenantID)
	}
	if parentID == "" {
		parentID = root.CollectionID
	}

	collections, err := s.provider.ListCollections(ctx, assignment.ShardID)
	if err != nil {
		return domain.Collection{}, err
	}

	depth, owned, err := hierarchy.NewIndex(collections).DepthBelow(parentID, root.CollectionID)
	if err != nil {
		return domain.Collection{}, err
	}
	if !owned {
		return domain.Collection{}, fmt.Errorf("%w: %s", apperrors.ErrForeignCollection, parentID)
	}
	if depth+1 > domain.MaxHierarchyDepth {
		return domain.Collection{}, fmt.Errorf("%w: parent %s is at depth %d", apperrors.ErrFolderDepthExceeded, parentID, depth)
	}

	created, err := s.provider.CreateCollection(ctx, assignment.ShardID, name, parentID)
	if err != nil {
		return domain.Collection{}, err
	}
	created.TenantID = tenantID

	log.WithFields(log.Fields{
		"tenant_id":     tenantID,
		"collection_id": created.CollectionID,
		"parent_id":     parentID,
	}).Info("Folder created")

	return created, nil
}

func (s *FolderService) placedRoot(ctx context.Context, tenantID string) (*domain.TenantAssignment, *domain.TenantRoot, error) {
	if tenantID == "" {
		return nil, nil, apperrors.ErrMissingRequiredFields
	}

	assignment, err := s.assignments.GetActive(ctx, tenantID)
	if err != nil || assignment == nil {
		return nil, nil, err
	}

	root, err := s.roots.Get(ctx, tenantID, assignment.ShardID)
	if err != nil {
		return nil, nil, err
	}
	if root == nil || !root.Ready() {
		return assignment, nil, nil
	}

	return assignment, root, nil
}
