package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

func placedFixture(t *testing.T) (*fixture, domain.PlacementDescriptor) {
	t.Helper()
	f := newFixture(t)
	f.addShard(t, "lib-1", domain.RegionEU, 0)

	desc, err := f.provisioner(nil).ProvisionTenant(context.Background(), "t1", "")
	require.NoError(t, err)
	return f, desc
}

func TestGetFolderTree_Unplaced(t *testing.T) {
	f := newFixture(t)
	tree, err := f.folders().GetFolderTree(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, tree)
}

func TestGetFolderTree_OnlyTenantSubtree(t *testing.T) {
	f, desc := placedFixture(t)

	// another tenant on the same shard
	_, err := f.provisioner(nil).ProvisionTenant(context.Background(), "t2", "")
	require.NoError(t, err)

	tree, err := f.folders().GetFolderTree(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, tree)

	assert.Equal(t, desc.RootCollectionID, tree.CollectionID)
	assert.True(t, tree.IsDefaultRoot)
	assert.Equal(t, "t1", tree.TenantID)

	names := make([]string, 0, len(tree.Children))
	for _, c := range tree.Children {
		names = append(names, c.Name)
		assert.Equal(t, 1, c.Depth)
		assert.False(t, c.IsDefaultRoot)
	}
	assert.Equal(t, []string{"Archive", "Livestreams", "Thumbnails", "Videos"}, names)
}

func TestGetFolderTree_DeepBranchIsCutOff(t *testing.T) {
	f, desc := placedFixture(t)

	parent := desc.RootCollectionID
	for i := 1; i <= domain.MaxHierarchyDepth+2; i++ {
		id := fmt.Sprintf("deep-%d", i)
		f.provider.seed(domain.Collection{CollectionID: id, ShardID: "lib-1", Name: id, ParentID: parent})
		parent = id
	}

	tree, err := f.folders().GetFolderTree(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Len(t, tree.Children, 5, "default folders and the deep branch are all present")
}

func TestGetFolderTree_ProviderDown(t *testing.T) {
	f, _ := placedFixture(t)
	f.provider.listFn = func(string) error { return unavailable("list collections") }

	_, err := f.folders().GetFolderTree(context.Background(), "t1")
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()
	f, desc := placedFixture(t)
	svc := f.folders()

	clips, err := svc.CreateFolder(ctx, "t1", "Clips", "")
	require.NoError(t, err)
	assert.Equal(t, desc.RootCollectionID, clips.ParentID)
	assert.Equal(t, "t1", clips.TenantID)

	nested, err := svc.CreateFolder(ctx, "t1", "2024", clips.CollectionID)
	require.NoError(t, err)
	assert.Equal(t, clips.CollectionID, nested.ParentID)

	_, err = svc.CreateFolder(ctx, "t1", "  ", "")
	assert.ErrorIs(t, err, apperrors.ErrMissingRequiredFields)

	_, err = svc.CreateFolder(ctx, "nobody", "Clips", "")
	assert.ErrorIs(t, err, apperrors.ErrTenantNotPlaced)
}

func TestCreateFolder_RejectsForeignParent(t *testing.T) {
	ctx := context.Background()
	f, _ := placedFixture(t)

	other, err := f.provisioner(nil).ProvisionTenant(ctx, "t2", "")
	require.NoError(t, err)

	_, err = f.folders().CreateFolder(ctx, "t1", "Sneaky", other.RootCollectionID)
	assert.ErrorIs(t, err, apperrors.ErrForeignCollection)
}

func TestCreateFolder_DepthLimit(t *testing.T) {
	ctx := context.Background()
	f, _ := placedFixture(t)
	svc := f.folders()

	parent := ""
	for depth := 1; depth <= domain.MaxHierarchyDepth; depth++ {
		c, err := svc.CreateFolder(ctx, "t1", fmt.Sprintf("level-%d", depth), parent)
		require.NoError(t, err, "depth %d", depth)
		parent = c.CollectionID
	}

	_, err := svc.CreateFolder(ctx, "t1", "too-deep", parent)
	assert.ErrorIs(t, err, apperrors.ErrFolderDepthExceeded)
}
