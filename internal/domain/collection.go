package domain

import "time"

// MaxHierarchyDepth bounds every walk over provider collection data.
const MaxHierarchyDepth = 8

// Collection - folder-like node inside a shard. An empty ParentID marks a root.
type Collection struct {
	CollectionID   string `json:"collection_id"`
	TenantID       string `json:"tenant_id,omitempty"`
	ShardID        string `json:"shard_id"`
	Name           string `json:"name"`
	ParentID       string `json:"parent_id,omitempty"`
	IsDefaultRoot  bool   `json:"is_default_root"`
	VideoCount     int    `json:"video_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// IsRoot reports whether the collection has no parent.
func (c Collection) IsRoot() bool {
	return c.ParentID == ""
}

// TreeNode is a collection with its assembled children. Unavailable nodes were cut
// off because their subtree is malformed.
type TreeNode struct {
	Collection
	Depth       int         `json:"depth"`
	Children    []*TreeNode `json:"children"`
	Unavailable bool        `json:"unavailable,omitempty"`
}

// RootStatus - state of the local root mirror row
type RootStatus string

const (
	RootPending RootStatus = "pending"
	RootReady   RootStatus = "ready"
)

// TenantRoot mirrors a tenant's root collection locally. A pending row is a
// reservation held by whoever is creating the root.
type TenantRoot struct {
	ID           string
	TenantID     string
	ShardID      string
	CollectionID string
	Status       RootStatus
	LeaseVersion int64
	ReservedAt   time.Time
}

// Ready reports whether the root collection exists in the provider.
func (r TenantRoot) Ready() bool {
	return r.Status == RootReady && r.CollectionID != ""
}
