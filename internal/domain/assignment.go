package domain

import "time"

// TenantAssignment - binding of one tenant to one shard
type TenantAssignment struct {
	ID            string     `json:"id" dynamodbav:"id"`
	TenantID      string     `json:"tenant_id" dynamodbav:"tenant_id"`
	ShardID       string     `json:"shard_id" dynamodbav:"shard_id"`
	AssignedAt    time.Time  `json:"assigned_at" dynamodbav:"assigned_at"`
	IsActive      bool       `json:"is_active" dynamodbav:"is_active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" dynamodbav:"deactivated_at,omitempty"`
}

// PlacementDescriptor is what provisioning hands back to upload and browsing code.
type PlacementDescriptor struct {
	ShardID          string `json:"shard_id"`
	RootCollectionID string `json:"root_collection_id"`
	Region           Region `json:"region"`
}
