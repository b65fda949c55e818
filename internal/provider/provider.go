// Package provider talks to the external multi-tenant video platform. Shards are the
// platform's "libraries"; folders are its "collections".
package provider

import (
	"context"

	"github.com/zzenonn/vidshard/internal/domain"
)

// ShardInfo is the provider's view of a library.
type ShardInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// Provider is the subset of the platform API this service consumes.
// Every error returned matches ErrProviderUnavailable.
type Provider interface {
	ListShards(ctx context.Context) ([]ShardInfo, error)
	CreateCollection(ctx context.Context, shardID, name, parentID string) (domain.Collection, error)
	ListCollections(ctx context.Context, shardID string) ([]domain.Collection, error)
}
