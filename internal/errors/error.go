package errors

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable   = errors.New("video provider unavailable")
	ErrNoAvailableShard      = errors.New("no available shard")
	ErrBootstrapFailed       = errors.New("tenant bootstrap failed")
	ErrMalformedHierarchy    = errors.New("malformed collection hierarchy")
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrInvalidRegion         = errors.New("invalid region")
	ErrShardNotFound         = errors.New("shard not found")
	ErrShardExists           = errors.New("shard already registered")
	ErrShardInUse            = errors.New("shard still has active tenants")
	ErrTenantNotPlaced       = errors.New("tenant has no active placement")
	ErrFolderDepthExceeded   = errors.New("folder depth limit exceeded")
	ErrForeignCollection     = errors.New("collection does not belong to tenant")
)

// ProviderError wraps a failed provider call so it matches ErrProviderUnavailable.
func ProviderError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, op, err)
}

// BootstrapError wraps a failed root creation so it matches ErrBootstrapFailed and the cause.
func BootstrapError(tenantID string, err error) error {
	return fmt.Errorf("%w for tenant %s: %w", ErrBootstrapFailed, tenantID, err)
}

// MalformedError reports a broken parent chain at a collection.
func MalformedError(collectionID, reason string) error {
	return fmt.Errorf("%w: collection %s: %s", ErrMalformedHierarchy, collectionID, reason)
}
