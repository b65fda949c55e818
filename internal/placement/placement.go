// Package placement decides which shard (provider library) a new tenant lands on.
//
// Placement is load-aware: every candidate shard is scored by a LoadEstimator and the
// least-loaded one wins. Load is the number of active tenant assignments on a shard,
// which is cheap to count locally and tracks tenant density well enough. Richer signals
// (measured latency, storage headroom) can be added behind LoadEstimator without
// touching the placer.
//
// Key Concepts:
//   - Candidate set: the registry's active shards, optionally narrowed to a region hint
//   - Region fallback: a hint that matches no candidate is ignored rather than failing
//   - Determinism: ties break by shard creation order, then shard id, so the same load
//     snapshot always yields the same shard
//
// Usage Flow:
// 1. The provisioner fetches active shards from the registry
// 2. Rank orders them best-first; the provisioner may probe them in that order
// 3. Place is Rank()[0] for callers that only want the winner
//
// Example:
//
//	placer := NewLeastLoadedPlacer(NewAssignmentCountEstimator(assignmentRepo))
//	shard, err := placer.Place(ctx, shards, domain.RegionEU)
package placement

import (
	"context"

	"github.com/zzenonn/vidshard/internal/domain"
)

// LoadEstimator reports the current load of a shard.
type LoadEstimator interface {
	LoadOf(ctx context.Context, shardID string) (int, error)
}

// Placer chooses shards for new tenants.
//
// Implementations must be safe for concurrent use and deterministic for a given
// load snapshot.
type Placer interface {
	// Rank returns the eligible candidates best-first.
	Rank(ctx context.Context, candidates []domain.Shard, hint domain.Region) ([]domain.Shard, error)

	// Place returns the single best candidate.
	Place(ctx context.Context, candidates []domain.Shard, hint domain.Region) (domain.Shard, error)
}

// ActiveCounter is satisfied by the assignment repositories.
type ActiveCounter interface {
	CountActive(ctx context.Context, shardID string) (int, error)
}

// AssignmentCountEstimator defines load as the number of active assignments.
type AssignmentCountEstimator struct {
	counter ActiveCounter
}

// NewAssignmentCountEstimator wraps an assignment store.
func NewAssignmentCountEstimator(counter ActiveCounter) *AssignmentCountEstimator {
	return &AssignmentCountEstimator{counter: counter}
}

// LoadOf counts active assignments on shardID.
func (e *AssignmentCountEstimator) LoadOf(ctx context.Context, shardID string) (int, error) {
	return e.counter.CountActive(ctx, shardID)
}
