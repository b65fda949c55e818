package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

// Region - geographic region a shard serves
type Region string

const (
	RegionEU           Region = "eu"
	RegionUS           Region = "us"
	RegionAsia         Region = "asia"
	RegionOceania      Region = "oceania"
	RegionSouthAmerica Region = "sa"
	RegionAfrica       Region = "af"
)

var knownRegions = map[Region]bool{
	RegionEU:           true,
	RegionUS:           true,
	RegionAsia:         true,
	RegionOceania:      true,
	RegionSouthAmerica: true,
	RegionAfrica:       true,
}

// ParseRegion normalises a region code. An empty string yields an empty Region (no hint).
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return "", nil
	}
	if !knownRegions[r] {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRegion, s)
	}
	return r, nil
}

// HealthStatus - last known health of a shard
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthUnknown  HealthStatus = "unknown"
)

// ParseHealthStatus accepts healthy, degraded or unknown.
func ParseHealthStatus(s string) (HealthStatus, error) {
	switch h := HealthStatus(strings.ToLower(strings.TrimSpace(s))); h {
	case HealthHealthy, HealthDegraded, HealthUnknown:
		return h, nil
	default:
		return "", fmt.Errorf("unknown health status %q", s)
	}
}

// Shard - one backing storage library on the video provider
type Shard struct {
	ShardID      string       `json:"shard_id"`
	Name         string       `json:"name"`
	Region       Region       `json:"region"`
	Active       bool         `json:"active"`
	HealthStatus HealthStatus `json:"health_status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ShardLoad pairs a shard with its assigned-tenant count.
type ShardLoad struct {
	Shard Shard `json:"shard"`
	Load  int   `json:"load"`
}
