package domain

import (
	"errors"
	"testing"

	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    Region
		wantErr bool
	}{
		{"", "", false},
		{" EU ", RegionEU, false},
		{"oceania", RegionOceania, false},
		{"mars", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRegion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRegion(%q) error = %v", tt.in, err)
		}
		if err != nil && !errors.Is(err, apperrors.ErrInvalidRegion) {
			t.Errorf("ParseRegion(%q) error should match ErrInvalidRegion", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseRegion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseHealthStatus(t *testing.T) {
	if h, err := ParseHealthStatus("Degraded"); err != nil || h != HealthDegraded {
		t.Errorf("ParseHealthStatus(Degraded) = (%q, %v)", h, err)
	}
	if _, err := ParseHealthStatus("sick"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestTenantRootReady(t *testing.T) {
	if (TenantRoot{Status: RootReady}).Ready() {
		t.Error("a ready row without a collection id is not ready")
	}
	if (TenantRoot{Status: RootPending, CollectionID: "c"}).Ready() {
		t.Error("a pending row is not ready")
	}
	if !(TenantRoot{Status: RootReady, CollectionID: "c"}).Ready() {
		t.Error("expected ready")
	}
}
