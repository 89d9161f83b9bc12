package engine

import (
	"math"
	"testing"

	"github.com/signalstack/signal-engine/internal/models"
)

func TestDetectUsageAnomaliesSpike(t *testing.T) {
	recent := map[string]float64{"org-a": 300}
	baseline := map[string]float64{"org-a": 100}

	flagged := DetectUsageAnomalies(recent, baseline, 3)
	if len(flagged) != 1 {
		t.Fatalf("expected one flagged account, got %v", flagged)
	}
	got := flagged[0]
	if got.Kind != models.UsageSpike {
		t.Fatalf("expected SPIKE, got %s", got.Kind)
	}
	if math.Abs(got.Ratio-3.0) > 1e-9 {
		t.Fatalf("expected ratio 3.0, got %f", got.Ratio)
	}
}

func TestDetectUsageAnomaliesBelowThresholdIgnored(t *testing.T) {
	recent := map[string]float64{"org-a": 299}
	baseline := map[string]float64{"org-a": 100}

	if flagged := DetectUsageAnomalies(recent, baseline, 3); len(flagged) != 0 {
		t.Fatalf("expected no flags below threshold, got %v", flagged)
	}
}

func TestDetectUsageAnomaliesDrop(t *testing.T) {
	flagged := DetectUsageAnomalies(map[string]float64{}, map[string]float64{"org-b": 100}, 3)
	if len(flagged) != 1 {
		t.Fatalf("expected one flagged account, got %v", flagged)
	}
	if flagged[0].Kind != models.UsageDrop {
		t.Fatalf("expected DROP, got %s", flagged[0].Kind)
	}
	if flagged[0].OrgID != "org-b" {
		t.Fatalf("expected org-b flagged, got %s", flagged[0].OrgID)
	}
}

func TestDetectUsageAnomaliesAbsentAccountsExcluded(t *testing.T) {
	// org-c has recent activity but no baseline: ratio undefined, excluded.
	// org-d has neither: excluded.
	recent := map[string]float64{"org-c": 500, "org-d": 0}
	baseline := map[string]float64{"org-d": 0}

	if flagged := DetectUsageAnomalies(recent, baseline, 3); len(flagged) != 0 {
		t.Fatalf("expected no flags, got %v", flagged)
	}
}

func TestDetectUsageAnomaliesOrderedByRatio(t *testing.T) {
	recent := map[string]float64{"org-a": 900, "org-b": 400}
	baseline := map[string]float64{"org-a": 100, "org-b": 100, "org-c": 50}

	flagged := DetectUsageAnomalies(recent, baseline, 3)
	if len(flagged) != 3 {
		t.Fatalf("expected three flags, got %v", flagged)
	}
	if flagged[0].OrgID != "org-a" || flagged[1].OrgID != "org-b" {
		t.Fatalf("expected spikes ranked by ratio, got %v", flagged)
	}
	if flagged[2].Kind != models.UsageDrop {
		t.Fatalf("expected the drop ranked last, got %v", flagged[2])
	}
}
