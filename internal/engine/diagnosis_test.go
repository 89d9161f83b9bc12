package engine

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/signalstack/signal-engine/internal/models"
)

func testTopology() map[string]models.ServiceInfo {
	return map[string]models.ServiceInfo{
		"billing-worker": {Repo: "acme/billing-worker", Runtime: "go1.23", Framework: "stdlib"},
	}
}

func TestDiagnoseResolvesServiceFromTag(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	record := models.ErrorRecord{
		Title:     "deadline exceeded flushing usage batch",
		Level:     "error",
		Count:     150,
		UserCount: 3,
		FirstSeen: now.Add(-72 * time.Hour).Format(time.RFC3339),
		LastSeen:  now.Add(-5 * time.Minute).Format(time.RFC3339),
		Project:   "some-project",
		Tags:      []models.Tag{{Key: "service", Value: "billing-worker"}, {Key: "environment", Value: "prod"}},
	}

	d := NewDiagnoser(nil, nil, nil, testTopology())
	diagnosis := d.diagnoseAt(record, "", now)

	if diagnosis.Category != "timeout" {
		t.Fatalf("expected timeout category, got %q", diagnosis.Category)
	}
	if diagnosis.Severity != models.SeverityCritical {
		t.Fatalf("recent 150-count error should be critical, got %s", diagnosis.Severity)
	}
	ctx := diagnosis.Context
	if ctx.Service != "billing-worker" || ctx.Repo != "acme/billing-worker" || ctx.Runtime != "go1.23" {
		t.Fatalf("topology lookup failed: %+v", ctx)
	}
	if ctx.Environment != "prod" {
		t.Fatalf("expected environment from tag, got %q", ctx.Environment)
	}
	if !ctx.AgeKnown || math.Abs(ctx.AgeDays-3) > 0.01 {
		t.Fatalf("expected age ~3 days, got %+v", ctx)
	}
	if !ctx.Recent {
		t.Fatalf("expected recent flag for a 5-minute-old event")
	}
	if len(diagnosis.NextSteps) == 0 || !strings.Contains(diagnosis.NextSteps[0], "timeout") {
		t.Fatalf("next steps must reference the resolved category: %v", diagnosis.NextSteps)
	}
}

func TestDiagnoseFallsBackToProjectAndPlaceholders(t *testing.T) {
	now := time.Now()
	record := models.ErrorRecord{
		Title:   "something broke",
		Level:   "warning",
		Project: "edge-proxy",
	}

	d := NewDiagnoser(nil, nil, nil, testTopology())
	diagnosis := d.diagnoseAt(record, "", now)

	ctx := diagnosis.Context
	if ctx.Service != "edge-proxy" {
		t.Fatalf("expected project fallback, got %q", ctx.Service)
	}
	if ctx.Repo != "unknown" || ctx.Runtime != "unknown" || ctx.Environment != "unknown" {
		t.Fatalf("missing topology must resolve to placeholders, got %+v", ctx)
	}
}

func TestDiagnoseMalformedTimestampsNonFatal(t *testing.T) {
	now := time.Now()
	record := models.ErrorRecord{
		Title:     "ECONNREFUSED upstream",
		Level:     "error",
		Count:     500,
		FirstSeen: "garbage",
		LastSeen:  "also-garbage",
		Project:   "billing-worker",
	}

	d := NewDiagnoser(nil, nil, nil, nil)
	diagnosis := d.diagnoseAt(record, "staging", now)

	if diagnosis.Context.AgeKnown {
		t.Fatalf("unparsable firstSeen must leave age unknown")
	}
	if diagnosis.Context.Recent {
		t.Fatalf("unparsable lastSeen must not count as recent")
	}
	// Recency gone means count=500 stays below the critical bar.
	if diagnosis.Severity != models.SeverityHigh {
		t.Fatalf("expected high severity, got %s", diagnosis.Severity)
	}
	if diagnosis.Context.Environment != "staging" {
		t.Fatalf("explicit environment should win, got %q", diagnosis.Context.Environment)
	}
}

func TestDiagnoseBreadcrumbExcerptKeepsTail(t *testing.T) {
	now := time.Now()
	crumbs := make([]models.Breadcrumb, 0, 8)
	for i := 0; i < 8; i++ {
		crumbs = append(crumbs, models.Breadcrumb{Category: "http", Message: string(rune('a' + i))})
	}
	record := models.ErrorRecord{Title: "x", Project: "p", Breadcrumbs: crumbs}

	d := NewDiagnoser(nil, nil, nil, nil)
	diagnosis := d.diagnoseAt(record, "", now)

	if len(diagnosis.Breadcrumbs) != breadcrumbExcerptSize {
		t.Fatalf("expected %d breadcrumbs, got %d", breadcrumbExcerptSize, len(diagnosis.Breadcrumbs))
	}
	if diagnosis.Breadcrumbs[len(diagnosis.Breadcrumbs)-1].Message != "h" {
		t.Fatalf("excerpt must keep the most recent entries")
	}
}
