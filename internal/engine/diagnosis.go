package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signalstack/signal-engine/internal/models"
	"github.com/signalstack/signal-engine/internal/utils"
)

// breadcrumbExcerptSize bounds the breadcrumb tail copied into a diagnosis.
const breadcrumbExcerptSize = 5

const unknownPlaceholder = "unknown"

// Diagnoser composes classification, severity, and topology context into one
// diagnosis record. It holds only immutable rule data and performs no I/O.
type Diagnoser struct {
	logger      *slog.Logger
	patterns    []models.DiagnosisPattern
	knownIssues []models.KnownIssue
	topology    map[string]models.ServiceInfo
}

// NewDiagnoser constructs a Diagnoser over the supplied rule pack and
// service topology. A nil topology resolves every service to placeholders.
func NewDiagnoser(logger *slog.Logger, patterns []models.DiagnosisPattern, knownIssues []models.KnownIssue, topology map[string]models.ServiceInfo) *Diagnoser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnoser{
		logger:      logger,
		patterns:    patterns,
		knownIssues: knownIssues,
		topology:    topology,
	}
}

// Diagnose turns a raw error record into a structured judgment. Malformed
// timestamps degrade to an unknown age; they never abort the diagnosis.
func (d *Diagnoser) Diagnose(record models.ErrorRecord, environment string) models.Diagnosis {
	return d.diagnoseAt(record, environment, time.Now())
}

func (d *Diagnoser) diagnoseAt(record models.ErrorRecord, environment string, now time.Time) models.Diagnosis {
	classification := Classify(record, d.patterns, d.knownIssues)

	lastSeen, lastErr := utils.ParseEventTime(record.LastSeen)
	if lastErr != nil && record.LastSeen != "" {
		d.logger.Debug("unparsable lastSeen timestamp", slog.String("value", record.LastSeen))
	}
	severity := scoreSeverityAt(record.Level, record.Count, record.UserCount, lastSeen, now)

	ctx := d.resolveContext(record, environment, lastSeen, now)

	return models.Diagnosis{
		Category:        classification.Category,
		Severity:        severity,
		Summary:         summarize(record, classification.Category, severity),
		RootCause:       classification.RootCause,
		Context:         ctx,
		Suggestions:     classification.Suggestions,
		RelatedPatterns: classification.RelatedPatterns,
		NextSteps:       nextSteps(classification.Category, ctx),
		Breadcrumbs:     breadcrumbExcerpt(record.Breadcrumbs),
	}
}

func (d *Diagnoser) resolveContext(record models.ErrorRecord, environment string, lastSeen, now time.Time) models.DiagnosisContext {
	service := tagValue(record.Tags, "service")
	if service == "" {
		service = record.Project
	}
	if service == "" {
		service = unknownPlaceholder
	}

	if environment == "" {
		environment = tagValue(record.Tags, "environment")
	}
	if environment == "" {
		environment = unknownPlaceholder
	}

	info, ok := d.topology[service]
	if !ok {
		info = models.ServiceInfo{Repo: unknownPlaceholder, Runtime: unknownPlaceholder, Framework: unknownPlaceholder}
	}

	ctx := models.DiagnosisContext{
		Service:     service,
		Repo:        info.Repo,
		Runtime:     info.Runtime,
		Environment: environment,
		EventCount:  record.Count,
		UserCount:   record.UserCount,
		Recent:      isRecent(lastSeen, now),
	}

	if firstSeen, err := utils.ParseEventTime(record.FirstSeen); err == nil {
		ctx.AgeDays = utils.AgeDays(firstSeen, now)
		ctx.AgeKnown = true
	}

	return ctx
}

func summarize(record models.ErrorRecord, category string, severity models.Severity) string {
	title := record.Title
	if title == "" {
		title = "untitled error"
	}
	return fmt.Sprintf("[%s/%s] %s", severity, category, title)
}

func nextSteps(category string, ctx models.DiagnosisContext) []string {
	steps := []string{
		fmt.Sprintf("Review the %s diagnosis against recent %s deployments", category, ctx.Service),
	}
	if ctx.Repo != unknownPlaceholder {
		steps = append(steps, fmt.Sprintf("Check open changes in %s touching the culprit path", ctx.Repo))
	}
	if ctx.Recent {
		steps = append(steps, "Events are still arriving; confirm impact before closing")
	} else {
		steps = append(steps, "No events in the last hour; verify the issue still reproduces")
	}
	return steps
}

func breadcrumbExcerpt(crumbs []models.Breadcrumb) []models.Breadcrumb {
	if len(crumbs) <= breadcrumbExcerptSize {
		return append([]models.Breadcrumb(nil), crumbs...)
	}
	return append([]models.Breadcrumb(nil), crumbs[len(crumbs)-breadcrumbExcerptSize:]...)
}

func tagValue(tags []models.Tag, key string) string {
	for _, tag := range tags {
		if strings.EqualFold(tag.Key, key) {
			return tag.Value
		}
	}
	return ""
}
