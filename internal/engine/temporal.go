package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/signalstack/signal-engine/internal/models"
	"github.com/signalstack/signal-engine/internal/utils"
)

// ClassifyTemporal classifies an event timestamp series into a shape verdict.
// Checks run in a fixed order (burst, steady, regression, sporadic); a series
// satisfying several criteria reports the first. Unparsable entries are
// skipped, and fewer than two usable points yields unknown.
func ClassifyTemporal(timestamps []string) models.TemporalVerdict {
	points := make([]int64, 0, len(timestamps))
	for _, raw := range timestamps {
		t, err := utils.ParseEventTime(raw)
		if err != nil {
			continue
		}
		points = append(points, t.UnixMilli())
	}

	if len(points) < 2 {
		return models.TemporalVerdict{
			Pattern:     models.PatternUnknown,
			Description: fmt.Sprintf("only %d usable event timestamps, need at least 2", len(points)),
		}
	}

	// Newest first.
	sort.Slice(points, func(i, j int) bool { return points[i] > points[j] })

	n := len(points)
	gaps := make([]float64, 0, n-1)
	maxGap := 0.0
	for i := 0; i < n-1; i++ {
		gap := float64(points[i] - points[i+1])
		gaps = append(gaps, gap)
		if gap > maxGap {
			maxGap = gap
		}
	}

	avgGap := 0.0
	for _, g := range gaps {
		avgGap += g
	}
	avgGap /= float64(len(gaps))

	variance := 0.0
	for _, g := range gaps {
		variance += (g - avgGap) * (g - avgGap)
	}
	variance /= float64(len(gaps))

	newest := points[0]
	oldest := points[n-1]
	spanMillis := float64(newest - oldest)
	spanHours := spanMillis / float64(time.Hour.Milliseconds())

	// Burst: >80% of events inside the first 20% of the span.
	twentyPctMark := float64(oldest) + spanMillis*0.2
	early := 0
	for _, p := range points {
		if float64(p) <= twentyPctMark {
			early++
		}
	}
	if float64(early) > 0.8*float64(n) && spanHours > 1 {
		return models.TemporalVerdict{
			Pattern:     models.PatternBurst,
			Description: fmt.Sprintf("%d of %d events landed in the first 20%% of a %.1fh span", early, n, spanHours),
		}
	}

	// Steady: low coefficient of variation across a reasonable sample.
	cv := 0.0
	if avgGap > 0 {
		cv = math.Sqrt(variance) / avgGap
	}
	if cv < 0.5 && n >= 5 {
		return models.TemporalVerdict{
			Pattern:     models.PatternSteady,
			Description: fmt.Sprintf("events arrive every ~%s (cv %.2f)", millisDuration(avgGap), cv),
		}
	}

	// Regression: one dominant quiet gap against otherwise regular arrivals.
	if maxGap > 5*avgGap && n >= 3 {
		return models.TemporalVerdict{
			Pattern:     models.PatternRegression,
			Description: fmt.Sprintf("quiet gap of %.0f minutes, %.1fx the average gap", maxGap/float64(time.Minute.Milliseconds()), maxGap/avgGap),
		}
	}

	return models.TemporalVerdict{
		Pattern:     models.PatternSporadic,
		Description: fmt.Sprintf("irregular arrivals over %.1fh (cv %.2f)", spanHours, cv),
	}
}

func millisDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond)).Round(time.Millisecond)
}
