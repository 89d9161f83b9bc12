package engine

import (
	"fmt"
	"sort"

	"github.com/signalstack/signal-engine/internal/models"
)

// DetectUsageAnomalies compares per-account recent usage against a baseline
// already normalized to the recent window's length. Accounts at or above the
// spike threshold are flagged SPIKE; accounts with a baseline but no recent
// activity are flagged DROP; accounts with neither are excluded entirely.
func DetectUsageAnomalies(recent, baseline map[string]float64, spikeThreshold float64) []models.UsageComparison {
	if spikeThreshold <= 0 {
		spikeThreshold = 3
	}

	flagged := make([]models.UsageComparison, 0)

	for org, recentValue := range recent {
		if recentValue <= 0 {
			continue
		}
		baseValue := baseline[org]
		if baseValue <= 0 {
			// Ratio undefined against a zero baseline; new activity alone is
			// not a spike.
			continue
		}
		ratio := recentValue / baseValue
		if ratio >= spikeThreshold {
			flagged = append(flagged, models.UsageComparison{
				OrgID:       org,
				Recent:      recentValue,
				Baseline:    baseValue,
				Ratio:       ratio,
				Kind:        models.UsageSpike,
				Description: fmt.Sprintf("usage at %.1fx the baseline rate", ratio),
			})
		}
	}

	for org, baseValue := range baseline {
		if baseValue <= 0 {
			continue
		}
		if recent[org] > 0 {
			continue
		}
		flagged = append(flagged, models.UsageComparison{
			OrgID:       org,
			Baseline:    baseValue,
			Kind:        models.UsageDrop,
			Description: "baseline activity present but nothing in the recent window",
		})
	}

	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].Ratio != flagged[j].Ratio {
			return flagged[i].Ratio > flagged[j].Ratio
		}
		return flagged[i].OrgID < flagged[j].OrgID
	})

	return flagged
}
