package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veriledger/veriledger/internal/veriledger/store"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

const (
	defaultExpectedFPRate     = 0.01
	defaultProblematicEpochAt = 100
)

// FalsePositiveGuard is a stateless helper for reasoning about filter
// false-positive patterns.  It never touches the ledger itself: callers hand
// it observations, it hands back analysis.  Used for operational reporting
// only, never for verification decisions.
type FalsePositiveGuard struct {
	expectedRate       float64
	problematicEpochAt int64
}

func NewFalsePositiveGuard(expectedRate float64, problematicEpochAt int) *FalsePositiveGuard {
	if expectedRate <= 0 || expectedRate > 1 {
		expectedRate = defaultExpectedFPRate
	}
	if problematicEpochAt <= 0 {
		problematicEpochAt = defaultProblematicEpochAt
	}
	return &FalsePositiveGuard{
		expectedRate:       expectedRate,
		problematicEpochAt: int64(problematicEpochAt),
	}
}

// EstimateProbability returns the configured expected false-positive rate.
// Extension point for a per-epoch model; the fixed rate is good enough for
// tuning reports.
func (g *FalsePositiveGuard) EstimateProbability(_ string, _ int64) float64 {
	return g.expectedRate
}

// Analyze groups observations by epoch, flags epochs whose accumulated
// occurrence count exceeds the configured threshold, and produces a tuning
// recommendation.  Pure function of its input.
func (g *FalsePositiveGuard) Analyze(observations []store.FalsePositiveObservation) types.FalsePositiveStats {
	byEpoch := make(map[int64]int64)
	var total int64
	for _, obs := range observations {
		byEpoch[obs.EpochID] += obs.Occurrences
		total += obs.Occurrences
	}

	epochs := make([]int64, 0, len(byEpoch))
	for epoch := range byEpoch {
		epochs = append(epochs, epoch)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })

	stats := types.FalsePositiveStats{Total: total}
	for _, epoch := range epochs {
		stats.ByEpoch = append(stats.ByEpoch, types.EpochCount{EpochID: epoch, Count: byEpoch[epoch]})
		if byEpoch[epoch] > g.problematicEpochAt {
			stats.ProblematicEpochs = append(stats.ProblematicEpochs, epoch)
		}
	}

	stats.Recommendation = g.recommendation(stats.ProblematicEpochs)
	return stats
}

func (g *FalsePositiveGuard) recommendation(problematic []int64) string {
	if len(problematic) == 0 {
		return fmt.Sprintf(
			"false-positive volume within expected bounds (target rate %.4f); no filter tuning needed",
			g.expectedRate,
		)
	}

	parts := make([]string, len(problematic))
	for i, epoch := range problematic {
		parts[i] = fmt.Sprintf("%d", epoch)
	}
	return fmt.Sprintf(
		"epochs %s exceed %d false-positive observations; consider regenerating the filter for these epochs with a larger capacity or lower target rate",
		strings.Join(parts, ", "), g.problematicEpochAt,
	)
}
