package batch

import (
	"math"

	"github.com/pixlift/pixlift/internal/runner"
)

// Stats summarizes an optimization phase. Size sums cover successful items
// only; failed items contribute to the Failed count and nothing else.
type Stats struct {
	TotalFiles         int     `json:"total_files"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	TotalOriginalSize  int64   `json:"total_original_size"`
	TotalOptimizedSize int64   `json:"total_optimized_size"`
	CompressionRatio   float64 `json:"compression_ratio"`
	SpaceSaved         int64   `json:"space_saved"`
}

// ComputeStats derives optimization statistics from a phase's outcomes.
// CompressionRatio is a percentage rounded to two decimals, zero when no
// bytes were processed.
func ComputeStats(outcomes []runner.Outcome) Stats {
	st := Stats{TotalFiles: len(outcomes)}

	for _, out := range outcomes {
		if !out.Success() {
			st.Failed++
			continue
		}
		st.Successful++
		st.TotalOriginalSize += out.SizeBefore
		st.TotalOptimizedSize += out.SizeAfter
	}

	if st.TotalOriginalSize > 0 {
		ratio := (1 - float64(st.TotalOptimizedSize)/float64(st.TotalOriginalSize)) * 100
		st.CompressionRatio = math.Round(ratio*100) / 100
	}
	st.SpaceSaved = st.TotalOriginalSize - st.TotalOptimizedSize

	return st
}
