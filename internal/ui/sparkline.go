package ui

import "strings"

// SparklineChars are eight block heights from empty to full.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values as one block character each, scaled to the
// largest value. Negative values render as the lowest block.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	var sb strings.Builder
	sb.Grow(len(values) * 3)
	top := len(SparklineChars) - 1
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = int(v / peak * float64(top))
		}
		idx = min(max(idx, 0), top)
		sb.WriteRune(SparklineChars[idx])
	}
	return sb.String()
}
