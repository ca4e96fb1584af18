package detection

// Band partitions detections for review rendering.
type Band string

const (
	BandHigh   Band = "high"   // at or above the threshold, shown normally
	BandLow    Band = "low"    // below threshold, shown dimmed
	BandHidden Band = "hidden" // below threshold and low-confidence display is off
)

// Classify bands a detection by confidence against a caller-supplied
// threshold. Legacy rows without a stored confidence count as 1.0, so
// they are never hidden. Pure; no state is touched.
func Classify(confidence *float64, minConfidence float64, showLowConfidence bool) Band {
	c := 1.0
	if confidence != nil {
		c = *confidence
	}
	if c >= minConfidence {
		return BandHigh
	}
	if showLowConfidence {
		return BandLow
	}
	return BandHidden
}
