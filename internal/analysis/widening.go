package analysis

// DefaultWindowSize is the number of preceding samples averaged for the
// widening baseline.
const DefaultWindowSize = 10

// DetectWidening flags samples whose spread exceeds the mean of the
// windowSize samples strictly before them by more than threshold (relative).
// The first windowSize flags are always false, and a series shorter than
// windowSize yields no flags at all.
func DetectWidening(spreads []float64, threshold float64, windowSize int) []bool {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	flags := make([]bool, len(spreads))
	if len(spreads) < windowSize {
		return flags
	}

	for i := windowSize; i < len(spreads); i++ {
		baseline := mean(spreads[i-windowSize : i])
		flags[i] = spreads[i] > baseline*(1+threshold)
	}
	return flags
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
