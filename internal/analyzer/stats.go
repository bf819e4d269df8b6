package analyzer

import "math"

// distributionStats returns the mean, maximum and population standard
// deviation of values. All three are zero for an empty slice.
func distributionStats(values []int64) (mean float64, max int64, stdDev float64) {
	if len(values) == 0 {
		return mean, max, stdDev
	}
	var sum int64
	max = values[0]
	for _, value := range values {
		if value > max {
			max = value
		}
		sum += value
	}
	mean = float64(sum) / float64(len(values))

	var sumStdDev float64
	for _, value := range values {
		sumStdDev += math.Pow(float64(value)-mean, 2)
	}

	variance := sumStdDev / float64(len(values))
	return mean, max, math.Sqrt(variance)
}
