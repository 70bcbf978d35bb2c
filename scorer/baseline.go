// Package scorer maintains per-patient rolling baselines and serves the
// ScoreVitals RPC: z-scores against the baseline mapped to anomaly scores
// in [0,1], with a bootstrap path while the baseline is still thin.
package scorer

import "math"

// stddevEpsilon guards the z-score against a degenerate flat baseline.
const stddevEpsilon = 0.01

// stats computes mean and population standard deviation of samples.
func stats(samples []float64) (mean, stddev float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean = sum / n
	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / n)
	return mean, stddev
}

// zScore is the absolute deviation of value from the baseline in stddevs.
func zScore(value, mean, stddev float64) float64 {
	return math.Abs(value-mean) / math.Max(stddev, stddevEpsilon)
}

// mapZScore converts a z-score into the piecewise-linear anomaly score and
// its severity band.
func mapZScore(z float64) (score float64, severity string) {
	switch {
	case z <= 1.0:
		return 0.2 * z, "normal"
	case z <= 2.0:
		return 0.2 + 0.2*(z-1.0), "low"
	case z <= 3.0:
		return 0.4 + 0.2*(z-2.0), "medium"
	case z <= 4.0:
		return 0.6 + 0.2*(z-3.0), "high"
	default:
		return math.Min(1.0, 0.8+0.05*(z-4.0)), "critical"
	}
}
