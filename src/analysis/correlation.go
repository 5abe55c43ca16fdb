package analysis

import "math"

// Matrix is a Pearson correlation matrix over the fixed metric set. NaN marks an undefined
// coefficient (fewer than two joint observations, or no variance on either side).
type Matrix [NumMetrics][NumMetrics]float64

// Correlate computes pairwise-complete Pearson coefficients: each pair uses every sample
// where both metrics are present, independent of the other four metrics.
func Correlate(samples []Sample) Matrix {
	var m Matrix
	for i := Metric(0); i < NumMetrics; i++ {
		for j := i; j < NumMetrics; j++ {
			var xs, ys []float64
			for k := range samples {
				x, okX := samples[k].Value(i)
				y, okY := samples[k].Value(j)
				if okX && okY {
					xs = append(xs, x)
					ys = append(ys, y)
				}
			}
			r := pearson(xs, ys)
			m[i][j] = r
			m[j][i] = r
		}
	}
	return m
}

func pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || len(y) != n {
		return math.NaN()
	}
	meanX, meanY := 0.0, 0.0
	for i := 0; i < n; i++ {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var num, sumXX, sumYY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		sumXX += dx * dx
		sumYY += dy * dy
	}
	den := math.Sqrt(sumXX * sumYY)
	if den == 0 {
		return math.NaN()
	}
	r := num / den
	// floating error can push a perfect correlation a hair past ±1
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}
